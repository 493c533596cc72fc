package config

import (
	"reflect"
	"strings"
)

// topLevelKeys returns the top-level mapstructure keys of cfg. The value is
// true for keys that hold a nested section and false for scalars. Embedded
// structs tagged ",squash" contribute their own fields.
func topLevelKeys(cfg interface{}) map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(cfg)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return keys
	}
	collectKeys(t, keys)
	return keys
}

func collectKeys(t reflect.Type, keys map[string]bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if strings.Contains(opts, "squash") && ft.Kind() == reflect.Struct {
			collectKeys(ft, keys)
			continue
		}
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		keys[name] = ft.Kind() == reflect.Struct || ft.Kind() == reflect.Map
	}
}
