package registry

import (
	"maps"
	"slices"
)

// Skill is a named capability an agent advertises.
type Skill struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name" validate:"notblank"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// AgentCard describes an agent to its clients. Values handed out by the
// store are deep copies and never alias store state.
type AgentCard struct {
	Name               string         `json:"name" validate:"notblank"`
	Description        string         `json:"description"`
	URL                string         `json:"url,omitempty" validate:"omitempty,httpurl"`
	Version            string         `json:"version,omitempty"`
	Skills             []Skill        `json:"skills" validate:"dive"`
	Capabilities       map[string]any `json:"capabilities,omitempty"`
	DefaultInputModes  []string       `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string       `json:"defaultOutputModes,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// HasSkill reports whether the card offers skill, matched by name or id.
func (c AgentCard) HasSkill(skill string) bool {
	return slices.ContainsFunc(c.Skills, func(s Skill) bool {
		return s.Name == skill || (s.ID != "" && s.ID == skill)
	})
}

// SkillNames lists skill names in declaration order.
func (c AgentCard) SkillNames() []string {
	names := make([]string, len(c.Skills))
	for i, s := range c.Skills {
		names[i] = s.Name
	}
	return names
}

// Clone returns a deep copy.
func (c AgentCard) Clone() AgentCard {
	out := c
	if c.Skills != nil {
		out.Skills = make([]Skill, len(c.Skills))
		for i, s := range c.Skills {
			s.Tags = slices.Clone(s.Tags)
			s.Examples = slices.Clone(s.Examples)
			out.Skills[i] = s
		}
	}
	out.Capabilities = cloneMap(c.Capabilities)
	out.Metadata = cloneMap(c.Metadata)
	out.DefaultInputModes = slices.Clone(c.DefaultInputModes)
	out.DefaultOutputModes = slices.Clone(c.DefaultOutputModes)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}
