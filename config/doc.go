// Package config loads service configuration with Viper.
//
// Values come from an optional config.yml, an optional .env file (loaded with
// godotenv) and the process environment, in increasing precedence.
// UPPER_SNAKE variables bind to nested keys automatically, so
// AUTH_TOKEN_CACHE_TTL fills auth.token_cache_ttl. Variables whose name does
// not follow the nesting can be mapped with WithEnvAliases.
//
//	var cfg AppConfig
//	err := config.LoadConfig("agent-registry", &cfg,
//	    config.WithEnvAliases(map[string]string{"REGISTRY_PORT": "server.port"}))
package config
