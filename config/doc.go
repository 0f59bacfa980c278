// Package config loads stagekit configuration from files and environment
// variables.
//
// It uses Viper to read a YAML (or JSON/TOML) file, layers a .env file loaded
// with godotenv on top, and finally lets prefixed environment variables
// override individual keys.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("stagedigest", &cfg, config.WithEnvPrefix("STAGEKIT"))
//
// With the STAGEKIT prefix, STAGEKIT_STAGE_MAX_CONCURRENCY overrides
// stage.max_concurrency.
package config
