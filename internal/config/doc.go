// Package config provides configuration management for the Praxis persona
// engine.
//
// # Overview
//
// The config package uses Viper to load configuration from YAML files and
// environment variables. It provides a type-safe configuration structure with
// validation, default values, and automatic file creation.
//
// # Configuration File
//
// The configuration is stored at ~/.praxis/config.yaml and is automatically
// created with sensible defaults on first use. The file structure mirrors
// the Go structs defined in this package.
//
// # Environment Variables
//
// All configuration values can be overridden using environment variables
// with the PRAXIS_ prefix. Nested fields are separated by underscores.
//
// Examples:
//   - PRAXIS_CACHE_MAX_ENTRIES=1000
//   - PRAXIS_CACHE_TTL_MS=600000
//   - PRAXIS_GENERATION_DEFAULT_PROVIDER=openai
//   - PRAXIS_GENERATION_PROVIDERS_OPENAI_API_KEY=sk-...
//   - PRAXIS_LOGGING_LEVEL=debug
//
// # Configuration Sections
//
//   - Server: HTTP listen address and timeouts
//   - Cache: response cache capacity and entry TTL
//   - Database: SQLite file location
//   - Generation: response generation providers (stub, Ollama, OpenAI, Anthropic)
//   - Personas: persona definition directory and hot-reload toggle
//   - Mood: analytics window and observation retirement schedule
//   - Drift: drift patrol schedule and auto-correction toggle
//   - Logging: log level and output file
//
// API keys belong in environment variables rather than the config file:
//
//	export PRAXIS_GENERATION_PROVIDERS_OPENAI_API_KEY=sk-...
//
// # Path Expansion
//
// The package automatically expands ~ to the user's home directory in
// all path configurations, making config files portable across systems.
//
// Config instances are not thread-safe; load once at startup and treat the
// result as read-only.
package config
