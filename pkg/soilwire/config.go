package soilwire

import "github.com/soilwire/soilwire/internal/app/config"

// LoadConfig reads, defaults and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a fully defaulted configuration for callers that
// assemble everything programmatically. The sink connection string is the
// one field with no sensible default.
func DefaultConfig() *Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	return cfg
}
