package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soilwire/soilwire/internal/adapters/serialtap"
	"github.com/soilwire/soilwire/internal/app/relay"
)

type Config struct {
	Channels []string            `yaml:"channels"`
	Serial   serialtap.Config    `yaml:"serial"`
	Journal  JournalConfig       `yaml:"journal"`
	Spool    SpoolConfig         `yaml:"spool"`
	Sink     SinkConfig          `yaml:"sink"`
	Monitor  relay.MonitorConfig `yaml:"monitor"`
	Metrics  MetricsConfig       `yaml:"metrics"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

type SpoolConfig struct {
	Path string `yaml:"path"`
}

type SinkConfig struct {
	ConnString  string        `yaml:"conn_string"`
	Table       string        `yaml:"table"`
	AppendPause time.Duration `yaml:"append_pause"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if len(c.Channels) == 0 {
		c.Channels = []string{"moisture_value_a0", "moisture_value_a1"}
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "./data/readings.csv"
	}
	if c.Spool.Path == "" {
		c.Spool.Path = "./data/unsent.csv"
	}
	if c.Sink.Table == "" {
		c.Sink.Table = "readings"
	}
	if c.Sink.AppendPause <= 0 {
		c.Sink.AppendPause = time.Second
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}

	c.Serial.Channels = len(c.Channels)
	c.Serial.ApplyDefaults()
	c.Monitor.ApplyDefaults()
}

func (c *Config) Validate() error {
	if err := c.Serial.Validate(); err != nil {
		return fmt.Errorf("serial config: %w", err)
	}
	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor config: %w", err)
	}
	if c.Sink.ConnString == "" {
		return fmt.Errorf("sink.conn_string is required")
	}
	if c.Journal.Path == c.Spool.Path {
		return fmt.Errorf("journal.path and spool.path must differ")
	}
	return nil
}
