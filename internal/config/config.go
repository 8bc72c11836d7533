package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Worker bounds for the update scheduler.
const (
	MinWorkers     = 1
	MaxWorkers     = 16
	DefaultWorkers = 8
)

// Config is the top-level engine configuration. It can be read from YAML or TOML.
type Config struct {
	Engine    EngineConfig    `json:"engine" yaml:"engine" toml:"engine"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging" toml:"logging"`
	Content   ContentConfig   `json:"content" yaml:"content" toml:"content"`
	Inspector InspectorConfig `json:"inspector" yaml:"inspector" toml:"inspector"`
}

type EngineConfig struct {
	Workers    int           `json:"workers" yaml:"workers" toml:"workers"`
	TickRate   time.Duration `json:"tick_rate" yaml:"tick_rate" toml:"tick_rate"`
	FrameLimit float64       `json:"frame_limit,omitempty" yaml:"frame_limit,omitempty" toml:"frame_limit"` // 0 = uncapped
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"` // "json" or "console"
}

type ContentConfig struct {
	Root    string   `json:"root" yaml:"root" toml:"root"`
	Preload []string `json:"preload,omitempty" yaml:"preload,omitempty" toml:"preload"`
}

type InspectorConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Addr    string `json:"addr" yaml:"addr" toml:"addr"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty" toml:"token"` // required as ?token= when set

	// QUICAddr enables the QUIC feed. Without a key pair a self-signed
	// certificate is generated at start.
	QUICAddr string `json:"quic_addr,omitempty" yaml:"quic_addr,omitempty" toml:"quic_addr"`
	CertFile string `json:"cert_file,omitempty" yaml:"cert_file,omitempty" toml:"cert_file"`
	KeyFile  string `json:"key_file,omitempty" yaml:"key_file,omitempty" toml:"key_file"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Workers:  DefaultWorkers,
			TickRate: time.Second / 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Content: ContentConfig{
			Root: "assets",
		},
		Inspector: InspectorConfig{
			Enabled: false,
			Addr:    "127.0.0.1:7070",
		},
	}
}

// Load reads a config file, choosing the decoder from the file extension.
// Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = LoadYAML(bytes.NewReader(data))
	case ".toml":
		cfg, err = LoadTOML(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("config %s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadYAML decodes a YAML document on top of Default.
func LoadYAML(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, err
	}
	return cfg.normalize()
}

// LoadTOML decodes a TOML document on top of Default.
func LoadTOML(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg.normalize()
}

func (c *Config) normalize() (*Config, error) {
	c.Engine.Workers = ClampWorkers(c.Engine.Workers)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks values that cannot be repaired silently.
func (c *Config) Validate() error {
	if c.Engine.TickRate <= 0 {
		return fmt.Errorf("engine.tick_rate must be positive, got %s", c.Engine.TickRate)
	}
	if c.Engine.FrameLimit < 0 {
		return fmt.Errorf("engine.frame_limit must not be negative, got %v", c.Engine.FrameLimit)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Inspector.Enabled && c.Inspector.Addr == "" {
		return fmt.Errorf("inspector.addr is required when the inspector is enabled")
	}
	if (c.Inspector.CertFile == "") != (c.Inspector.KeyFile == "") {
		return fmt.Errorf("inspector.cert_file and inspector.key_file must be set together")
	}
	return nil
}

// ClampWorkers bounds n to [MinWorkers, MaxWorkers].
func ClampWorkers(n int) int {
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}
