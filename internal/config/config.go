// Package config loads the YAML run configuration of the stencil binary.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSteps    = 256
	DefaultSubSteps = 32
	DefaultTopic    = "stencil/progress"
	DefaultOutput   = "output.dat"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config represents a complete run configuration
type Config struct {
	Grid    GridConfig    `yaml:"grid"`
	Run     RunConfig     `yaml:"run"`
	Output  OutputConfig  `yaml:"output"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// GridConfig names the initial state: an input file or a generated field.
type GridConfig struct {
	Input    string `yaml:"input"`
	Output   string `yaml:"output"`
	Width    int    `yaml:"width"`    // generated grids only
	Height   int    `yaml:"height"`   // generated grids only
	Generate string `yaml:"generate"` // uniform, hotspot
}

// RunConfig contains execution settings
type RunConfig struct {
	Steps     int   `yaml:"steps"`
	SubSteps  int   `yaml:"substeps"` // sub-steps per engine call
	Threads   int   `yaml:"threads"`
	BlockSize int   `yaml:"block_size"` // 0 = derived from grid and threads
	Vectorize *bool `yaml:"vectorize"`
	Naive     bool  `yaml:"naive"`
}

// OutputConfig controls checkpoints.
type OutputConfig struct {
	Snapshot      string `yaml:"snapshot"`
	SnapshotEvery int    `yaml:"snapshot_every"` // sub-steps, 0 = final only
}

type MonitorConfig struct {
	Listen string     `yaml:"listen"` // websocket progress endpoint, e.g. :8080
	MQTT   MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// VectorizeEnabled reports the effective vectorize setting.
func (c *Config) VectorizeEnabled() bool {
	return c.Run.Vectorize == nil || *c.Run.Vectorize
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Run.Steps == 0 {
		c.Run.Steps = DefaultSteps
	}
	if c.Run.SubSteps == 0 {
		c.Run.SubSteps = DefaultSubSteps
	}
	if c.Run.Threads == 0 {
		c.Run.Threads = runtime.NumCPU()
	}
	if c.Run.Vectorize == nil {
		v := true
		c.Run.Vectorize = &v
	}
	if c.Grid.Output == "" {
		c.Grid.Output = DefaultOutput
	}
	if c.Monitor.MQTT.Topic == "" {
		c.Monitor.MQTT.Topic = DefaultTopic
	}
}

// Load reads, parses and validates a YAML configuration file
func Load(path string) (*Config, error) {
	cfg, err := Decode(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Decode reads a configuration file and applies defaults without validating it.
func Decode(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if cfg.Run.Steps < 1 {
		return fmt.Errorf("%w: run.steps must be > 0", ErrInvalid)
	}
	if cfg.Run.SubSteps < 1 {
		return fmt.Errorf("%w: run.substeps must be > 0", ErrInvalid)
	}
	if cfg.Run.Threads < 1 {
		return fmt.Errorf("%w: run.threads must be > 0", ErrInvalid)
	}
	if cfg.Run.BlockSize < 0 {
		return fmt.Errorf("%w: run.block_size must be >= 0", ErrInvalid)
	}
	if cfg.Output.SnapshotEvery < 0 {
		return fmt.Errorf("%w: output.snapshot_every must be >= 0", ErrInvalid)
	}

	if cfg.Grid.Input == "" {
		switch cfg.Grid.Generate {
		case "":
			return fmt.Errorf("%w: grid.input or grid.generate is required", ErrInvalid)
		case "uniform", "hotspot":
		default:
			return fmt.Errorf("%w: unknown grid.generate %q", ErrInvalid, cfg.Grid.Generate)
		}
		if cfg.Grid.Width < 3 || cfg.Grid.Height < 3 {
			return fmt.Errorf("%w: generated grid must be at least 3x3, got %dx%d", ErrInvalid, cfg.Grid.Width, cfg.Grid.Height)
		}
	}

	if cfg.Monitor.MQTT.QoS > 2 {
		return fmt.Errorf("%w: monitor.mqtt.qos must be 0, 1 or 2", ErrInvalid)
	}
	return nil
}

// Warnings lists settings that are valid but unusual.
func Warnings(cfg *Config) []string {
	var out []string
	if cfg.Run.SubSteps%2 != 0 {
		out = append(out, "run.substeps is odd: the result alternates between buffers each call")
	}
	if cfg.Run.Threads > runtime.NumCPU() {
		out = append(out, fmt.Sprintf("run.threads %d exceeds %d CPUs and will be clamped", cfg.Run.Threads, runtime.NumCPU()))
	}
	return out
}
