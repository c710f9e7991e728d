package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/drivers"
	"github.com/aretw0/trialkit/pkg/sim"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for values that cannot drive a run.
var ErrInvalidConfig = errors.New("invalid run configuration")

// Config is a run configuration file.
type Config struct {
	Task     TaskConfig    `yaml:"task"`
	Sim      SimConfig     `yaml:"sim"`
	QA       QAConfig      `yaml:"qa"`
	Triggers TriggerConfig `yaml:"triggers"`
	Display  DisplayConfig `yaml:"display"`
	Logging  LoggingConfig `yaml:"logging"`
}

// TaskConfig identifies the task and session.
type TaskConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Trials      int    `yaml:"trials"`
	Seed        int64  `yaml:"seed"`
	Participant string `yaml:"participant"`
	SessionID   string `yaml:"session_id"`
	OutputDir   string `yaml:"output_dir"`
}

// SimConfig configures automated responses.
type SimConfig struct {
	Mode       string            `yaml:"mode"`
	Policy     string            `yaml:"policy"`
	Strict     bool              `yaml:"strict"`
	DefaultRTS *float64          `yaml:"default_rt_s"`
	ClampRT    bool              `yaml:"clamp_rt"`
	MaxWaitS   *float64          `yaml:"max_wait_s"`
	Responder  sim.ResponderSpec `yaml:"responder"`
}

// QAConfig configures timing compression for qa runs.
type QAConfig struct {
	EnableScaling bool    `yaml:"enable_scaling"`
	TimingScale   float64 `yaml:"timing_scale"`
	MinFrames     int     `yaml:"min_frames"`
}

// TriggerConfig selects the trigger driver and the event codes.
type TriggerConfig struct {
	Strict bool           `yaml:"strict"`
	Driver map[string]any `yaml:"driver"`
	Codes  map[string]int `yaml:"codes"`
}

// DisplayConfig configures the headless display.
type DisplayConfig struct {
	RefreshHz float64 `yaml:"refresh_hz"`
}

// LoggingConfig configures the application logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// overrides are the TRIALKIT_* environment variables. Unset variables leave
// the file value alone.
type overrides struct {
	Mode          *string  `env:"TRIALKIT_MODE"`
	Seed          *int64   `env:"TRIALKIT_SEED"`
	Participant   *string  `env:"TRIALKIT_PARTICIPANT"`
	SessionID     *string  `env:"TRIALKIT_SESSION_ID"`
	OutputDir     *string  `env:"TRIALKIT_OUTPUT_DIR"`
	Trials        *int     `env:"TRIALKIT_TRIALS"`
	Policy        *string  `env:"TRIALKIT_POLICY"`
	Strict        *bool    `env:"TRIALKIT_STRICT"`
	Responder     *string  `env:"TRIALKIT_RESPONDER"`
	TimingScale   *float64 `env:"TRIALKIT_TIMING_SCALE"`
	EnableScaling *bool    `env:"TRIALKIT_ENABLE_SCALING"`
	TriggerDriver *string  `env:"TRIALKIT_TRIGGER_DRIVER"`
	RefreshHz     *float64 `env:"TRIALKIT_REFRESH_HZ"`
	LogLevel      *string  `env:"TRIALKIT_LOG_LEVEL"`
}

// Default returns the configuration used when no file is given: the demo
// task in sim mode. Responder and driver defaults are filled after loading so
// that file sections replace them instead of merging into them.
func Default() Config {
	rt := sim.DefaultRT.Seconds()
	maxWait := 10.0
	return Config{
		Task: TaskConfig{Name: "cueing", Version: "1", Trials: 12, Seed: 1, OutputDir: "out"},
		Sim: SimConfig{
			Mode:       string(domain.ModeSim),
			DefaultRTS: &rt,
			MaxWaitS:   &maxWait,
		},
		QA:       QAConfig{TimingScale: 1, MinFrames: 2},
		Display:  DisplayConfig{RefreshHz: 60},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path only applies the overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.fillDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	var o overrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	set(&c.Sim.Mode, o.Mode)
	set(&c.Task.Seed, o.Seed)
	set(&c.Task.Participant, o.Participant)
	set(&c.Task.SessionID, o.SessionID)
	set(&c.Task.OutputDir, o.OutputDir)
	set(&c.Task.Trials, o.Trials)
	set(&c.Sim.Policy, o.Policy)
	set(&c.Sim.Strict, o.Strict)
	set(&c.QA.TimingScale, o.TimingScale)
	set(&c.QA.EnableScaling, o.EnableScaling)
	set(&c.Display.RefreshHz, o.RefreshHz)
	set(&c.Logging.Level, o.LogLevel)
	if o.Responder != nil {
		c.Sim.Responder = sim.ResponderSpec{Kind: *o.Responder}
	}
	if o.TriggerDriver != nil {
		c.Triggers.Driver = map[string]any{"type": *o.TriggerDriver}
	}
	return nil
}

func (c *Config) fillDefaults() {
	r := c.Sim.Responder
	if r.Class == "" && r.Kind == "" && r.Kwargs == nil {
		c.Sim.Responder = sim.ResponderSpec{Kind: "scripted", Kwargs: map[string]any{"rt_s": 0.35, "jitter_s": 0.05}}
	}
	if len(c.Triggers.Driver) == 0 {
		c.Triggers.Driver = map[string]any{"type": "mock"}
	}
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Validate rejects values no run can use.
func (c Config) Validate() error {
	if c.Task.Trials < 0 {
		return fmt.Errorf("task.trials %d: %w", c.Task.Trials, ErrInvalidConfig)
	}
	if c.Display.RefreshHz <= 0 {
		return fmt.Errorf("display.refresh_hz %g: %w", c.Display.RefreshHz, ErrInvalidConfig)
	}
	if c.QA.TimingScale < 0 {
		return fmt.Errorf("qa.timing_scale %g: %w", c.QA.TimingScale, ErrInvalidConfig)
	}
	if c.Sim.DefaultRTS != nil && *c.Sim.DefaultRTS < 0 {
		return fmt.Errorf("sim.default_rt_s %g: %w", *c.Sim.DefaultRTS, ErrInvalidConfig)
	}
	for name, code := range c.Triggers.Codes {
		if code < 0 || code > 255 {
			return fmt.Errorf("triggers.codes.%s = %d: %w", name, code, ErrInvalidConfig)
		}
	}
	return nil
}

// Mode returns the normalized run mode.
func (c Config) Mode() domain.Mode {
	return domain.ParseMode(c.Sim.Mode)
}

// FramePeriod converts the refresh rate to a frame period.
func (c Config) FramePeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.Display.RefreshHz)
}

// SimConfig converts the sim and qa sections into the run-scoped sim.Config.
func (c Config) SimConfig() sim.Config {
	out := sim.DefaultConfig()
	out.EnableScaling = c.QA.EnableScaling
	if c.QA.TimingScale > 0 {
		out.TimingScale = c.QA.TimingScale
	}
	if c.QA.MinFrames > 0 {
		out.MinFrames = c.QA.MinFrames
	}
	out.Strict = c.Sim.Strict
	out.Policy = domain.Policy(c.Sim.Policy)
	if c.Sim.DefaultRTS != nil {
		out.DefaultRT = seconds(*c.Sim.DefaultRTS)
	}
	out.ClampRT = c.Sim.ClampRT
	if c.Sim.MaxWaitS != nil {
		out.MaxWait = seconds(*c.Sim.MaxWaitS)
	}
	return out
}

// DriverConfig decodes the triggers.driver section.
func (c Config) DriverConfig() (drivers.Config, error) {
	return drivers.DecodeConfig(c.Triggers.Driver)
}

// TriggersStrict reports whether trigger failures abort the run. The run-wide
// sim.strict flag implies it.
func (c Config) TriggersStrict() bool {
	return c.Triggers.Strict || c.Sim.Strict
}

// Code returns the configured code for an event name.
func (c Config) Code(name string, fallback int) int {
	if code, ok := c.Triggers.Codes[name]; ok {
		return code
	}
	return fallback
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
