package drivers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/trialkit/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// ErrUnsupportedDriver is returned for an unknown driver type.
var ErrUnsupportedDriver = errors.New("unsupported trigger driver type")

// Config is the triggers.driver section of a run configuration.
type Config struct {
	Type       string   `mapstructure:"type" yaml:"type"`
	Name       string   `mapstructure:"name" yaml:"name"`
	URL        string   `mapstructure:"url" yaml:"url"`
	Port       string   `mapstructure:"port" yaml:"port"`
	BaudRate   int      `mapstructure:"baudrate" yaml:"baudrate"`
	DataBits   int      `mapstructure:"bytesize" yaml:"bytesize"`
	Parity     string   `mapstructure:"parity" yaml:"parity"`
	StopBits   float64  `mapstructure:"stopbits" yaml:"stopbits"`
	Prefix     []int    `mapstructure:"prefix" yaml:"prefix"`
	PrintCodes *bool    `mapstructure:"print_codes" yaml:"print_codes"`
	PostDelayS *float64 `mapstructure:"post_delay_s" yaml:"post_delay_s"`
	Channel    string   `mapstructure:"channel" yaml:"channel"`
	Addr       string   `mapstructure:"addr" yaml:"addr"`
	LockTTLS   float64  `mapstructure:"lock_ttl_s" yaml:"lock_ttl_s"`
	Members    []Config `mapstructure:"members" yaml:"members"`
}

// DecodeConfig decodes a loosely typed driver section.
func DecodeConfig(raw map[string]any) (Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("invalid trigger driver config: %w", err)
	}
	return cfg, nil
}

// PortSettings returns the serial line settings of the section.
func (c Config) PortSettings() PortSettings {
	return PortSettings{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		Parity:   c.Parity,
		StopBits: c.StopBits,
	}
}

// Factory builds drivers for types this package does not know, such as "redis".
type Factory func(cfg Config) (ports.Driver, error)

// Builder resolves driver configs into drivers.
type Builder struct {
	Stdout  io.Writer
	Send    SendFunc
	Logger  *slog.Logger
	Factory map[string]Factory
}

// FromConfig builds cfg with a zero Builder: no stdout, no send function and
// only the built-in driver types.
func FromConfig(cfg Config) (ports.Driver, error) {
	return Builder{}.FromConfig(cfg)
}

// FromConfig builds the configured driver. An empty type falls back to
// "callable" when a send function is available, else to "serial".
func (b Builder) FromConfig(cfg Config) (ports.Driver, error) {
	typ := strings.ToLower(strings.TrimSpace(cfg.Type))
	if typ == "" {
		typ = "serial"
		if b.Send != nil {
			typ = "callable"
		}
	}
	var opts []Option
	if cfg.Name != "" {
		opts = append(opts, WithName(cfg.Name))
	}
	if b.Logger != nil {
		opts = append(opts, WithLogger(b.Logger))
	}

	switch typ {
	case "mock", "memory":
		if cfg.PrintCodes == nil || *cfg.PrintCodes {
			if b.Stdout != nil {
				opts = append(opts, WithOutput(b.Stdout))
			}
		}
		return NewMemory(opts...), nil
	case "callable":
		if b.Send == nil {
			return nil, fmt.Errorf("driver type callable requires a send function: %w", ErrUnsupportedDriver)
		}
		if cfg.PostDelayS != nil {
			opts = append(opts, WithPostDelay(time.Duration(*cfg.PostDelayS*float64(time.Second))))
		}
		return NewCallable(b.Send, opts...), nil
	case "serial", "serial_url", "serial_port":
		prefix, err := prefixBytes(cfg.Prefix)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithPrefix(prefix))
		settings := cfg.PortSettings()
		var w io.WriteCloser
		if typ == "serial_port" {
			if cfg.Port == "" {
				return nil, fmt.Errorf("driver type serial_port requires a port: %w", ErrUnsupportedDriver)
			}
			w, err = OpenPort(cfg.Port, settings)
		} else {
			w, err = DialSerial(cfg.URL, settings)
		}
		if err != nil {
			return nil, err
		}
		return NewSerial(w, opts...), nil
	case "fanout":
		members := make([]ports.Driver, 0, len(cfg.Members))
		for i, m := range cfg.Members {
			d, err := b.FromConfig(m)
			if err != nil {
				return nil, fmt.Errorf("fanout member %d: %w", i, err)
			}
			members = append(members, d)
		}
		return NewFanout(members, opts...), nil
	}
	if f, ok := b.Factory[typ]; ok {
		return f(cfg)
	}
	return nil, fmt.Errorf("%q: %w", cfg.Type, ErrUnsupportedDriver)
}

// DefaultPrefix is the protocol prefix used when a serial config names none.
var DefaultPrefix = []int{1, 225, 1, 0}

func prefixBytes(prefix []int) ([]byte, error) {
	if prefix == nil {
		prefix = DefaultPrefix
	}
	out := make([]byte, len(prefix))
	for i, v := range prefix {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("prefix byte %d: %w", v, ErrCodeOutOfRange)
		}
		out[i] = byte(v)
	}
	return out, nil
}
