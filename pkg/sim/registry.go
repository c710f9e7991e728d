package sim

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/trialkit/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// Factory builds a responder from loosely typed keyword arguments.
type Factory func(kwargs map[string]any) (ports.Responder, error)

// Registry maps responder names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry returns a registry with the built-in "scripted" and "null" responders.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("scripted", ScriptedFactory)
	r.Register("null", func(map[string]any) (ports.Responder, error) { return NullResponder{}, nil })
	return r
}

// Register adds a factory. If a factory with the same name exists, it is overwritten.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// Build looks up a factory by name and runs it.
func (r *Registry) Build(name string, kwargs map[string]any) (ports.Responder, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("responder not found: %s", name)
	}
	return f(kwargs)
}

// Names lists the registered responders in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ScriptedConfig holds the keyword arguments of the scripted responder.
type ScriptedConfig struct {
	Key     string  `mapstructure:"key"`
	RTS     float64 `mapstructure:"rt_s"`
	JitterS float64 `mapstructure:"jitter_s"`
}

// ScriptedFactory decodes kwargs into a ScriptedResponder. rt_s defaults to 0.2.
func ScriptedFactory(kwargs map[string]any) (ports.Responder, error) {
	cfg := ScriptedConfig{RTS: DefaultRT.Seconds()}
	if err := Decode(kwargs, &cfg); err != nil {
		return nil, fmt.Errorf("scripted responder: %w", err)
	}
	if cfg.RTS < 0 || cfg.JitterS < 0 {
		return nil, fmt.Errorf("scripted responder: negative rt_s or jitter_s")
	}
	return &ScriptedResponder{
		Key:    cfg.Key,
		RT:     time.Duration(cfg.RTS * float64(time.Second)),
		Jitter: time.Duration(cfg.JitterS * float64(time.Second)),
	}, nil
}

// Decode maps kwargs onto a tagged struct, rejecting unknown keys.
func Decode(kwargs map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(kwargs)
}
