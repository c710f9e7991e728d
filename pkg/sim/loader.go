package sim

import (
	"fmt"
	"strings"

	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/ports"
)

// ResponderSpec is the sim.responder section of a run configuration.
// Class names a registered responder explicitly; Kind is the short form.
type ResponderSpec struct {
	Class  string         `mapstructure:"class" yaml:"class"`
	Kind   string         `mapstructure:"kind" yaml:"kind"`
	Kwargs map[string]any `mapstructure:"kwargs" yaml:"kwargs"`
}

// LoadInfo describes how a responder was resolved.
type LoadInfo struct {
	Source   string `json:"source"`
	Name     string `json:"name,omitempty"`
	Fallback bool   `json:"fallback"`
	Error    string `json:"error,omitempty"`
}

// LoadResponder resolves the configured responder. Human mode loads nothing.
// Unless strict, an unknown name or a failing factory falls back to the
// default scripted responder and the failure is reported in LoadInfo.
func LoadResponder(mode domain.Mode, spec ResponderSpec, reg *Registry, strict bool) (ports.Responder, LoadInfo, error) {
	if !mode.Automated() {
		return nil, LoadInfo{Source: "disabled"}, nil
	}
	if reg == nil {
		reg = DefaultRegistry()
	}

	name, source := strings.TrimSpace(spec.Class), "config.class"
	if name == "" {
		name, source = strings.ToLower(strings.TrimSpace(spec.Kind)), "kind"
	}
	if name == "" {
		name = "scripted"
	}

	responder, err := reg.Build(name, spec.Kwargs)
	if err != nil {
		if strict {
			return nil, LoadInfo{Source: source, Name: name}, fmt.Errorf("failed to load responder %s: %w", name, err)
		}
		fallback, _ := ScriptedFactory(nil)
		return fallback, LoadInfo{Source: source, Name: "scripted", Fallback: true, Error: err.Error()}, nil
	}
	return responder, LoadInfo{Source: source, Name: name}, nil
}
