package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/trialkit/internal/config"
	"gopkg.in/yaml.v3"
)

// gen-config writes a commented starting configuration for trialkit run.
func main() {
	target := "trialkit.yaml"
	if len(os.Args) > 1 {
		target = os.Args[1]
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		panic(err)
	}

	cfg := config.Default()
	cfg.Sim.Responder.Kind = "scripted"
	cfg.Sim.Responder.Kwargs = map[string]any{"rt_s": 0.35, "jitter_s": 0.05}
	cfg.Triggers.Driver = map[string]any{"type": "mock", "print_codes": true}
	cfg.Triggers.Codes = map[string]int{
		"fixation":   10,
		"cue_left":   21,
		"cue_right":  22,
		"response_f": 41,
		"response_j": 42,
		"timeout":    49,
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		panic(err)
	}
	header := "# trialkit run configuration. TRIALKIT_* environment variables override these values.\n"
	if err := os.WriteFile(target, append([]byte(header), data...), 0o644); err != nil {
		panic(err)
	}
	fmt.Printf("Wrote %s\n", target)
}
