package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/trialkit/internal/testutils"
	"github.com/aretw0/trialkit/pkg/audit"
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/sim"
	"github.com/aretw0/trialkit/pkg/trigger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	return testutils.WriteFile(t, "run.yaml", body)
}

func TestLoad_FileReplacesDefaults(t *testing.T) {
	path := writeConfig(t, `
task:
  name: flanker
  trials: 40
  seed: 9
sim:
  mode: qa
  policy: coerce
  default_rt_s: 0.25
  responder:
    kind: http
    kwargs:
      url: http://localhost:8089
qa:
  enable_scaling: true
  timing_scale: 0.2
triggers:
  driver:
    type: serial
    url: loop://
  codes:
    fixation_onset: 10
display:
  refresh_hz: 120
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "flanker", cfg.Task.Name)
	assert.Equal(t, domain.ModeQA, cfg.Mode())
	assert.Equal(t, map[string]any{"url": "http://localhost:8089"}, cfg.Sim.Responder.Kwargs, "no default kwargs merged in")
	assert.Equal(t, "serial", cfg.Triggers.Driver["type"])
	assert.Equal(t, 10, cfg.Code("fixation_onset", 1))
	assert.Equal(t, 2, cfg.Code("fixation_offset", 2))
	assert.Equal(t, time.Second/120, cfg.FramePeriod())

	sc := cfg.SimConfig()
	assert.Equal(t, domain.PolicyCoerce, sc.Policy)
	assert.Equal(t, 250*time.Millisecond, sc.DefaultRT)
	assert.True(t, sc.EnableScaling)
	assert.Equal(t, 0.2, sc.TimingScale)
	assert.Equal(t, 10*time.Second, sc.MaxWait)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRIALKIT_MODE", "human")
	t.Setenv("TRIALKIT_SEED", "77")
	t.Setenv("TRIALKIT_RESPONDER", "null")
	t.Setenv("TRIALKIT_TRIGGER_DRIVER", "memory")
	t.Setenv("TRIALKIT_TIMING_SCALE", "0.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeHuman, cfg.Mode())
	assert.Equal(t, int64(77), cfg.Task.Seed)
	assert.Equal(t, "null", cfg.Sim.Responder.Kind)
	assert.Equal(t, "memory", cfg.Triggers.Driver["type"])
	assert.Equal(t, 0.5, cfg.QA.TimingScale)
	assert.Equal(t, "cueing", cfg.Task.Name, "untouched by env")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "task: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "display:\n  refresh_hz: 0\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(writeConfig(t, "triggers:\n  codes:\n    onset: 300\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv("TRIALKIT_SEED", "not-a-number")
	_, err = Load("")
	assert.Error(t, err)
}

func TestBuild_WritesAuditFile(t *testing.T) {
	cfg := Default()
	cfg.Task.OutputDir = t.TempDir()
	cfg.Task.Participant = "p042"
	cfg.fillDefaults()
	var stdout bytes.Buffer
	reg := prometheus.NewRegistry()
	rec := audit.NewRecorder()

	s, err := Build(cfg, WithStdout(&stdout), WithMetrics(reg), WithAuditSink(rec))
	require.NoError(t, err)
	assert.Equal(t, "sim-p042-seed1", s.Info.SessionID)
	assert.Equal(t, "scripted", s.Context.ResponderInfo.Name)
	assert.True(t, s.Context.Automated())
	assert.NotNil(t, s.Metrics)

	require.NoError(t, s.Triggers.Send(7))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "idempotent")

	assert.Contains(t, stdout.String(), "[MockTrigger] Sent code: 7")
	entries, skipped, err := audit.ReadFile(filepath.Join(s.Dir, "audit.jsonl"))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.RecordTriggerPlanned, entries[0].Type())
	assert.Equal(t, "sim-p042-seed1", entries[0]["session"].(map[string]any)["session_id"])

	executed := rec.OfType(domain.RecordTriggerExecuted)
	require.Len(t, executed, 1)
	assert.Equal(t, "mock", executed[0].(*trigger.Record).Driver)
}

func TestBuild_ResponderFallback(t *testing.T) {
	cfg := Default()
	cfg.Task.OutputDir = ""
	cfg.Sim.Responder = sim.ResponderSpec{Kind: "llm"}
	cfg.fillDefaults()

	s, err := Build(cfg)
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, s.Context.ResponderInfo.Fallback)
	assert.Equal(t, "scripted", s.Context.ResponderInfo.Name)

	cfg.Sim.Strict = true
	_, err = Build(cfg)
	assert.Error(t, err)
}

func TestBuild_UnknownDriver(t *testing.T) {
	cfg := Default()
	cfg.Task.OutputDir = ""
	cfg.Triggers.Driver = map[string]any{"type": "parallel"}

	_, err := Build(cfg)
	assert.Error(t, err)
}

func TestBuild_RedisDriver(t *testing.T) {
	mr, _ := testutils.StartRedis(t)

	cfg := Default()
	cfg.Task.OutputDir = ""
	cfg.Triggers.Strict = true
	cfg.Triggers.Driver = map[string]any{"type": "redis", "addr": mr.Addr(), "channel": "lab"}
	cfg.fillDefaults()

	s, err := Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, "redis", s.Triggers.Driver().Name())
	require.NoError(t, s.Triggers.Send(3))
	require.NoError(t, s.Close())
}

func TestBuild_HumanModeHasNoResponder(t *testing.T) {
	cfg := Default()
	cfg.Task.OutputDir = ""
	cfg.Sim.Mode = "human"
	cfg.fillDefaults()

	s, err := Build(cfg)
	require.NoError(t, err)
	defer s.Close()
	assert.Nil(t, s.Context.Responder)
	assert.Equal(t, "disabled", s.Context.ResponderInfo.Source)
}

func TestBuild_RunStrictAppliesToTriggers(t *testing.T) {
	cfg := Default()
	cfg.Task.OutputDir = ""
	cfg.fillDefaults()
	assert.False(t, cfg.TriggersStrict())

	s, err := Build(cfg)
	require.NoError(t, err)
	assert.False(t, s.Triggers.Strict())
	require.NoError(t, s.Close())

	cfg.Sim.Strict = true
	assert.True(t, cfg.TriggersStrict())
	s, err = Build(cfg)
	require.NoError(t, err)
	assert.True(t, s.Triggers.Strict())
	require.NoError(t, s.Close())
}
