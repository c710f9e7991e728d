/*
Package trialkit is the trial core of a psychophysics runtime: a frame-locked phase engine, a trigger runtime with a planned/executed audit trail, and a responder adapter that lets the same task run with a participant, a QA bot or a simulated subject.

# Concept

A task is a sequence of phases (fixation, cue, target, feedback). Each phase presents stimuli for a whole number of display frames, emits event codes to recording equipment on the exact flip they belong to, and optionally captures a response. In the qa and sim modes the response comes from a Responder instead of the keyboard; every action it returns is validated before the phase uses it, and both the raw and the used action are written to the audit trail.

# Key Features

  - Frame-locked timing: durations are quantized to the refresh period and stamped on flip times.
  - Trigger audit: every emission is planned before it is executed, so a trail can be verified offline.
  - Pluggable responders: scripted, random and remote (HTTP) responders share one validation path.
  - Drivers: mock, serial, callable, fan-out and Redis pub/sub.

# Usage

The Rig bundles a headless display, keyboard, trigger runtime and responder context.

	rig, err := trialkit.New(domain.SessionInfo{Mode: domain.ModeSim, Seed: 7})
	if err != nil {
		log.Fatal(err)
	}
	defer rig.Close()

	target := rig.Phase("target")
	_ = target.AddStim(headless.NewVisual("arrow"))
	rec, err := target.CaptureResponse([]string{"f", "j"}, phase.Fixed(time.Second),
		phase.CorrectKeys("f"),
		phase.OnsetTrigger(31),
		phase.ResponseTriggers(map[string]int{"f": 41, "j": 42}),
	)
	if err != nil {
		log.Fatal(err)
	}
	log.Println(rec.Key, rec.Hit)

The trialkit command runs a cueing demo task from a YAML config, verifies audit trails and serves responders over HTTP.
*/
package trialkit
