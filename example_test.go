package trialkit_test

import (
	"fmt"
	"log"
	"time"

	"github.com/aretw0/trialkit"
	"github.com/aretw0/trialkit/pkg/adapters/headless"
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/phase"
	"github.com/aretw0/trialkit/pkg/sim"
)

// ExampleNew_simulated runs one target phase answered by a scripted responder.
func ExampleNew_simulated() {
	rig, err := trialkit.New(
		domain.SessionInfo{Mode: domain.ModeSim, Seed: 7},
		trialkit.WithResponder(sim.NewScripted("j", 300*time.Millisecond)),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer rig.Close()

	target := rig.Phase("target")
	_ = target.AddStim(headless.NewVisual("arrow_right"))
	rec, err := target.CaptureResponse([]string{"f", "j"}, phase.Fixed(time.Second),
		phase.CorrectKeys("j"),
	)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(rec.Key, rec.Hit, rec.Validation.Status)
	// Output: j true ok
}

// ExampleNew_human scripts keyboard presses on the headless display clock.
func ExampleNew_human() {
	rig, err := trialkit.New(domain.SessionInfo{Mode: domain.ModeHuman})
	if err != nil {
		log.Fatal(err)
	}
	defer rig.Close()

	target := rig.Phase("target")
	_ = target.AddStim(headless.NewVisual("arrow_left"))
	rig.Keyboard.PressAfter("f", 250*time.Millisecond)
	rec, err := target.CaptureResponse([]string{"f", "j"}, phase.Fixed(time.Second),
		phase.CorrectKeys("f"),
	)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(rec.Key, rec.Hit)
	// Output: f true
}
