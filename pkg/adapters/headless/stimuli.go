package headless

import "time"

// Visual is a stimulus that only counts its draws.
type Visual struct {
	Name  string
	Draws int
}

// NewVisual creates a named visual stimulus.
func NewVisual(name string) *Visual {
	return &Visual{Name: name}
}

func (v *Visual) Draw() { v.Draws++ }

// Sound is an audio stimulus of fixed length.
type Sound struct {
	Name   string
	Length time.Duration
	Plays  int
}

// NewSound creates a sound of the given length.
func NewSound(name string, length time.Duration) *Sound {
	return &Sound{Name: name, Length: length}
}

// Draw is a no-op; sounds are played, never drawn.
func (s *Sound) Draw() {}

func (s *Sound) Play() { s.Plays++ }

func (s *Sound) Duration() time.Duration { return s.Length }
