package phase

import (
	"time"

	"github.com/aretw0/trialkit/pkg/ports"
)

// Display modes after a response inside a fixed window.
const (
	DisplayStimuli = "stimuli"
	DisplayBlank   = "blank"
)

type settings struct {
	onsetTrigger     *int
	offsetTrigger    *int
	responseTrigger  *int
	responseTriggers map[string]int
	timeoutTrigger   *int
	correctKeys      []string
	highlight        ports.Stimulus
	highlights       map[string]ports.Stimulus
	dynamicHighlight bool
	terminate        bool
	fixedWindow      bool
	postDisplay      string
	maxDuration      *time.Duration
	minWait          *time.Duration
	closeDisplay     bool
}

// Opt configures a single phase verb. Verbs ignore options they do not use.
type Opt func(*settings)

func newSettings(opts []Opt) *settings {
	s := &settings{terminate: true, postDisplay: DisplayStimuli}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnsetTrigger sends code on the onset flip.
func OnsetTrigger(code int) Opt {
	return func(s *settings) { s.onsetTrigger = &code }
}

// OffsetTrigger sends code on the last flip of Show.
func OffsetTrigger(code int) Opt {
	return func(s *settings) { s.offsetTrigger = &code }
}

// ResponseTrigger sends code when a response is registered.
func ResponseTrigger(code int) Opt {
	return func(s *settings) { s.responseTrigger = &code }
}

// ResponseTriggers sends a per-key code when a response is registered.
func ResponseTriggers(codes map[string]int) Opt {
	return func(s *settings) { s.responseTriggers = codes }
}

// TimeoutTrigger sends code when the window ends without a response.
func TimeoutTrigger(code int) Opt {
	return func(s *settings) { s.timeoutTrigger = &code }
}

// CorrectKeys restricts which keys count as hits. It defaults to every valid key.
func CorrectKeys(keys ...string) Opt {
	return func(s *settings) { s.correctKeys = keys }
}

// Highlight draws stim around the chosen response.
func Highlight(stim ports.Stimulus) Opt {
	return func(s *settings) { s.highlight = stim }
}

// Highlights draws a per-key stimulus around the chosen response.
func Highlights(stims map[string]ports.Stimulus) Opt {
	return func(s *settings) { s.highlights = stims }
}

// DynamicHighlight keeps polling after the first response and moves the
// highlight to each new key.
func DynamicHighlight() Opt {
	return func(s *settings) { s.dynamicHighlight = true }
}

// TerminateOnResponse controls early termination. It defaults to true.
func TerminateOnResponse(terminate bool) Opt {
	return func(s *settings) { s.terminate = terminate }
}

// FixedResponseWindow makes Run last its full window regardless of responses.
func FixedResponseWindow() Opt {
	return func(s *settings) { s.fixedWindow = true }
}

// PostResponseDisplay selects what a fixed window shows after a response:
// DisplayStimuli or DisplayBlank.
func PostResponseDisplay(mode string) Opt {
	return func(s *settings) { s.postDisplay = mode }
}

// MaxDuration sets the Run window explicitly.
func MaxDuration(d time.Duration) Opt {
	return func(s *settings) { s.maxDuration = &d }
}

// MinWait ignores keys pressed earlier than d in WaitAndContinue.
func MinWait(d time.Duration) Opt {
	return func(s *settings) { s.minWait = &d }
}

// Terminate closes the display after WaitAndContinue.
func Terminate() Opt {
	return func(s *settings) { s.closeDisplay = true }
}

func (s *settings) responseCode(key string) *int {
	if s.responseTriggers != nil {
		if code, ok := s.responseTriggers[key]; ok {
			return &code
		}
		return nil
	}
	return s.responseTrigger
}

func (s *settings) highlightFor(key string) ports.Stimulus {
	if s.highlights != nil {
		return s.highlights[key]
	}
	return s.highlight
}
