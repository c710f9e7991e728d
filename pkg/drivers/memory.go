package drivers

import (
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
)

// Sent is one event seen by the memory driver.
type Sent struct {
	At    time.Time
	Event domain.TriggerEvent
}

// Memory records events instead of touching hardware.
// Safe for concurrent use.
type Memory struct {
	*settings
	mu     sync.Mutex
	sent   []Sent
	opened bool
}

// NewMemory creates a memory driver named "mock".
func NewMemory(opts ...Option) *Memory {
	return &Memory{settings: newSettings("mock", opts)}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = false
	return nil
}

// Send records the event. wait is ignored.
func (m *Memory) Send(event domain.TriggerEvent, wait bool) error {
	m.mu.Lock()
	m.sent = append(m.sent, Sent{At: time.Now(), Event: event})
	m.mu.Unlock()
	if m.output != nil && event.Code != nil {
		fmt.Fprintf(m.output, "[MockTrigger] Sent code: %d\n", *event.Code)
	}
	return nil
}

// Sent returns a copy of everything recorded so far.
func (m *Memory) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}

// Codes returns the codes recorded so far, skipping payload-only events.
func (m *Memory) Codes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var codes []int
	for _, s := range m.sent {
		if s.Event.Code != nil {
			codes = append(codes, *s.Event.Code)
		}
	}
	return codes
}

// IsOpen reports whether Open was called without a matching Close.
func (m *Memory) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}
