package http

import (
	"sync"
)

// AllSessions subscribes to every session.
const AllSessions = ""

// StreamManager fans act events out to server-sent event subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
	dropped     int
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe registers a buffered channel for sessionID, or for every session
// with AllSessions. The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			subs := sm.subscribers[sessionID]
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		})
	}
}

// Broadcast delivers msg to the session's subscribers and to AllSessions.
// Slow subscribers lose messages instead of blocking the responder.
func (sm *StreamManager) Broadcast(sessionID, msg string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	targets := []string{AllSessions}
	if sessionID != AllSessions {
		targets = append(targets, sessionID)
	}
	for _, id := range targets {
		for ch := range sm.subscribers[id] {
			select {
			case ch <- msg:
			default:
				sm.dropped++
			}
		}
	}
}

// Dropped counts messages lost to full subscriber buffers.
func (sm *StreamManager) Dropped() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.dropped
}
