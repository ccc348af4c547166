// Package events carries structured run events from the pipeline to
// whichever presentation layer is attached. The core never prints; it
// publishes here.
package events

import "sync"

// Type discriminates run events.
type Type int

const (
	// TypeProgress is a percentage update within a stage.
	TypeProgress Type = iota
	// TypeMessage is a human-readable line.
	TypeMessage
	// TypeStageComplete marks the end of a named stage.
	TypeStageComplete
)

// Event is a single structured run event.
type Event struct {
	Type    Type
	Stage   string
	Percent float64 // -1 when unknown
	Message string
	// Replace hints that a renderer may overwrite the previous progress line.
	Replace bool
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// that falls behind loses events rather than stalling a rip.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 256)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers an event to every subscriber, dropping on full buffers.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes all subscriber channels. Publish must not be called after.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

// Message publishes a plain message event.
func (b *Bus) Message(text string) {
	b.Publish(Event{Type: TypeMessage, Percent: -1, Message: text})
}

// Progress publishes a progress event.
func (b *Bus) Progress(stage string, percent float64, message string, replace bool) {
	b.Publish(Event{Type: TypeProgress, Stage: stage, Percent: percent, Message: message, Replace: replace})
}

// StageComplete publishes a stage-completion event.
func (b *Bus) StageComplete(stage, message string) {
	b.Publish(Event{Type: TypeStageComplete, Stage: stage, Percent: -1, Message: message})
}
