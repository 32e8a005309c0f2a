package channel

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Group accepts fully resolved events for transport. Implementations must be
// safe for concurrent use and must not block the caller.
type Group interface {
	Enqueue(token, name string, props map[string]string)
}

// Pauser is implemented by groups that can hold back delivery per destination token.
type Pauser interface {
	Pause(token string)
	Resume(token string)
}

// Event is one accepted event as handed to a Sink.
type Event struct {
	ID         string            `json:"messageId"`
	Token      string            `json:"token"`
	Name       string            `json:"event"`
	Timestamp  time.Time         `json:"timestamp"`
	Properties map[string]string `json:"properties"`
}

// NewEvent stamps an event with a fresh ulid and copies props.
func NewEvent(token, name string, props map[string]string, now time.Time) Event {
	copied := make(map[string]string, len(props))
	for k, v := range props {
		copied[k] = v
	}
	return Event{
		ID:         ulid.Make().String(),
		Token:      token,
		Name:       name,
		Timestamp:  now.UTC(),
		Properties: copied,
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Enqueue(string, string, map[string]string) {}
