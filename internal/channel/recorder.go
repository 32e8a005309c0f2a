package channel

import (
	"strings"
	"sync"
	"time"
)

// Recorder is an in-memory Group that keeps every enqueued event. Intended for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	paused map[string]int
}

func (r *Recorder) Enqueue(token, name string, props map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NewEvent(token, name, props, time.Now()))
}

// Events returns a copy of everything enqueued so far, in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventsFor returns the events enqueued for token.
func (r *Recorder) EventsFor(token string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Token == token {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Pause counts pause requests; recorded events are not held back.
func (r *Recorder) Pause(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused == nil {
		r.paused = make(map[string]int)
	}
	r.paused[token]++
}

func (r *Recorder) Resume(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused[token] > 0 {
		r.paused[token]--
	}
}

// Paused reports whether token has more pauses than resumes.
func (r *Recorder) Paused(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused[token] > 0
}

func (r *Recorder) String() string {
	var names []string
	for _, ev := range r.Events() {
		names = append(names, ev.Token+":"+ev.Name)
	}
	return strings.Join(names, ",")
}
