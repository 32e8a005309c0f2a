package channel

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/edgetrack/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func fastConfig() QueueConfig {
	return QueueConfig{
		Buffer:      8,
		MaxAttempts: 3,
		Burst:       1,
		Backoff: BackoffConfig{
			InitialDelay: time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Millisecond,
		},
	}
}

type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *collectSink) Deliver(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collectSink) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collectSink) At(i int) Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[i]
}

func (c *collectSink) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Name)
	}
	return out
}

func serve(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
	})
}

func TestQueueDeliversEnqueuedEvents(t *testing.T) {
	testlog.Start(t)
	sink := &collectSink{}
	q := NewQueue(fastConfig(), sink, testlog.Logger(t))
	serve(t, q)

	props := map[string]string{"env": "prod"}
	q.Enqueue("R", "login", props)
	props["env"] = "mutated"

	require.Eventually(t, func() bool { return sink.Len() == 1 }, time.Second, time.Millisecond)
	ev := sink.At(0)
	require.Equal(t, "R", ev.Token)
	require.Equal(t, "login", ev.Name)
	require.Equal(t, "prod", ev.Properties["env"], "queue must copy caller properties")
	require.NotEmpty(t, ev.ID)
	require.EqualValues(t, 1, q.Stats().Delivered)
}

func TestQueueDropsWhenBufferFull(t *testing.T) {
	testlog.Start(t)
	cfg := fastConfig()
	cfg.Buffer = 2
	q := NewQueue(cfg, &collectSink{}, testlog.Logger(t))

	// not serving: third enqueue must not block
	q.Enqueue("R", "a", nil)
	q.Enqueue("R", "b", nil)
	q.Enqueue("R", "c", nil)

	stats := q.Stats()
	require.Equal(t, 2, stats.Pending)
	require.EqualValues(t, 1, stats.Dropped)
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	testlog.Start(t)
	var calls atomic.Int32
	sink := SinkFunc(func(context.Context, Event) error {
		calls.Add(1)
		return errors.New("collector unavailable")
	})
	q := NewQueue(fastConfig(), sink, testlog.Logger(t))
	serve(t, q)

	q.Enqueue("R", "x", nil)
	require.Eventually(t, func() bool { return q.Stats().Dropped == 1 }, time.Second, time.Millisecond)
	require.EqualValues(t, 3, calls.Load())
	require.EqualValues(t, 2, q.Stats().Retried)
}

func TestQueueRetrySucceeds(t *testing.T) {
	testlog.Start(t)
	var calls atomic.Int32
	sink := SinkFunc(func(context.Context, Event) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})
	q := NewQueue(fastConfig(), sink, testlog.Logger(t))
	serve(t, q)

	q.Enqueue("R", "x", nil)
	require.Eventually(t, func() bool { return q.Stats().Delivered == 1 }, time.Second, time.Millisecond)
	require.EqualValues(t, 0, q.Stats().Dropped)
}

func TestQueuePauseHoldsUntilResume(t *testing.T) {
	testlog.Start(t)
	sink := &collectSink{}
	q := NewQueue(fastConfig(), sink, testlog.Logger(t))
	serve(t, q)

	q.Pause("R/child")
	q.Enqueue("R/child", "held", nil)
	q.Enqueue("R", "free", nil)

	require.Eventually(t, func() bool { return sink.Len() == 1 && q.Stats().Held == 1 }, time.Second, time.Millisecond)
	require.Equal(t, []string{"free"}, sink.Names())

	q.Resume("R/child")
	require.Eventually(t, func() bool { return sink.Len() == 2 }, time.Second, time.Millisecond)
	require.Equal(t, []string{"free", "held"}, sink.Names())
	require.Equal(t, 0, q.Stats().Held)
}

func TestHTTPSinkPostsJSON(t *testing.T) {
	testlog.Start(t)
	var got Event
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("x-api-key")
		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink, err := NewHTTPSink(srv.URL, "api-key", time.Second)
	require.NoError(t, err)
	ev := NewEvent("R", "login", map[string]string{"env": "prod"}, time.Now())
	require.NoError(t, sink.Deliver(context.Background(), ev))
	require.Equal(t, "api-key", key)
	require.Equal(t, ev.ID, got.ID)
	require.Equal(t, "prod", got.Properties["env"])
}

func TestHTTPSinkNon2xxIsError(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink, err := NewHTTPSink(srv.URL, "", time.Second)
	require.NoError(t, err)
	require.Error(t, sink.Deliver(context.Background(), NewEvent("R", "x", nil, time.Now())))

	_, err = NewHTTPSink("  ", "", 0)
	require.Error(t, err)
}

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	got := NextBackoffDelay(cfg, 2, rng)
	if got < 250*time.Millisecond || got > 750*time.Millisecond {
		t.Fatalf("jitter out of range: %v", got)
	}
}

func TestRecorderTracksEventsAndPauses(t *testing.T) {
	testlog.Start(t)
	var r Recorder
	r.Enqueue("R", "a", nil)
	r.Enqueue("R/child", "b", map[string]string{"k": "v"})
	require.Equal(t, 2, r.Len())
	require.Len(t, r.EventsFor("R/child"), 1)
	require.Equal(t, "R:a,R/child:b", r.String())

	r.Pause("R")
	require.True(t, r.Paused("R"))
	r.Resume("R")
	require.False(t, r.Paused("R"))
}
