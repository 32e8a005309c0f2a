package channel

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/edgetrack/internal/observability"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// QueueConfig defines buffering, pacing and retry for a Queue.
type QueueConfig struct {
	// Buffer bounds both the pending queue and events held for paused tokens.
	Buffer int
	// MaxAttempts bounds sink deliveries per event, including the first.
	MaxAttempts int
	// RatePerSecond paces sink deliveries; zero means unlimited.
	RatePerSecond float64
	Burst         int
	Backoff       BackoffConfig
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Buffer:        1024,
		MaxAttempts:   5,
		RatePerSecond: 0,
		Burst:         1,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultQueueConfig.
func (c QueueConfig) WithDefaults() QueueConfig {
	def := DefaultQueueConfig()
	if c.Buffer <= 0 {
		c.Buffer = def.Buffer
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.Burst <= 0 {
		c.Burst = def.Burst
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	return c
}

// QueueStats is a point-in-time view of queue counters.
type QueueStats struct {
	Pending   int    `json:"pending"`
	Held      int    `json:"held"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Retried   uint64 `json:"retried"`
}

// Queue is an asynchronous Group. Enqueue hands events to a bounded buffer
// and Serve drains it into a Sink.
type Queue struct {
	cfg     QueueConfig
	sink    Sink
	logger  zerolog.Logger
	limiter *rate.Limiter
	events  chan Event

	mu     sync.Mutex
	paused map[string]bool
	held   []Event
	rng    *rand.Rand

	delivered atomic.Uint64
	dropped   atomic.Uint64
	retried   atomic.Uint64
}

func NewQueue(cfg QueueConfig, sink Sink, logger zerolog.Logger) *Queue {
	cfg = cfg.WithDefaults()
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Queue{
		cfg:     cfg,
		sink:    sink,
		logger:  logger.With().Str("component", "channel.queue").Logger(),
		limiter: rate.NewLimiter(limit, cfg.Burst),
		events:  make(chan Event, cfg.Buffer),
		paused:  make(map[string]bool),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Enqueue never blocks. A full buffer drops the event and counts it.
func (q *Queue) Enqueue(token, name string, props map[string]string) {
	q.offer(NewEvent(token, name, props, time.Now()))
}

func (q *Queue) offer(ev Event) bool {
	select {
	case q.events <- ev:
		return true
	default:
		q.drop(ev, "buffer full")
		return false
	}
}

// Pause holds back delivery of events for token until Resume.
func (q *Queue) Pause(token string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused[token] = true
	q.logger.Debug().Str("token", token).Msg("paused")
}

// Resume re-queues events held for token.
func (q *Queue) Resume(token string) {
	q.mu.Lock()
	delete(q.paused, token)
	var release []Event
	kept := q.held[:0]
	for _, ev := range q.held {
		if ev.Token == token {
			release = append(release, ev)
			continue
		}
		kept = append(kept, ev)
	}
	q.held = kept
	q.mu.Unlock()

	q.logger.Debug().Str("token", token).Int("released", len(release)).Msg("resumed")
	for _, ev := range release {
		q.offer(ev)
	}
}

func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	held := len(q.held)
	q.mu.Unlock()
	return QueueStats{
		Pending:   len(q.events),
		Held:      held,
		Delivered: q.delivered.Load(),
		Dropped:   q.dropped.Load(),
		Retried:   q.retried.Load(),
	}
}

// Serve drains the buffer until ctx is done.
func (q *Queue) Serve(ctx context.Context) error {
	q.logger.Info().Int("buffer", q.cfg.Buffer).Msg("serving")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-q.events:
			if q.hold(ev) {
				continue
			}
			q.deliver(ctx, ev)
		}
	}
}

func (q *Queue) String() string {
	return "channel.Queue"
}

func (q *Queue) hold(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.paused[ev.Token] {
		return false
	}
	if len(q.held) >= q.cfg.Buffer {
		q.drop(ev, "hold buffer full")
		return true
	}
	q.held = append(q.held, ev)
	return true
}

func (q *Queue) deliver(ctx context.Context, ev Event) {
	for attempt := 1; attempt <= q.cfg.MaxAttempts; attempt++ {
		if err := q.limiter.Wait(ctx); err != nil {
			return
		}
		start := time.Now()
		err := q.sink.Deliver(ctx, ev)
		observability.RecordDelivery(err == nil, time.Since(start))
		if err == nil {
			q.delivered.Add(1)
			return
		}
		if ctx.Err() != nil {
			return
		}
		q.logger.Warn().
			Err(err).
			Str("token", ev.Token).
			Str("event", ev.Name).
			Str("message_id", ev.ID).
			Int("attempt", attempt).
			Msg("delivery failed")
		if attempt == q.cfg.MaxAttempts {
			break
		}
		q.retried.Add(1)
		q.mu.Lock()
		delay := NextBackoffDelay(q.cfg.Backoff, attempt, q.rng)
		q.mu.Unlock()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	q.drop(ev, "attempts exhausted")
}

func (q *Queue) drop(ev Event, reason string) {
	q.dropped.Add(1)
	observability.RecordDropped()
	q.logger.Warn().
		Str("token", ev.Token).
		Str("event", ev.Name).
		Str("message_id", ev.ID).
		Str("reason", reason).
		Msg("event dropped")
}
