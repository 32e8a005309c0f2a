package target

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/danmuck/edgetrack/internal/channel"
	"github.com/danmuck/edgetrack/internal/observability"
	"github.com/danmuck/edgetrack/internal/properties"
	"github.com/danmuck/edgetrack/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures a Registry. Nil fields fall back to a discard channel,
// an in-memory store, DefaultLimits and the global logger.
type Options struct {
	Channel channel.Group
	Store   store.Store
	Limits  *properties.Limits
	Logger  *zerolog.Logger
}

// Stats counts TrackEvent outcomes since the registry was created.
type Stats struct {
	Sent       uint64 `json:"sent"`
	Suppressed uint64 `json:"suppressed"`
	Rejected   uint64 `json:"rejected"`
}

// Info is a read-only view of one target.
type Info struct {
	Token            string            `json:"token"`
	Parent           string            `json:"parent,omitempty"`
	Children         []string          `json:"children,omitempty"`
	Enabled          bool              `json:"enabled"`
	EffectiveEnabled bool              `json:"effective_enabled"`
	Properties       map[string]string `json:"properties,omitempty"`
}

// Registry maps tokens to targets and owns the lock guarding the tree.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*Target

	channel channel.Group
	store   store.Store
	limits  properties.Limits
	logger  zerolog.Logger

	sent       atomic.Uint64
	suppressed atomic.Uint64
	rejected   atomic.Uint64
}

func NewRegistry(opts Options) *Registry {
	r := &Registry{
		nodes:   make(map[string]*Target),
		channel: opts.Channel,
		store:   opts.Store,
		limits:  properties.DefaultLimits(),
		logger:  log.Logger,
	}
	if r.channel == nil {
		r.channel = channel.Discard{}
	}
	if r.store == nil {
		r.store = store.NewMemory()
	}
	if opts.Limits != nil {
		r.limits = *opts.Limits
	}
	if opts.Logger != nil {
		r.logger = *opts.Logger
	}
	r.logger = r.logger.With().Str("component", "target.registry").Logger()
	return r
}

// GetOrCreate returns the target registered for token, creating it as a root
// (parent == nil) or as a child of parent on first request. Exactly one
// Target ever exists per token.
//
// ErrInvalidHierarchy is returned when parent is not a live target of this
// registry, or when token is already registered under a different parent.
func (r *Registry) GetOrCreate(token string, parent *Target) (*Target, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}

	r.mu.RLock()
	existing, ok := r.nodes[token]
	var err error
	if ok {
		err = r.checkParentLocked(existing, parent)
	}
	r.mu.RUnlock()
	if ok {
		if err != nil {
			return nil, err
		}
		return existing, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.nodes[token]; ok {
		if err := r.checkParentLocked(existing, parent); err != nil {
			return nil, err
		}
		return existing, nil
	}

	parentToken := ""
	if parent != nil {
		if parent.registry != r {
			return nil, fmt.Errorf("%w: parent %q belongs to another registry", ErrInvalidHierarchy, parent.token)
		}
		if r.nodes[parent.token] != parent {
			return nil, fmt.Errorf("%w: parent %q is not registered", ErrInvalidHierarchy, parent.token)
		}
		parentToken = parent.token
	}

	t := &Target{
		registry: r,
		token:    token,
		parent:   parentToken,
		children: make(map[string]struct{}),
		enabled:  r.loadEnabledLocked(token),
		props:    properties.NewConfigurator(r.limits),
	}
	r.nodes[token] = t
	if parent != nil {
		parent.children[token] = struct{}{}
	}
	observability.SetTargetCount(len(r.nodes))
	r.logger.Debug().
		Str("token", token).
		Str("parent", parentToken).
		Bool("enabled", t.enabled).
		Msg("target created")
	return t, nil
}

// Lookup returns the target registered for token.
func (r *Registry) Lookup(token string) (*Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.nodes[token]
	return t, ok
}

// Remove unregisters a target that has no children.
func (r *Registry) Remove(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.nodes[token]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, token)
	}
	if len(t.children) > 0 {
		return fmt.Errorf("%w: %q has %d children", ErrHasChildren, token, len(t.children))
	}
	if p, ok := r.nodes[t.parent]; ok && t.parent != "" {
		delete(p.children, token)
	}
	delete(r.nodes, token)
	t.removed = true
	observability.SetTargetCount(len(r.nodes))
	r.logger.Debug().Str("token", token).Msg("target removed")
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Roots returns the parentless targets sorted by token.
func (r *Registry) Roots() []*Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Target
	for _, t := range r.nodes {
		if t.parent == "" {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].token < out[j].token })
	return out
}

// Snapshot describes every target, parents before children, ties by token.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.nodes))
	for _, t := range r.nodes {
		out = append(out, t.infoLocked())
	}
	depth := make(map[string]int, len(out))
	for _, info := range out {
		depth[info.Token] = len(r.chainLocked(r.nodes[info.Token]))
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := depth[out[i].Token], depth[out[j].Token]
		if di != dj {
			return di < dj
		}
		return out[i].Token < out[j].Token
	})
	return out
}

func (r *Registry) Stats() Stats {
	return Stats{
		Sent:       r.sent.Load(),
		Suppressed: r.suppressed.Load(),
		Rejected:   r.rejected.Load(),
	}
}

// Close releases the flag store. Targets must not be used afterwards.
func (r *Registry) Close() error {
	return r.store.Close()
}

func (r *Registry) checkParentLocked(existing, parent *Target) error {
	want := ""
	if parent != nil {
		want = parent.token
		if parent.registry != r {
			return fmt.Errorf("%w: parent %q belongs to another registry", ErrInvalidHierarchy, parent.token)
		}
		if r.nodes[parent.token] != parent {
			return fmt.Errorf("%w: parent %q is not registered", ErrInvalidHierarchy, parent.token)
		}
	}
	if existing.parent != want {
		return fmt.Errorf("%w: %q is registered under parent %q, requested %q",
			ErrInvalidHierarchy, existing.token, existing.parent, want)
	}
	return nil
}

func (r *Registry) loadEnabledLocked(token string) bool {
	v, found, err := r.store.GetBool(store.EnabledKey(token))
	if err != nil {
		r.logger.Warn().Err(err).Str("token", token).Msg("read enabled flag failed, defaulting to enabled")
		return true
	}
	if !found {
		return true
	}
	return v
}

// chainLocked returns t and its ancestors ordered root first.
func (r *Registry) chainLocked(t *Target) []*Target {
	var rev []*Target
	for n := t; n != nil; {
		rev = append(rev, n)
		if n.parent == "" {
			break
		}
		n = r.nodes[n.parent]
	}
	chain := make([]*Target, len(rev))
	for i, n := range rev {
		chain[len(rev)-1-i] = n
	}
	return chain
}

func (r *Registry) reject(t *Target, name string, err error) error {
	r.rejected.Add(1)
	observability.RecordEvent(observability.OutcomeRejected)
	r.logger.Debug().Err(err).Str("token", t.token).Str("event", name).Msg("event rejected")
	return err
}
