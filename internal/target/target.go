package target

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/danmuck/edgetrack/internal/channel"
	"github.com/danmuck/edgetrack/internal/observability"
	"github.com/danmuck/edgetrack/internal/properties"
	"github.com/danmuck/edgetrack/internal/store"
)

// MaxEventNameLength bounds TrackEvent names in characters.
const MaxEventNameLength = 256

// Result reports what TrackEvent did with an accepted call.
type Result int

const (
	// ResultSent means the event was handed to the channel group.
	ResultSent Result = iota + 1
	// ResultSuppressed means the target or an ancestor is disabled.
	ResultSuppressed
)

func (r Result) String() string {
	switch r {
	case ResultSent:
		return "sent"
	case ResultSuppressed:
		return "suppressed"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Target is one node of the transmission target tree. All mutable fields are
// guarded by the owning registry's lock.
type Target struct {
	registry *Registry
	token    string
	// parent is the parent's token, resolved through the registry; "" for a root.
	parent string

	children map[string]struct{}
	enabled  bool
	props    *properties.Configurator
	removed  bool
}

func (t *Target) Token() string {
	return t.token
}

// Parent returns the parent target, or false for a root.
func (t *Target) Parent() (*Target, bool) {
	if t.parent == "" {
		return nil, false
	}
	t.registry.mu.RLock()
	defer t.registry.mu.RUnlock()
	p, ok := t.registry.nodes[t.parent]
	return p, ok
}

// Children returns direct children sorted by token.
func (t *Target) Children() []*Target {
	t.registry.mu.RLock()
	defer t.registry.mu.RUnlock()
	out := make([]*Target, 0, len(t.children))
	for token := range t.children {
		if c, ok := t.registry.nodes[token]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].token < out[j].token })
	return out
}

// ChildTransmissionTarget returns the child registered for token, creating it on first use.
func (t *Target) ChildTransmissionTarget(token string) (*Target, error) {
	return t.registry.GetOrCreate(token, t)
}

// IsEnabled reports the effective state: this target and every ancestor are enabled.
func (t *Target) IsEnabled() bool {
	t.registry.mu.RLock()
	defer t.registry.mu.RUnlock()
	return t.effectiveEnabledLocked()
}

// OwnEnabled reports this target's stored flag, ignoring ancestors.
func (t *Target) OwnEnabled() bool {
	t.registry.mu.RLock()
	defer t.registry.mu.RUnlock()
	return t.enabled
}

// SetEnabled persists and sets this target's own flag. Descendant flags are
// never touched; they follow through the cascading check.
func (t *Target) SetEnabled(enabled bool) error {
	r := t.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.removed {
		return fmt.Errorf("%w: %q", ErrRemoved, t.token)
	}
	if err := r.store.PutBool(store.EnabledKey(t.token), enabled); err != nil {
		return fmt.Errorf("target: persist enabled flag for %q: %w", t.token, err)
	}
	t.enabled = enabled
	r.logger.Info().Str("token", t.token).Bool("enabled", enabled).Msg("target enablement changed")
	return nil
}

func (t *Target) SetProperty(name, value string) error {
	t.registry.mu.Lock()
	defer t.registry.mu.Unlock()
	if t.removed {
		return fmt.Errorf("%w: %q", ErrRemoved, t.token)
	}
	return t.props.SetProperty(name, value)
}

// RemoveProperty drops the local value so an ancestor's value, if any, applies again.
func (t *Target) RemoveProperty(name string) error {
	t.registry.mu.Lock()
	defer t.registry.mu.Unlock()
	if t.removed {
		return fmt.Errorf("%w: %q", ErrRemoved, t.token)
	}
	t.props.RemoveProperty(name)
	return nil
}

// OwnProperties returns a copy of the properties set directly on this target.
func (t *Target) OwnProperties() map[string]string {
	t.registry.mu.RLock()
	defer t.registry.mu.RUnlock()
	return t.props.Own()
}

// EffectiveProperties merges own properties over every ancestor's; the nearest definition wins.
func (t *Target) EffectiveProperties() map[string]string {
	t.registry.mu.RLock()
	defer t.registry.mu.RUnlock()
	return t.resolveLocked()
}

// Info describes this target.
func (t *Target) Info() Info {
	t.registry.mu.RLock()
	defer t.registry.mu.RUnlock()
	return t.infoLocked()
}

// Removed reports whether the target was unregistered.
func (t *Target) Removed() bool {
	t.registry.mu.RLock()
	defer t.registry.mu.RUnlock()
	return t.removed
}

// TrackEvent resolves properties, applies call-site overrides and hands the
// event to the channel group. A disabled chain suppresses the event without
// error.
func (t *Target) TrackEvent(name string, props map[string]string) (Result, error) {
	r := t.registry
	if !utf8.ValidString(name) {
		return 0, r.reject(t, name, fmt.Errorf("%w: name %q is not valid UTF-8", ErrInvalidEventName, name))
	}
	if strings.TrimSpace(name) == "" {
		return 0, r.reject(t, name, fmt.Errorf("%w: name is required", ErrInvalidEventName))
	}
	if utf8.RuneCountInString(name) > MaxEventNameLength {
		return 0, r.reject(t, name, fmt.Errorf("%w: name exceeds %d characters", ErrInvalidEventName, MaxEventNameLength))
	}
	if err := r.limits.ValidateMap(props); err != nil {
		return 0, r.reject(t, name, err)
	}

	r.mu.RLock()
	if t.removed {
		r.mu.RUnlock()
		return 0, r.reject(t, name, fmt.Errorf("%w: %q", ErrRemoved, t.token))
	}
	enabled := t.effectiveEnabledLocked()
	var effective map[string]string
	if enabled {
		effective = t.resolveLocked()
	}
	r.mu.RUnlock()

	if !enabled {
		r.suppressed.Add(1)
		observability.RecordEvent(observability.OutcomeSuppressed)
		r.logger.Debug().Str("token", t.token).Str("event", name).Msg("event suppressed, target chain disabled")
		return ResultSuppressed, nil
	}

	r.channel.Enqueue(t.token, name, properties.Merge(effective, props))
	r.sent.Add(1)
	observability.RecordEvent(observability.OutcomeSent)
	return ResultSent, nil
}

// Pause holds back transport for this target's token when the channel group supports it.
func (t *Target) Pause() {
	if p, ok := t.registry.channel.(channel.Pauser); ok {
		p.Pause(t.token)
	}
}

// Resume releases events held by Pause.
func (t *Target) Resume() {
	if p, ok := t.registry.channel.(channel.Pauser); ok {
		p.Resume(t.token)
	}
}

func (t *Target) String() string {
	return t.token
}

func (t *Target) effectiveEnabledLocked() bool {
	if t.removed {
		return false
	}
	for _, n := range t.registry.chainLocked(t) {
		if !n.enabled {
			return false
		}
	}
	return true
}

func (t *Target) resolveLocked() map[string]string {
	chain := t.registry.chainLocked(t)
	configs := make([]*properties.Configurator, len(chain))
	for i, n := range chain {
		configs[i] = n.props
	}
	return properties.Resolve(configs...)
}

func (t *Target) infoLocked() Info {
	children := make([]string, 0, len(t.children))
	for token := range t.children {
		children = append(children, token)
	}
	sort.Strings(children)
	return Info{
		Token:            t.token,
		Parent:           t.parent,
		Children:         children,
		Enabled:          t.enabled,
		EffectiveEnabled: t.effectiveEnabledLocked(),
		Properties:       t.props.Own(),
	}
}
