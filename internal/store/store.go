package store

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var (
	ErrEmptyKey = errors.New("store: empty key")
	ErrClosed   = errors.New("store: closed")
)

// Store is the durable key-value boundary consumed by the target tree.
type Store interface {
	// GetBool returns found=false when key has never been written.
	GetBool(key string) (value bool, found bool, err error)
	PutBool(key string, value bool) error
	Delete(key string) error
	Close() error
}

// EnabledKey derives the storage key for a target's own enabled flag.
func EnabledKey(token string) string {
	return "Target." + token + ".isEnabled"
}

// Memory is a process-local Store. Values do not survive restarts.
type Memory struct {
	mu     sync.RWMutex
	store  map[string]string
	closed bool
}

func NewMemory() *Memory {
	return &Memory{
		store: make(map[string]string),
	}
}

func (m *Memory) GetBool(key string) (bool, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, false, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, false, ErrClosed
	}
	raw, ok := m.store[key]
	if !ok {
		return false, false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, err
	}
	return v, true, nil
}

func (m *Memory) PutBool(key string, value bool) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.store[key] = strconv.FormatBool(value)
	return nil
}

func (m *Memory) Delete(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.store, key)
	return nil
}

// Keys lists stored keys with the given prefix in sorted order.
func (m *Memory) Keys(prefix string) []string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.store))
	for k := range m.store {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
