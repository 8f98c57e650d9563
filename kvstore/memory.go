package kvstore

import (
	"container/heap"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	apperrors "github.com/kbukum/sessionkit/errors"
	"github.com/kbukum/sessionkit/logger"
)

// ErrWrongType is returned when a hash operation hits a string key or a
// string operation hits a hash key, matching Redis WRONGTYPE semantics.
var ErrWrongType = errors.New("kvstore: operation against a key holding the wrong kind of value")

// Memory is the in-process backend. Expiry runs off a single driving
// timer over a min-heap of (expiresAt, key) pairs rather than one timer
// per key; reads additionally filter expired entries so an expired entry
// is never observable even before the sweep fires.
type Memory struct {
	mu        sync.Mutex
	data      map[string]*memEntry
	expiries  expiryHeap
	timer     *time.Timer
	gen       uint64
	connected bool
	log       *logger.Logger
	now       func() time.Time
}

type memEntry struct {
	value     string
	hash      map[string]string
	isHash    bool
	expiresAt time.Time // zero means persistent
	gen       uint64    // invalidates stale heap items
}

// NewMemory creates an in-process backend.
func NewMemory(log *logger.Logger) *Memory {
	return &Memory{
		data: make(map[string]*memEntry),
		log:  log.WithComponent("kvstore.memory"),
		now:  time.Now,
	}
}

// Connect marks the backend ready. It always succeeds and is idempotent.
func (m *Memory) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Disconnect cancels the eviction timer and drops all entries.
func (m *Memory) Disconnect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.data = make(map[string]*memEntry)
	m.expiries = nil
	m.connected = false
	return nil
}

// Connected reports whether Connect has been called.
func (m *Memory) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Set stores a value. A ttl of 0 clears any existing TTL.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return apperrors.NotInitialized("set")
	}

	m.gen++
	entry := &memEntry{value: value, gen: m.gen}
	m.data[key] = entry
	m.scheduleLocked(key, entry, ttl)
	return nil
}

// Get retrieves a value, filtering expired entries.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return "", false, apperrors.NotInitialized("get")
	}

	entry, ok := m.liveEntryLocked(key)
	if !ok {
		return "", false, nil
	}
	if entry.isHash {
		return "", false, ErrWrongType
	}
	return entry.value, true, nil
}

// Del removes a key. Idempotent.
func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return apperrors.NotInitialized("del")
	}
	delete(m.data, key)
	return nil
}

// Expire attaches a TTL to an existing key. No-op if the key is absent.
func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return apperrors.NotInitialized("expire")
	}

	entry, ok := m.liveEntryLocked(key)
	if !ok {
		return nil
	}
	m.gen++
	entry.gen = m.gen
	m.scheduleLocked(key, entry, ttl)
	return nil
}

// Exists reports whether a key is present and unexpired.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return false, apperrors.NotInitialized("exists")
	}
	_, ok := m.liveEntryLocked(key)
	return ok, nil
}

// Keys returns keys matching pattern: exact, or prefix with one trailing '*'.
func (m *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, apperrors.NotInitialized("keys")
	}

	prefix, wildcard := strings.CutSuffix(pattern, "*")
	keys := make([]string, 0)
	for key := range m.data {
		if _, ok := m.liveEntryLocked(key); !ok {
			continue
		}
		if wildcard && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		} else if !wildcard && key == pattern {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// HSet sets a field in the hash at key, creating the hash if needed.
// The hash inherits whatever TTL is already anchored at the key.
func (m *Memory) HSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return apperrors.NotInitialized("hset")
	}

	entry, ok := m.liveEntryLocked(key)
	if !ok {
		m.gen++
		entry = &memEntry{isHash: true, hash: make(map[string]string), gen: m.gen}
		m.data[key] = entry
	}
	if !entry.isHash {
		return ErrWrongType
	}
	entry.hash[field] = value
	return nil
}

// HGet retrieves a hash field.
func (m *Memory) HGet(_ context.Context, key, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return "", false, apperrors.NotInitialized("hget")
	}

	entry, ok := m.liveEntryLocked(key)
	if !ok {
		return "", false, nil
	}
	if !entry.isHash {
		return "", false, ErrWrongType
	}
	value, ok := entry.hash[field]
	return value, ok, nil
}

// HGetAll returns a copy of all fields of the hash at key.
func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, apperrors.NotInitialized("hgetall")
	}

	out := make(map[string]string)
	entry, ok := m.liveEntryLocked(key)
	if !ok {
		return out, nil
	}
	if !entry.isHash {
		return nil, ErrWrongType
	}
	for field, value := range entry.hash {
		out[field] = value
	}
	return out, nil
}

// HDel removes a field. Removing the last field keeps the key alive:
// field deletion and key deletion are independent operations.
func (m *Memory) HDel(_ context.Context, key, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return apperrors.NotInitialized("hdel")
	}

	entry, ok := m.liveEntryLocked(key)
	if !ok {
		return nil
	}
	if !entry.isHash {
		return ErrWrongType
	}
	delete(entry.hash, field)
	return nil
}

// Len returns the number of live entries. Useful for test assertions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.data {
		if _, ok := m.liveEntryLocked(key); ok {
			n++
		}
	}
	return n
}

// --- expiry machinery ---

// liveEntryLocked returns the entry at key, lazily evicting it if expired.
// Callers must hold m.mu.
func (m *Memory) liveEntryLocked(key string) (*memEntry, bool) {
	entry, ok := m.data[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.data, key)
		return nil, false
	}
	return entry, true
}

// scheduleLocked anchors a TTL at key. The entry's generation must already
// be bumped so stale heap items are ignored. Callers must hold m.mu.
func (m *Memory) scheduleLocked(key string, entry *memEntry, ttl time.Duration) {
	if ttl <= 0 {
		entry.expiresAt = time.Time{}
		return
	}
	entry.expiresAt = m.now().Add(ttl)
	heap.Push(&m.expiries, expiryItem{at: entry.expiresAt, key: key, gen: entry.gen})
	m.rearmLocked()
}

// rearmLocked points the driving timer at the earliest pending expiry.
// Callers must hold m.mu.
func (m *Memory) rearmLocked() {
	if len(m.expiries) == 0 {
		return
	}
	next := m.expiries[0].at
	delay := next.Sub(m.now())
	if delay < 0 {
		delay = 0
	}
	if m.timer == nil {
		m.timer = time.AfterFunc(delay, m.evictDue)
	} else {
		m.timer.Reset(delay)
	}
}

// evictDue removes every entry whose deadline has passed, then re-arms.
func (m *Memory) evictDue() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return
	}

	now := m.now()
	for len(m.expiries) > 0 {
		item := m.expiries[0]
		if item.at.After(now) {
			break
		}
		heap.Pop(&m.expiries)

		entry, ok := m.data[item.key]
		if !ok || entry.gen != item.gen {
			// Superseded by a later set/expire on the same key.
			continue
		}
		delete(m.data, item.key)
		m.log.Debug("evicted expired key", logger.Fields(logger.FieldKey, item.key))
	}
	m.rearmLocked()
}

type expiryItem struct {
	at  time.Time
	key string
	gen uint64
}

type expiryHeap []expiryItem

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h expiryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x interface{}) { *h = append(*h, x.(expiryItem)) }
func (h *expiryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// compile-time interface check
var _ Backend = (*Memory)(nil)
