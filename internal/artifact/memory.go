package artifact

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

type memKey struct {
	runID string
	t     Type
}

type memEntry struct {
	content []byte
	info    Info
	meta    map[string]string
}

// MemoryStore is a map-backed Store. Each key is consistent on its own; nothing
// coordinates writes to the same key from different callers.
type MemoryStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	entries map[memKey]memEntry
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the clock used for CreatedAt.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:     time.Now,
		entries: make(map[memKey]memEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Save(ctx context.Context, runID string, t Type, content []byte, meta map[string]string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	if err := CheckKey(runID, t); err != nil {
		return Info{}, err
	}
	buf := append([]byte(nil), content...)

	s.mu.Lock()
	defer s.mu.Unlock()

	k := memKey{runID: runID, t: t}
	createdAt := s.now()
	if prev, ok := s.entries[k]; ok {
		createdAt = prev.info.CreatedAt
	}
	info := NewInfo(runID, t, buf, createdAt)
	s.entries[k] = memEntry{content: buf, info: info, meta: CopyMeta(meta)}
	return info, nil
}

func (s *MemoryStore) Load(ctx context.Context, runID string, t Type) (Stored, error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}
	if err := CheckKey(runID, t); err != nil {
		return Stored{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[memKey{runID: runID, t: t}]
	if !ok {
		return Stored{}, ErrNotFound
	}
	return Stored{
		Content:  append([]byte(nil), e.content...),
		Info:     e.info,
		Metadata: CopyMeta(e.meta),
	}, nil
}

func (s *MemoryStore) Exists(ctx context.Context, runID string, t Type) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := CheckKey(runID, t); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[memKey{runID: runID, t: t}]
	return ok, nil
}

func (s *MemoryStore) Delete(ctx context.Context, runID string, t *Type) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckRunID(runID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t != nil {
		delete(s.entries, memKey{runID: runID, t: *t})
		return nil
	}
	for k := range s.entries {
		if k.runID == runID {
			delete(s.entries, k)
		}
	}
	return nil
}

// Len returns the number of stored artifacts across all runs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Count returns how many artifacts of type t exist across all runs.
func (s *MemoryStore) Count(t Type) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.entries {
		if k.t == t {
			n++
		}
	}
	return n
}
