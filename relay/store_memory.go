package relay

import (
	"context"
	"sync"

	"github.com/kite-labs/relay-go/wire"
)

// MemoryStore is the reference Store: a mutex-guarded, unbounded entry
// list. Expired entries are evicted only when a scan reaches them; there
// is no size bound, so long-lived processes should prefer a store with
// server-side expiry (RedisStore) or pick a shorter TTL.
type MemoryStore struct {
	mu      sync.Mutex
	cfg     storeConfig
	entries []*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	return &MemoryStore{cfg: newStoreConfig(opts...)}
}

// Find implements Store.
func (s *MemoryStore) Find(_ context.Context, req *wire.Request) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for i, e := range s.entries {
		switch s.cfg.validator(req, e) {
		case VerdictExpired:
			continue // evicted
		case VerdictValid:
			kept = append(kept, s.entries[i:]...)
			s.entries = kept
			return e, true
		default:
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil, false
}

// Cache implements Store.
func (s *MemoryStore) Cache(_ context.Context, req *wire.Request, resp *wire.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if s.cfg.validator(req, e) == VerdictExpired {
			continue
		}
		kept = append(kept, e)
	}
	s.entries = append(kept, s.cfg.snapshot(req, resp))
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
