package relay

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kite-labs/relay-go/wire"
)

// FileStore persists its entry list as one serialized blob in a single
// flat file, fully rewritten on every mutation. I/O failures are soft:
// Find behaves as if the cache were empty and Cache reports the error.
//
// The file is guarded against concurrent use within one process only;
// writers in separate processes can race each other.
type FileStore struct {
	mu     sync.Mutex
	cfg    storeConfig
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a store backed by the file at path. The file is
// created on the first Cache call.
func NewFileStore(path string, opts ...StoreOption) *FileStore {
	if path == "" {
		panic("relay: empty cache file path")
	}
	return &FileStore{
		cfg:    newStoreConfig(opts...),
		path:   path,
		logger: zerolog.New(os.Stderr).With().Timestamp().Str("cache_file", path).Logger(),
	}
}

// Find implements Store.
func (s *FileStore) Find(_ context.Context, req *wire.Request) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		s.logger.Warn().Err(err).Msg("cache read failed, treating as empty")
		return nil, false
	}

	var (
		kept    []*Entry
		hit     *Entry
		evicted bool
	)
	for i, e := range entries {
		switch s.cfg.validator(req, e) {
		case VerdictExpired:
			evicted = true
		case VerdictValid:
			hit = e
			kept = append(kept, entries[i:]...)
		default:
			kept = append(kept, e)
		}
		if hit != nil {
			break
		}
	}

	if evicted {
		if err := s.save(kept); err != nil {
			s.logger.Warn().Err(err).Msg("cache write-back after eviction failed")
		}
	}
	return hit, hit != nil
}

// Cache implements Store.
func (s *FileStore) Cache(_ context.Context, req *wire.Request, resp *wire.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		// An unreadable list is replaced wholesale by the next write.
		s.logger.Warn().Err(err).Msg("cache read failed, starting fresh")
		entries = nil
	}

	var kept []*Entry
	for _, e := range entries {
		if s.cfg.validator(req, e) == VerdictExpired {
			continue
		}
		kept = append(kept, e)
	}
	kept = append(kept, s.cfg.snapshot(req, resp))

	if err := s.save(kept); err != nil {
		return fmt.Errorf("relay: writing cache file: %w", err)
	}
	return nil
}

func (s *FileStore) load() ([]*Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return decodeEntries(data)
}

func (s *FileStore) save(entries []*Entry) error {
	data, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
