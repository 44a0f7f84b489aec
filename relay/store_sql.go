package relay

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/kite-labs/relay-go/wire"
)

// SQLSchema is the table the SQLStore expects. Run it (or an equivalent
// migration) before using the store.
const SQLSchema = `
CREATE TABLE IF NOT EXISTS relay_cache (
	fingerprint TEXT      NOT NULL,
	entry       TEXT      NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS relay_cache_fingerprint ON relay_cache (fingerprint);
`

// SQLStore keeps entries in a relational table keyed by request
// fingerprint. Find scans rows matching the fingerprint oldest-first with
// the validator (lazy eviction, first valid match wins), like the
// in-memory variant. Like RedisStore, the entry lifetime is additionally
// enforced server-side: every Cache call deletes rows older than the
// configured TTL, whatever the validator would say about them. Read
// failures are soft.
type SQLStore struct {
	cfg    storeConfig
	db     *sqlx.DB
	logger zerolog.Logger
}

// NewSQLStore creates a store on the given database handle.
func NewSQLStore(db *sqlx.DB, opts ...StoreOption) *SQLStore {
	if db == nil {
		panic("relay: nil database handle")
	}
	return &SQLStore{
		cfg:    newStoreConfig(opts...),
		db:     db,
		logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
}

type cacheRow struct {
	Entry     []byte    `db:"entry"`
	CreatedAt time.Time `db:"created_at"`
}

// Find implements Store.
func (s *SQLStore) Find(ctx context.Context, req *wire.Request) (*Entry, bool) {
	fingerprint := req.Fingerprint()

	query := s.db.Rebind(
		`SELECT entry, created_at FROM relay_cache WHERE fingerprint = ? ORDER BY created_at`,
	)
	var rows []cacheRow
	if err := s.db.SelectContext(ctx, &rows, query, fingerprint); err != nil {
		s.logger.Warn().Err(err).Msg("cache query failed, treating as miss")
		return nil, false
	}

	for _, row := range rows {
		entry, err := decodeEntry(row.Entry)
		if err != nil {
			s.logger.Warn().Err(err).Msg("undecodable cache row, evicting")
			s.deleteRow(ctx, fingerprint, row.CreatedAt)
			continue
		}
		switch s.cfg.validator(req, entry) {
		case VerdictValid:
			return entry, true
		case VerdictExpired:
			s.deleteRow(ctx, fingerprint, row.CreatedAt)
		}
	}
	return nil, false
}

// Cache implements Store.
func (s *SQLStore) Cache(ctx context.Context, req *wire.Request, resp *wire.Response) error {
	entry := s.cfg.snapshot(req, resp)
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	// Age-based server-side sweep, independent of the validator. Rows are
	// opaque blobs here; decoding the whole table to consult the validator
	// on every write would not scale.
	sweep := s.db.Rebind(`DELETE FROM relay_cache WHERE created_at < ?`)
	if _, err := s.db.ExecContext(ctx, sweep, s.cfg.clock.Now().Add(-s.cfg.ttl)); err != nil {
		s.logger.Warn().Err(err).Msg("cache sweep failed")
	}

	insert := s.db.Rebind(
		`INSERT INTO relay_cache (fingerprint, entry, created_at) VALUES (?, ?, ?)`,
	)
	if _, err := s.db.ExecContext(ctx, insert, req.Fingerprint(), data, entry.CreatedAt); err != nil {
		return fmt.Errorf("relay: writing cache row: %w", err)
	}
	return nil
}

func (s *SQLStore) deleteRow(ctx context.Context, fingerprint string, createdAt time.Time) {
	del := s.db.Rebind(`DELETE FROM relay_cache WHERE fingerprint = ? AND created_at = ?`)
	if _, err := s.db.ExecContext(ctx, del, fingerprint, createdAt); err != nil {
		s.logger.Warn().Err(err).Msg("cache eviction failed")
	}
}
