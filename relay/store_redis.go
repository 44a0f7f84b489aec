package relay

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kite-labs/relay-go/wire"
)

// RedisStore keeps at most one entry per request fingerprint in Redis,
// with the entry TTL enforced server-side in addition to the validator.
// The validator still runs on every read: the fingerprint is a hash, so a
// colliding or header-divergent entry is treated as a miss.
//
// Read failures are soft (Find reports a miss); write failures surface
// through Cache's error.
type RedisStore struct {
	cfg    storeConfig
	client redis.UniversalClient
	prefix string
	logger zerolog.Logger
}

// NewRedisStore creates a store on the given Redis client. Keys are
// namespaced under "relay:cache:".
func NewRedisStore(client redis.UniversalClient, opts ...StoreOption) *RedisStore {
	if client == nil {
		panic("relay: nil redis client")
	}
	return &RedisStore{
		cfg:    newStoreConfig(opts...),
		client: client,
		prefix: "relay:cache:",
		logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
}

func (s *RedisStore) key(req *wire.Request) string {
	return s.prefix + req.Fingerprint()
}

// Find implements Store.
func (s *RedisStore) Find(ctx context.Context, req *wire.Request) (*Entry, bool) {
	key := s.key(req)

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return nil, false
	}

	entry, err := decodeEntry(data)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("undecodable cache entry, evicting")
		s.client.Del(ctx, key)
		return nil, false
	}

	switch s.cfg.validator(req, entry) {
	case VerdictValid:
		return entry, true
	case VerdictExpired:
		s.client.Del(ctx, key)
		return nil, false
	default:
		return nil, false
	}
}

// Cache implements Store.
func (s *RedisStore) Cache(ctx context.Context, req *wire.Request, resp *wire.Response) error {
	data, err := encodeEntry(s.cfg.snapshot(req, resp))
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(req), data, s.cfg.ttl).Err(); err != nil {
		return fmt.Errorf("relay: writing cache entry to redis: %w", err)
	}
	return nil
}
