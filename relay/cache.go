package relay

import (
	"bytes"
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kite-labs/relay-go/wire"
)

// DefaultTTL is the default lifetime of a cache entry.
const DefaultTTL = 10 * time.Minute

// Verdict is a Validator's judgement of a cache entry for a given request.
type Verdict int

const (
	// VerdictValid means the entry may satisfy the request.
	VerdictValid Verdict = iota

	// VerdictInvalid means the entry does not match the request.
	VerdictInvalid

	// VerdictExpired means the entry has outlived its lifetime and must be
	// evicted regardless of the request.
	VerdictExpired
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case VerdictValid:
		return "valid"
	case VerdictInvalid:
		return "invalid"
	case VerdictExpired:
		return "expired"
	}
	return "unknown"
}

// Entry is one cached (request, response) pair with its creation instant.
type Entry struct {
	Request   *wire.Request
	Response  *wire.Response
	CreatedAt time.Time
}

// Validator computes a Verdict for a (request, entry) pair.
type Validator func(req *wire.Request, e *Entry) Verdict

// AllOf composes validators: components run in order and the first
// non-valid verdict short-circuits; only if every component reports valid
// is the combined verdict valid.
func AllOf(vs ...Validator) Validator {
	return func(req *wire.Request, e *Entry) Verdict {
		for _, v := range vs {
			if verdict := v(req, e); verdict != VerdictValid {
				return verdict
			}
		}
		return VerdictValid
	}
}

// Expire returns a validator that reports expired once the entry's
// creation instant plus ttl is behind the clock's now.
func Expire(ttl time.Duration, clk clock.Clock) Validator {
	return func(_ *wire.Request, e *Entry) Verdict {
		if clk.Now().After(e.CreatedAt.Add(ttl)) {
			return VerdictExpired
		}
		return VerdictValid
	}
}

func match(ok bool) Verdict {
	if ok {
		return VerdictValid
	}
	return VerdictInvalid
}

// MatchMethod validates method equality.
func MatchMethod(req *wire.Request, e *Entry) Verdict {
	return match(req.Method == e.Request.Method)
}

// MatchHost validates authority (host:port) equality.
func MatchHost(req *wire.Request, e *Entry) Verdict {
	return match(req.URL.Host == e.Request.URL.Host)
}

// MatchPath validates path equality.
func MatchPath(req *wire.Request, e *Entry) Verdict {
	return match(req.URL.Path == e.Request.URL.Path)
}

// MatchQuery validates raw query equality.
func MatchQuery(req *wire.Request, e *Entry) Verdict {
	return match(req.URL.RawQuery == e.Request.URL.RawQuery)
}

// MatchFragment validates fragment equality.
func MatchFragment(req *wire.Request, e *Entry) Verdict {
	return match(req.URL.Fragment == e.Request.URL.Fragment)
}

// MatchHeaders validates header equality, order included.
func MatchHeaders(req *wire.Request, e *Entry) Verdict {
	return match(req.Headers.Equal(e.Request.Headers))
}

// MatchBody validates body equality.
func MatchBody(req *wire.Request, e *Entry) Verdict {
	return match(bytes.Equal(req.Body, e.Request.Body))
}

// DefaultValidator composes the full default check: expiry at DefaultTTL
// first (so stale entries are always detected and evicted, whatever the
// request looks like), then equality of method, host, path, query,
// fragment, headers, and body.
func DefaultValidator(clk clock.Clock) Validator {
	return defaultValidator(DefaultTTL, clk)
}

func defaultValidator(ttl time.Duration, clk clock.Clock) Validator {
	return AllOf(
		Expire(ttl, clk),
		MatchMethod,
		MatchHost,
		MatchPath,
		MatchQuery,
		MatchFragment,
		MatchHeaders,
		MatchBody,
	)
}

// Store is a request-fingerprint cache of responses, consulted by the
// Transport before opening a connection.
//
// Find scans stored entries in order: an expired entry encountered during
// the scan is evicted as a side effect, an invalid entry is skipped, and
// the first valid entry wins (entries after the hit are not swept).
//
// Cache sweeps now-expired entries, then stores a fresh (request, response)
// snapshot. Stores never proactively sweep; expiry is detected lazily.
type Store interface {
	Find(ctx context.Context, req *wire.Request) (*Entry, bool)
	Cache(ctx context.Context, req *wire.Request, resp *wire.Response) error
}

// storeConfig carries the options shared by every Store implementation.
type storeConfig struct {
	validator Validator
	clock     clock.Clock
	ttl       time.Duration
}

// StoreOption configures a Store implementation.
type StoreOption func(*storeConfig)

// WithValidator replaces the default composed validator.
func WithValidator(v Validator) StoreOption {
	return func(cfg *storeConfig) { cfg.validator = v }
}

// WithClock replaces the wall clock, letting tests drive expiry with a
// mock clock.
func WithClock(clk clock.Clock) StoreOption {
	return func(cfg *storeConfig) { cfg.clock = clk }
}

// WithTTL replaces the default entry lifetime used by the default
// validator and by stores with server-side expiry.
func WithTTL(ttl time.Duration) StoreOption {
	return func(cfg *storeConfig) { cfg.ttl = ttl }
}

func newStoreConfig(opts ...StoreOption) storeConfig {
	cfg := storeConfig{
		clock: clock.New(),
		ttl:   DefaultTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.validator == nil {
		cfg.validator = defaultValidator(cfg.ttl, cfg.clock)
	}
	return cfg
}

// snapshot builds the stored Entry from live request/response objects.
func (cfg *storeConfig) snapshot(req *wire.Request, resp *wire.Response) *Entry {
	return &Entry{
		Request:   req.Clone(),
		Response:  resp.Clone(),
		CreatedAt: cfg.clock.Now(),
	}
}
