package relay

import (
	"fmt"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"github.com/kite-labs/relay-go/wire"
)

// entryRecord is the serialized form of an Entry shared by the file, Redis,
// and SQL stores. The response is persisted as wire text so the parse
// factory is the single source of truth for its structure.
type entryRecord struct {
	Method    string       `json:"method"`
	URL       string       `json:"url"`
	Headers   []wire.Field `json:"headers"`
	Body      []byte       `json:"body,omitempty"`
	Response  string       `json:"response"`
	CreatedAt time.Time    `json:"created_at"`
}

func encodeEntry(e *Entry) ([]byte, error) {
	return json.Marshal(recordFrom(e))
}

func decodeEntry(data []byte) (*Entry, error) {
	var rec entryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("relay: decoding cache entry: %w", err)
	}
	return rec.entry()
}

func encodeEntries(entries []*Entry) ([]byte, error) {
	recs := make([]entryRecord, len(entries))
	for i, e := range entries {
		recs[i] = recordFrom(e)
	}
	return json.Marshal(recs)
}

func decodeEntries(data []byte) ([]*Entry, error) {
	var recs []entryRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("relay: decoding cache entries: %w", err)
	}
	entries := make([]*Entry, len(recs))
	for i := range recs {
		e, err := recs[i].entry()
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}

func recordFrom(e *Entry) entryRecord {
	return entryRecord{
		Method:    e.Request.Method,
		URL:       e.Request.URL.String(),
		Headers:   e.Request.Headers.Fields(),
		Body:      e.Request.Body,
		Response:  e.Response.String(),
		CreatedAt: e.CreatedAt,
	}
}

func (rec *entryRecord) entry() (*Entry, error) {
	u, err := url.Parse(rec.URL)
	if err != nil {
		return nil, fmt.Errorf("relay: decoding cached request url: %w", err)
	}
	resp, err := wire.ParseResponse(rec.Response)
	if err != nil {
		return nil, fmt.Errorf("relay: decoding cached response: %w", err)
	}
	return &Entry{
		Request: &wire.Request{
			Method:  rec.Method,
			URL:     u,
			Headers: wire.NewHeaders(rec.Headers...),
			Body:    rec.Body,
		},
		Response:  resp,
		CreatedAt: rec.CreatedAt,
	}, nil
}
