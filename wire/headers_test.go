package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaders_Set(t *testing.T) {
	tests := []struct {
		name       string
		sets       [][2]string
		wantFields []Field
	}{
		{
			name: "given distinct names, then insertion order is preserved",
			sets: [][2]string{{"Host", "example.com"}, {"Accept", "*/*"}, {"Date", "x"}},
			wantFields: []Field{
				{Name: "Host", Value: "example.com"},
				{Name: "Accept", Value: "*/*"},
				{Name: "Date", Value: "x"},
			},
		},
		{
			name: "given repeated name, then value is replaced in place",
			sets: [][2]string{{"Host", "a"}, {"Accept", "*/*"}, {"Host", "b"}},
			wantFields: []Field{
				{Name: "Host", Value: "b"},
				{Name: "Accept", Value: "*/*"},
			},
		},
		{
			name: "given non-canonical casing, then names are canonicalized",
			sets: [][2]string{{"content-type", "text/plain"}, {"CONTENT-TYPE", "application/json"}},
			wantFields: []Field{
				{Name: "Content-Type", Value: "application/json"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h Headers
			for _, kv := range tt.sets {
				h.Set(kv[0], kv[1])
			}
			assert.Equal(t, tt.wantFields, h.Fields())
		})
	}
}

func TestHeaders_SetDefault(t *testing.T) {
	var h Headers
	h.Set("Host", "example.com")

	assert.False(t, h.SetDefault("host", "other"))
	assert.True(t, h.SetDefault("Date", "now"))

	v, ok := h.Get("Host")
	require.True(t, ok)
	assert.Equal(t, "example.com", v)

	v, ok = h.Get("Date")
	require.True(t, ok)
	assert.Equal(t, "now", v)
}

func TestHeaders_Del(t *testing.T) {
	var h Headers
	h.Set("A", "1")
	h.Set("B", "2")

	assert.True(t, h.Del("a"))
	assert.False(t, h.Del("a"))
	assert.Equal(t, 1, h.Len())

	_, ok := h.Get("A")
	assert.False(t, ok)
}

func TestHeaders_String(t *testing.T) {
	h := NewHeaders(
		Field{Name: "Host", Value: "example.com"},
		Field{Name: "Content-Length", Value: "0"},
	)
	assert.Equal(t, "Host: example.com\r\nContent-Length: 0\r\n", h.String())
}

func TestHeaders_Clone(t *testing.T) {
	var h Headers
	h.Set("Host", "a")

	clone := h.Clone()
	clone.Set("Host", "b")

	v, _ := h.Get("Host")
	assert.Equal(t, "a", v, "mutating the clone must not affect the original")
}

func TestHeaders_Equal(t *testing.T) {
	a := NewHeaders(Field{Name: "A", Value: "1"}, Field{Name: "B", Value: "2"})
	b := NewHeaders(Field{Name: "A", Value: "1"}, Field{Name: "B", Value: "2"})
	c := NewHeaders(Field{Name: "B", Value: "2"}, Field{Name: "A", Value: "1"})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "order is part of equality")
}
