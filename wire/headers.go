package wire

import (
	"net/textproto"
	"strings"
)

// Field is a single header line. Name is stored in canonical form.
type Field struct {
	Name  string
	Value string
}

// Headers is an insertion-ordered header collection holding one value per
// canonical field name. Setting an existing name replaces its value in place,
// preserving the original position.
type Headers struct {
	fields []Field
}

// NewHeaders creates a Headers from the given fields, applied in order via Set.
func NewHeaders(fields ...Field) Headers {
	var h Headers
	for _, f := range fields {
		h.Set(f.Name, f.Value)
	}
	return h
}

func canonical(name string) string {
	return textproto.CanonicalMIMEHeaderKey(name)
}

// Get returns the value stored under name.
func (h *Headers) Get(name string) (string, bool) {
	name = canonical(name)
	for _, f := range h.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Set stores value under name, replacing any existing value.
func (h *Headers) Set(name, value string) {
	if name == "" {
		panic("wire: empty header name")
	}
	name = canonical(name)
	for i, f := range h.fields {
		if f.Name == name {
			h.fields[i].Value = value
			return
		}
	}
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// SetDefault stores value under name only if the name is absent.
// It reports whether the value was stored.
func (h *Headers) SetDefault(name, value string) bool {
	if _, ok := h.Get(name); ok {
		return false
	}
	h.Set(name, value)
	return true
}

// Del removes name. It reports whether the name was present.
func (h *Headers) Del(name string) bool {
	name = canonical(name)
	for i, f := range h.fields {
		if f.Name == name {
			h.fields = append(h.fields[:i], h.fields[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of stored fields.
func (h *Headers) Len() int { return len(h.fields) }

// Fields returns a copy of the stored fields in insertion order.
func (h *Headers) Fields() []Field {
	out := make([]Field, len(h.fields))
	copy(out, h.fields)
	return out
}

// Clone returns an independent copy.
func (h *Headers) Clone() Headers {
	return Headers{fields: h.Fields()}
}

// Equal reports whether both collections hold the same fields in the same order.
func (h *Headers) Equal(other Headers) bool {
	if len(h.fields) != len(other.fields) {
		return false
	}
	for i, f := range h.fields {
		if other.fields[i] != f {
			return false
		}
	}
	return true
}

// String renders the fields as CRLF-terminated lines.
func (h *Headers) String() string {
	var sb strings.Builder
	for _, f := range h.fields {
		sb.WriteString(f.Name)
		sb.WriteString(": ")
		sb.WriteString(f.Value)
		sb.WriteString("\r\n")
	}
	return sb.String()
}
