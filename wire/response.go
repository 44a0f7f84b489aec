package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Response is a parsed HTTP/1.1 response. The engine builds a new Response
// per connection; instances are not mutated after construction.
type Response struct {
	// Version is the HTTP-version token from the status line, e.g. "HTTP/1.1".
	Version string

	// StatusCode is the three-digit status code, kept as a string to
	// preserve the exact wire bytes.
	StatusCode string

	// Reason is the reason phrase, possibly empty.
	Reason string

	Headers Headers
	Body    []byte
}

// ParseResponse parses raw response text per the RFC 2616 grammar:
// status-line, field lines, blank line, body.
func ParseResponse(raw string) (*Response, error) {
	head, body, found := strings.Cut(raw, "\r\n\r\n")
	if !found {
		return nil, fmt.Errorf("wire: response has no header terminator")
	}

	lines := strings.Split(head, "\r\n")
	resp := &Response{}
	if err := resp.parseStatusLine(lines[0]); err != nil {
		return nil, err
	}

	for _, line := range lines[1:] {
		name, value, found := strings.Cut(line, ":")
		if !found || name == "" {
			return nil, fmt.Errorf("wire: malformed field line %q", line)
		}
		resp.Headers.Set(name, strings.TrimSpace(value))
	}

	if body != "" {
		resp.Body = []byte(body)
	}
	return resp, nil
}

// parseStatusLine splits "HTTP-Version SP 3DIGIT SP Reason-Phrase".
func (r *Response) parseStatusLine(line string) error {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return fmt.Errorf("wire: malformed status line %q", line)
	}
	if !strings.HasPrefix(parts[0], "HTTP/") {
		return fmt.Errorf("wire: status line %q has no HTTP version", line)
	}

	code := parts[1]
	if len(code) != 3 {
		return fmt.Errorf("wire: status code %q is not three digits", code)
	}
	for i := 0; i < len(code); i++ {
		// Exactly 3DIGIT; strconv would let a sign through.
		if code[i] < '0' || code[i] > '9' {
			return fmt.Errorf("wire: status code %q is not numeric", code)
		}
	}

	r.Version = parts[0]
	r.StatusCode = code
	if len(parts) == 3 {
		r.Reason = parts[2]
	}
	return nil
}

// Code returns the status code as an int.
func (r *Response) Code() int {
	n, _ := strconv.Atoi(r.StatusCode)
	return n
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response) IsSuccess() bool {
	code := r.Code()
	return code >= 200 && code < 300
}

// IsError reports whether the status code is 4xx or 5xx.
func (r *Response) IsError() bool {
	return r.Code() >= 400
}

// String renders the response in wire form. ParseResponse(resp.String())
// recovers an equal Response.
func (r *Response) String() string {
	var sb strings.Builder
	sb.WriteString(r.Version)
	sb.WriteString(" ")
	sb.WriteString(r.StatusCode)
	if r.Reason != "" {
		sb.WriteString(" ")
		sb.WriteString(r.Reason)
	}
	sb.WriteString("\r\n")
	sb.WriteString(r.Headers.String())
	sb.WriteString("\r\n")
	sb.Write(r.Body)
	return sb.String()
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	clone := &Response{
		Version:    r.Version,
		StatusCode: r.StatusCode,
		Reason:     r.Reason,
		Headers:    r.Headers.Clone(),
	}
	if r.Body != nil {
		clone.Body = make([]byte, len(r.Body))
		copy(clone.Body, r.Body)
	}
	return clone
}
