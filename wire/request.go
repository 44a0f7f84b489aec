package wire

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// imfFixDate is the IMF-fixdate format required for the Date header.
const imfFixDate = "Mon, 02 Jan 2006 15:04:05 GMT"

// Request is a mutable HTTP/1.1 request. A Request is owned by a single
// relay.Client until connect time; Clone gives each concurrent flow its
// own copy.
type Request struct {
	Method  string
	URL     *url.URL
	Headers Headers
	Body    []byte
}

// NewRequest creates a Request for the given method and absolute URL.
func NewRequest(method, rawURL string) (*Request, error) {
	if method == "" {
		return nil, fmt.Errorf("wire: empty request method")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("wire: parsing request url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("wire: request url %q has no host", rawURL)
	}
	return &Request{Method: method, URL: u}, nil
}

// EmptyRequest returns the zero-value request a fresh client starts with:
// GET against localhost root.
func EmptyRequest() *Request {
	return &Request{
		Method: "GET",
		URL:    &url.URL{Scheme: "http", Host: "localhost", Path: "/"},
	}
}

// Host returns the host portion of the authority, without the port.
func (r *Request) Host() string {
	if host, _, err := net.SplitHostPort(r.URL.Host); err == nil {
		return host
	}
	return r.URL.Host
}

// Port returns the numeric port of the authority, defaulting to 80.
func (r *Request) Port() int {
	if _, port, err := net.SplitHostPort(r.URL.Host); err == nil {
		if n, err := strconv.Atoi(port); err == nil {
			return n
		}
	}
	return 80
}

// Addr returns the host:port dial address for the request authority.
func (r *Request) Addr() string {
	return net.JoinHostPort(r.Host(), strconv.Itoa(r.Port()))
}

// Target returns the request-target (path plus query), defaulting to "/".
func (r *Request) Target() string {
	target := r.URL.EscapedPath()
	if target == "" {
		target = "/"
	}
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	return target
}

// FillDefaults completes the implicit headers a well-formed request needs
// before hitting the wire, leaving caller-supplied values untouched:
// Host, Date, Content-Length, and (for non-empty bodies) Content-Type.
func (r *Request) FillDefaults(now time.Time) {
	r.Headers.SetDefault("Host", r.URL.Host)
	r.Headers.SetDefault("Date", now.UTC().Format(imfFixDate))
	r.Headers.SetDefault("Content-Length", strconv.Itoa(len(r.Body)))
	if len(r.Body) > 0 {
		r.Headers.SetDefault("Content-Type", "text/plain; charset=utf-8")
	}
}

// String renders the request in wire form: request-line, field lines,
// blank line, body.
func (r *Request) String() string {
	var sb strings.Builder
	sb.WriteString(r.Method)
	sb.WriteString(" ")
	sb.WriteString(r.Target())
	sb.WriteString(" HTTP/1.1\r\n")
	sb.WriteString(r.Headers.String())
	sb.WriteString("\r\n")
	sb.Write(r.Body)
	return sb.String()
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	clone := &Request{
		Method:  r.Method,
		Headers: r.Headers.Clone(),
	}
	if r.URL != nil {
		u := *r.URL
		if r.URL.User != nil {
			user := *r.URL.User
			u.User = &user
		}
		clone.URL = &u
	}
	if r.Body != nil {
		clone.Body = make([]byte, len(r.Body))
		copy(clone.Body, r.Body)
	}
	return clone
}

// Fingerprint returns a stable hash of method, URL, and body, used as the
// coalescing and cache store key.
func (r *Request) Fingerprint() string {
	d := xxhash.New()
	d.WriteString(r.Method)
	d.WriteString("|")
	if r.URL != nil {
		d.WriteString(r.URL.String())
	}
	d.WriteString("|")
	d.Write(r.Body)
	return strconv.FormatUint(d.Sum64(), 16)
}
