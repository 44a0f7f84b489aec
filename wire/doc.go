// Package wire holds the HTTP/1.1 value objects exchanged between the
// relay pipeline and its listeners: a mutable Request, an immutable-in-practice
// Response, and the ordered Headers collection shared by both.
//
// The types serialize to and parse from the RFC 2616 wire grammar
// (request-line / status-line, CRLF-separated field lines, blank line, body).
// Request.String produces the exact bytes the socket engine writes;
// ParseResponse is the factory the engine uses on the bytes it reads back.
package wire
