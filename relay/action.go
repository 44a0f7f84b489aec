package relay

import (
	"regexp"

	"github.com/kite-labs/relay-go/wire"
)

// Trigger names emitted by the connection pipeline. These strings and their
// payload types are the stable contract between the engine and user code.
const (
	TriggerConnect      = "connect"      // payload *wire.Request
	TriggerConnected    = "connected"    // payload *wire.Response
	TriggerDisconnected = "disconnected" // payload error
	TriggerSending      = "sending"      // payload *wire.Request
	TriggerSent         = "sent"         // payload string (raw text written)
	TriggerNotSent      = "not-sent"     // payload error
	TriggerReceiving    = "receiving"    // payload string (raw text read)
	TriggerReceived     = "received"     // payload *wire.Response
	TriggerNotReceived  = "not-received" // payload error
	TriggerMalformed    = "malformed"    // payload error
	TriggerException    = "exception"    // payload error
)

// Action selects which trigger invocations a callback receives. An Action
// matches on the trigger name (exact set or regular expression) and on the
// payload type. Actions are immutable value objects; the predefined vars
// below cover the whole pipeline lifecycle.
type Action struct {
	name    string
	names   []string
	pattern *regexp.Regexp
	match   func(trigger string, payload any) bool
	accepts func(any) bool
}

// NewAction creates an Action matching any of the given trigger names
// exactly, with no payload filtering.
func NewAction(names ...string) Action {
	if len(names) == 0 {
		panic("relay: action needs at least one trigger name")
	}
	return Action{name: names[0], names: names}
}

// NewActionRegexp creates an Action whose trigger names are matched by the
// given anchored regular expression. The name is used for diagnostics and
// as the trigger name when the Action itself is triggered.
func NewActionRegexp(name, expr string) Action {
	return Action{name: name, pattern: regexp.MustCompile(expr)}
}

// Accepting returns a copy of the Action that additionally requires the
// payload to satisfy the given predicate.
func (a Action) Accepting(accepts func(any) bool) Action {
	a.accepts = accepts
	return a
}

// Or returns an Action matching whenever either operand matches. Each
// operand keeps its own payload filter.
func (a Action) Or(b Action) Action {
	return Action{
		name: a.name,
		match: func(trigger string, payload any) bool {
			return a.Matches(trigger, payload) || b.Matches(trigger, payload)
		},
	}
}

// Matches reports whether the Action selects the given trigger invocation.
func (a Action) Matches(trigger string, payload any) bool {
	if a.match != nil {
		if !a.match(trigger, payload) {
			return false
		}
	} else if !a.matchesName(trigger) {
		return false
	}
	return a.accepts == nil || a.accepts(payload)
}

func (a Action) matchesName(trigger string) bool {
	if a.pattern != nil {
		return a.pattern.MatchString(trigger)
	}
	for _, n := range a.names {
		if n == trigger {
			return true
		}
	}
	return false
}

// Name returns the Action's primary trigger name.
func (a Action) Name() string { return a.name }

func isRequest(p any) bool {
	_, ok := p.(*wire.Request)
	return ok
}

func isResponse(p any) bool {
	_, ok := p.(*wire.Response)
	return ok
}

func isText(p any) bool {
	_, ok := p.(string)
	return ok
}

func isError(p any) bool {
	_, ok := p.(error)
	return ok
}

// Predefined actions for the pipeline lifecycle.
var (
	// Connect matches the trigger that starts a connection.
	Connect = NewAction(TriggerConnect).Accepting(isRequest)

	// Connected matches the successful terminal event carrying the response.
	Connected = NewAction(TriggerConnected).Accepting(isResponse)

	// Sending matches the pre-dial event carrying the outgoing request,
	// still open for mutation.
	Sending = NewAction(TriggerSending).Accepting(isRequest)

	// Sent matches the post-write event carrying the raw text written.
	Sent = NewAction(TriggerSent).Accepting(isText)

	// NotSent matches a write failure.
	NotSent = NewAction(TriggerNotSent).Accepting(isError)

	// Receiving matches the post-read event carrying the raw text read.
	Receiving = NewAction(TriggerReceiving).Accepting(isText)

	// Received matches the post-parse event carrying the response.
	Received = NewAction(TriggerReceived).Accepting(isResponse)

	// NotReceived matches a read failure.
	NotReceived = NewAction(TriggerNotReceived).Accepting(isError)

	// Malformed matches a response parse failure.
	Malformed = NewAction(TriggerMalformed).Accepting(isError)

	// Disconnected matches every way a connection can fail: the dial
	// failure itself plus the not-sent, not-received, and malformed
	// aliases. Register on it to observe all failures in one place.
	Disconnected = NewActionRegexp(
		TriggerDisconnected,
		`^(disconnected|not-sent|not-received|malformed)$`,
	).Accepting(isError)

	// Exception matches callback failures surfaced by the dispatcher.
	Exception = NewAction(TriggerException).Accepting(isError)

	// All matches every trigger except "exception".
	All = Action{name: "all", match: func(trigger string, _ any) bool {
		return trigger != TriggerException
	}}
)
