package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kite-labs/relay-go/wire"
)

func TestAction_Matches(t *testing.T) {
	req, err := wire.NewRequest("GET", "http://example.com/")
	require.NoError(t, err)
	resp := &wire.Response{Version: "HTTP/1.1", StatusCode: "200", Reason: "OK"}
	boom := errors.New("boom")

	tests := []struct {
		name    string
		action  Action
		trigger string
		payload any
		want    bool
	}{
		{
			name:    "given matching name and payload type, then it matches",
			action:  Connect,
			trigger: TriggerConnect,
			payload: req,
			want:    true,
		},
		{
			name:    "given wrong trigger name, then it does not match",
			action:  Connect,
			trigger: TriggerConnected,
			payload: req,
		},
		{
			name:    "given wrong payload type, then it does not match",
			action:  Connected,
			trigger: TriggerConnected,
			payload: "not a response",
		},
		{
			name:    "given connected with response, then it matches",
			action:  Connected,
			trigger: TriggerConnected,
			payload: resp,
			want:    true,
		},
		{
			name:    "given disconnected alias not-sent, then superset matches",
			action:  Disconnected,
			trigger: TriggerNotSent,
			payload: boom,
			want:    true,
		},
		{
			name:    "given disconnected alias malformed, then superset matches",
			action:  Disconnected,
			trigger: TriggerMalformed,
			payload: boom,
			want:    true,
		},
		{
			name:    "given disconnected with non-error payload, then it rejects",
			action:  Disconnected,
			trigger: TriggerDisconnected,
			payload: "nope",
		},
		{
			name:    "given unrelated name, then disconnected superset rejects",
			action:  Disconnected,
			trigger: TriggerSent,
			payload: boom,
		},
		{
			name:    "given exception with error, then it matches",
			action:  Exception,
			trigger: TriggerException,
			payload: boom,
			want:    true,
		},
		{
			name:    "given any lifecycle trigger, then All matches",
			action:  All,
			trigger: TriggerReceiving,
			payload: "raw",
			want:    true,
		},
		{
			name:    "given exception trigger, then All rejects",
			action:  All,
			trigger: TriggerException,
			payload: boom,
		},
		{
			name:    "given custom multi-name action, then each name matches",
			action:  NewAction("a", "b"),
			trigger: "b",
			payload: nil,
			want:    true,
		},
		{
			name:    "given custom regexp action, then pattern matches",
			action:  NewActionRegexp("custom", `^custom(-\w+)?$`),
			trigger: "custom-extra",
			payload: 42,
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.action.Matches(tt.trigger, tt.payload))
		})
	}
}

func TestAction_Or(t *testing.T) {
	combined := Sent.Or(Received)

	assert.True(t, combined.Matches(TriggerSent, "raw"))
	assert.True(t, combined.Matches(TriggerReceived, &wire.Response{}))
	assert.False(t, combined.Matches(TriggerSent, 42), "left operand keeps its payload filter")
	assert.False(t, combined.Matches(TriggerConnected, &wire.Response{}))
	assert.Equal(t, TriggerSent, combined.Name())
}

func TestNewAction_Empty(t *testing.T) {
	assert.Panics(t, func() { NewAction() })
}
