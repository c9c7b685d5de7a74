package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/nostrbackup/internal/event"
)

func TestEncodeReq(t *testing.T) {
	data, err := EncodeReq("sub1", []event.Filter{
		{Authors: []string{"p1"}},
		{Tags: map[string][]string{"p": {"p1"}}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `["REQ","sub1",{"authors":["p1"]},{"#p":["p1"]}]`, string(data))
}

func TestEncodeEventForwardsRawEvent(t *testing.T) {
	ev, err := event.Parse([]byte(`{"id":"e1","pubkey":"p1","kind":1,"sig":"xyz"}`))
	require.NoError(t, err)

	data, err := EncodeEvent(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `["EVENT",{"id":"e1","pubkey":"p1","kind":1,"sig":"xyz"}]`, string(data))
}

func TestEncodeClose(t *testing.T) {
	data, err := EncodeClose("sub1")
	require.NoError(t, err)
	assert.Equal(t, `["CLOSE","sub1"]`, string(data))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, env Envelope)
	}{
		{
			name:  "event",
			frame: `["EVENT","sub1",{"id":"e1","pubkey":"p1","kind":3}]`,
			check: func(t *testing.T, env Envelope) {
				assert.Equal(t, LabelEvent, env.Label)
				assert.Equal(t, "sub1", env.SubscriptionID)
				ev, err := env.ParseEvent()
				require.NoError(t, err)
				assert.Equal(t, "e1", ev.ID)
				assert.Equal(t, 3, ev.Kind)
			},
		},
		{
			name:  "eose",
			frame: `["EOSE","sub1"]`,
			check: func(t *testing.T, env Envelope) {
				assert.Equal(t, LabelEOSE, env.Label)
				assert.Equal(t, "sub1", env.SubscriptionID)
			},
		},
		{
			name:  "ok accepted",
			frame: `["OK","e1",true,""]`,
			check: func(t *testing.T, env Envelope) {
				assert.Equal(t, "e1", env.EventID)
				assert.True(t, env.Accepted)
			},
		},
		{
			name:  "ok rejected with reason",
			frame: `["OK","e1",false,"blocked: spam"]`,
			check: func(t *testing.T, env Envelope) {
				assert.False(t, env.Accepted)
				assert.Equal(t, "blocked: spam", env.Message)
			},
		},
		{
			name:  "ok without message",
			frame: `["OK","e1",true]`,
			check: func(t *testing.T, env Envelope) {
				assert.True(t, env.Accepted)
				assert.Empty(t, env.Message)
			},
		},
		{
			name:  "notice",
			frame: `["NOTICE","slow down"]`,
			check: func(t *testing.T, env Envelope) {
				assert.Equal(t, LabelNotice, env.Label)
				assert.Equal(t, "slow down", env.Message)
			},
		},
		{
			name:  "closed",
			frame: `["CLOSED","sub1","auth-required: x"]`,
			check: func(t *testing.T, env Envelope) {
				assert.Equal(t, "sub1", env.SubscriptionID)
				assert.Equal(t, "auth-required: x", env.Message)
			},
		},
		{
			name:  "unknown label",
			frame: `["AUTH","challenge"]`,
			check: func(t *testing.T, env Envelope) {
				assert.Equal(t, "AUTH", env.Label)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			tt.check(t, env)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, frame := range []string{
		`{}`,
		`[]`,
		`[1,2]`,
		`["EVENT","sub1"]`,
		`["EOSE"]`,
		`["OK","e1","yes"]`,
		`not json`,
	} {
		_, err := Decode([]byte(frame))
		require.Error(t, err, frame)
		assert.True(t, errors.Is(err, ErrMalformed), frame)
	}
}

func TestDecodeLeavesEventPayloadUnparsed(t *testing.T) {
	env, err := Decode([]byte(`["EVENT","other",{"kind":1}]`))
	require.NoError(t, err)
	assert.Equal(t, "other", env.SubscriptionID)

	_, err = env.ParseEvent()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))

	eose, err := Decode([]byte(`["EOSE","sub1"]`))
	require.NoError(t, err)
	_, err = eose.ParseEvent()
	assert.True(t, errors.Is(err, ErrMalformed))
}
