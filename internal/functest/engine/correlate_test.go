package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/knxcheck/knxcheck-go/pkg/bus"
	"github.com/knxcheck/knxcheck-go/pkg/dpt"
	"github.com/knxcheck/knxcheck-go/pkg/knx"
)

func msg(addr string, kind knx.APCI, payload []byte) bus.Message {
	return bus.Message{Destination: addr, Kind: kind, Payload: payload, Received: time.Now()}
}

func TestCorrelateMessages(t *testing.T) {
	fb := dpt.New(1, "1/1/2")

	tests := []struct {
		name     string
		msgs     []bus.Message
		expected dpt.Value
		want     Result
	}{
		{
			name:     "absent expectation",
			msgs:     nil,
			expected: dpt.Absent(),
			want:     Success,
		},
		{
			name:     "absent expectation ignores mismatches",
			msgs:     []bus.Message{msg("1/1/2", knx.APCIWrite, []byte{0})},
			expected: dpt.Absent(),
			want:     Success,
		},
		{
			name:     "nothing observed",
			expected: dpt.Bool(true),
			want:     Failure,
		},
		{
			name:     "status push match",
			msgs:     []bus.Message{msg("1/1/2", knx.APCIWrite, []byte{1})},
			expected: dpt.Bool(true),
			want:     Success,
		},
		{
			name: "exact match wins over earlier mismatch",
			msgs: []bus.Message{
				msg("1/1/2", knx.APCIWrite, []byte{0}),
				msg("1/1/2", knx.APCIResponse, []byte{0}),
				msg("1/1/2", knx.APCIWrite, []byte{1}),
			},
			expected: dpt.Bool(true),
			want:     Success,
		},
		{
			name:     "read reply with matching value",
			msgs:     []bus.Message{msg("1/1/2", knx.APCIResponse, []byte{1})},
			expected: dpt.Bool(true),
			want:     Response,
		},
		{
			name:     "read reply without payload",
			msgs:     []bus.Message{msg("1/1/2", knx.APCIResponse, nil)},
			expected: dpt.Bool(true),
			want:     Failure,
		},
		{
			name:     "status push mismatch",
			msgs:     []bus.Message{msg("1/1/2", knx.APCIWrite, []byte{0})},
			expected: dpt.Bool(true),
			want:     Response,
		},
		{
			name:     "status push without payload",
			msgs:     []bus.Message{msg("1/1/2", knx.APCIWrite, nil)},
			expected: dpt.Bool(false),
			want:     Response,
		},
		{
			name:     "read request ignored",
			msgs:     []bus.Message{msg("1/1/2", knx.APCIRead, nil)},
			expected: dpt.Bool(true),
			want:     Failure,
		},
		{
			name:     "other address ignored",
			msgs:     []bus.Message{msg("1/1/3", knx.APCIWrite, []byte{1})},
			expected: dpt.Bool(true),
			want:     Failure,
		},
		{
			name:     "two-level notation",
			msgs:     []bus.Message{msg("1/258", knx.APCIWrite, []byte{1})},
			expected: dpt.Bool(true),
			want:     Success,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CorrelateMessages(tt.msgs, fb, tt.expected))
		})
	}
}

func TestCorrelateSignedValues(t *testing.T) {
	fb := dpt.New(6, "2/0/1")

	got := CorrelateMessages([]bus.Message{
		msg("2/0/1", knx.APCIWrite, dpt.EncodeWidth(-5, 8)),
	}, fb, dpt.Some(-5))
	assert.Equal(t, Success, got)
}

func TestResultText(t *testing.T) {
	for _, r := range []Result{Success, Response, Failure} {
		text, err := r.MarshalText()
		assert.NoError(t, err)

		var back Result
		assert.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, r, back)
	}

	var r Result
	assert.Error(t, r.UnmarshalText([]byte("maybe")))
	assert.Equal(t, "RESPONSE", Response.String())
}
