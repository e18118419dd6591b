package interactive

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knxcheck/knxcheck-go/pkg/bus"
	"github.com/knxcheck/knxcheck-go/pkg/dpt"
	"github.com/knxcheck/knxcheck-go/pkg/knx"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"true", 1, false},
		{"ON", 1, false},
		{"false", 0, false},
		{"off", 0, false},
		{"127", 127, false},
		{"-5", -5, false},
		{"0x1F", 31, false},
		{"half", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseValue(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintDPT(t *testing.T) {
	var buf bytes.Buffer
	printDPT(&buf, "fb1", dpt.New(1, "1/1/2", dpt.Bool(true), dpt.Absent()))
	assert.Contains(t, buf.String(), "1/1/2")
	assert.Contains(t, buf.String(), "[1 -]")

	buf.Reset()
	printDPT(&buf, "cmd", nil)
	assert.Contains(t, buf.String(), "cmd  -")
}

func TestPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	printMessage(&buf, bus.Message{
		Destination: "1/1/2",
		Source:      "1.1.20",
		Kind:        knx.APCIResponse,
		Payload:     []byte{0x7F},
		Received:    time.Date(2026, 3, 14, 9, 30, 1, 250_000_000, time.UTC),
	})

	out := buf.String()
	assert.Contains(t, out, "09:30:01.250")
	assert.Contains(t, out, "1.1.20 -> 1/1/2")
	assert.Contains(t, out, "7F")
}
