package bus

import (
	"context"
	"time"

	"github.com/knxcheck/knxcheck-go/pkg/dpt"
	"github.com/knxcheck/knxcheck-go/pkg/knx"
)

// Gateway is the engine's view of the bus.
type Gateway interface {
	// Write sends a group write and returns once the telegram was handed
	// to the link.
	Write(ctx context.Context, address string, payload Payload) error

	// Read sends a group read request.
	Read(ctx context.Context, address string) error

	// Collect starts recording the telegrams observed on address for at
	// most timeout. The collection stops early when ctx ends or when the
	// caller closes it.
	Collect(ctx context.Context, address string, timeout time.Duration) (*Collection, error)
}

// Payload is an encoded datapoint value ready for the bus.
type Payload struct {
	Data []byte

	// Compact payloads (six bits or fewer) travel inside the APCI octet.
	Compact bool
}

// PayloadFor encodes v at the declared width of d.
func PayloadFor(d *dpt.DPT, v int64) Payload {
	return Payload{
		Data:    d.Encode(v),
		Compact: d.DeclaredWidth() <= 6,
	}
}

// Message is one telegram observed on a collected address.
type Message struct {
	Destination string
	Source      string

	// Kind distinguishes status pushes (knx.APCIWrite), read replies
	// (knx.APCIResponse) and read requests (knx.APCIRead).
	Kind knx.APCI

	// Payload is nil for read requests.
	Payload []byte

	Received time.Time
}

// IsStatusPush reports whether the message is an unsolicited group write.
func (m Message) IsStatusPush() bool { return m.Kind == knx.APCIWrite }

// IsReadReply reports whether the message answers a read request.
func (m Message) IsReadReply() bool { return m.Kind == knx.APCIResponse }

// MessageFromTelegram converts a received telegram.
func MessageFromTelegram(t knx.Telegram) Message {
	received := t.Timestamp
	if received.IsZero() {
		received = time.Now()
	}
	return Message{
		Destination: t.Destination.String(),
		Source:      t.Source.String(),
		Kind:        t.APCI,
		Payload:     t.Data,
		Received:    received,
	}
}
