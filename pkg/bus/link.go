package bus

import (
	"context"

	"github.com/knxcheck/knxcheck-go/pkg/knx"
)

// Link is the raw telegram pipe to an installation: a tunnelling or
// routing connection, a daemon socket, or a simulator.
type Link interface {
	// Send transmits one telegram.
	Send(ctx context.Context, t knx.Telegram) error

	// Telegrams delivers telegrams received from the bus. The channel is
	// closed when the link goes down. Telegrams sent through this link
	// are not echoed back.
	Telegrams() <-chan knx.Telegram

	// Close shuts the link down.
	Close() error
}
