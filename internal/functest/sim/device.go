// Package sim provides a simulated KNX installation that stands in for a
// real bus link.
package sim

import (
	"fmt"
	"time"

	"github.com/knxcheck/knxcheck-go/pkg/dpt"
	"github.com/knxcheck/knxcheck-go/pkg/knx"
)

// Device is a simulated bus device.
type Device struct {
	// Name identifies the device in logs.
	Name string

	// Address is the individual address stamped on the device's telegrams.
	Address knx.IndividualAddress

	// Reactions run when a write arrives on their trigger address.
	Reactions []Reaction
}

// Reaction describes how a device answers a write.
type Reaction struct {
	// Trigger is the group address the device listens to.
	Trigger     knx.GroupAddress
	TriggerType dpt.Code

	// Feedback is the group address the device reports on.
	Feedback     knx.GroupAddress
	FeedbackType dpt.Code

	// Service is knx.APCIWrite for a status push or knx.APCIResponse for
	// a read reply.
	Service knx.APCI

	// Delay before the feedback telegram is sent.
	Delay time.Duration

	// Values maps a received value to the reported value. A value missing
	// from a non-nil map leaves the device silent.
	Values map[int64]int64

	// Fixed, when present, is reported regardless of the received value.
	Fixed dpt.Value

	// Empty sends a push without payload.
	Empty bool
}

// Validate checks that the service is one a device can send.
func (r Reaction) Validate() error {
	switch r.Service {
	case knx.APCIWrite, knx.APCIResponse:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownService, r.Service)
}

// respond computes the feedback telegram for a write carrying data.
func (r Reaction) respond(data []byte) (knx.Telegram, bool) {
	if r.Empty {
		return knx.Telegram{Destination: r.Feedback, APCI: r.Service}, true
	}

	out := r.Fixed
	if out.IsAbsent() {
		in, ok := dpt.DecodeWidth(data, r.TriggerType.Width()).Get()
		if !ok {
			return knx.Telegram{}, false
		}
		if r.Values != nil {
			mapped, ok := r.Values[in]
			if !ok {
				return knx.Telegram{}, false
			}
			in = mapped
		}
		out = dpt.Some(in)
	}

	v, _ := out.Get()
	width := r.FeedbackType.Width()
	return knx.Telegram{
		Destination: r.Feedback,
		APCI:        r.Service,
		Data:        dpt.EncodeWidth(v, width),
		Compact:     width <= 6,
	}, true
}
