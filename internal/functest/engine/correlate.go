package engine

import (
	"github.com/knxcheck/knxcheck-go/pkg/bus"
	"github.com/knxcheck/knxcheck-go/pkg/dpt"
	"github.com/knxcheck/knxcheck-go/pkg/knx"
)

// CorrelateMessages classifies the messages observed on a feedback
// address against the expected value of one row.
//
// A status push carrying the expected value is Success and ends the scan.
// A read reply with a payload, or a status push with a missing or
// different payload, makes the verdict Response unless a later push
// matches. Read requests are ignored. With nothing relevant the verdict
// is Failure. An absent expectation is always Success.
func CorrelateMessages(msgs []bus.Message, fb *dpt.DPT, expected dpt.Value) Result {
	want, ok := expected.Get()
	if !ok {
		return Success
	}

	result := Failure
	for _, m := range msgs {
		if !sameAddress(m.Destination, fb.Address) {
			continue
		}
		switch {
		case m.IsStatusPush():
			if m.Payload != nil {
				if got, ok := fb.Decode(m.Payload).Get(); ok && got == want {
					return Success
				}
			}
			result = Response
		case m.IsReadReply():
			if m.Payload != nil {
				result = Response
			}
		}
	}
	return result
}

// sameAddress compares group addresses in any accepted notation.
func sameAddress(a, b string) bool {
	if a == b {
		return true
	}
	ga, err := knx.ParseGroupAddress(a)
	if err != nil {
		return false
	}
	gb, err := knx.ParseGroupAddress(b)
	if err != nil {
		return false
	}
	return ga == gb
}
