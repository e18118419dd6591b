package knx

import (
	"errors"
	"fmt"
	"time"
)

// ErrShortTelegram is returned when a frame is too short to hold a telegram.
var ErrShortTelegram = errors.New("telegram too short")

// APCI is the application-layer group service of a telegram.
type APCI uint8

const (
	// APCIRead requests the current value of a group address.
	APCIRead APCI = 0x00
	// APCIResponse answers a read request.
	APCIResponse APCI = 0x40
	// APCIWrite sends a value unsolicited. Devices use it for status pushes.
	APCIWrite APCI = 0x80
)

// String returns the service name.
func (a APCI) String() string {
	switch a {
	case APCIRead:
		return "READ"
	case APCIResponse:
		return "RESPONSE"
	case APCIWrite:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// Telegram is one group communication frame.
type Telegram struct {
	Source      IndividualAddress
	Destination GroupAddress
	APCI        APCI

	// Data is the payload. Read requests carry none.
	Data []byte

	// Compact marks a payload of six bits or fewer that travels inside
	// the APCI octet.
	Compact bool

	// Timestamp is set when the telegram is created or received.
	Timestamp time.Time
}

// NewWriteTelegram creates a group write.
func NewWriteTelegram(dest GroupAddress, data []byte, compact bool) Telegram {
	return Telegram{Destination: dest, APCI: APCIWrite, Data: data, Compact: compact, Timestamp: time.Now()}
}

// NewResponseTelegram creates a group response.
func NewResponseTelegram(dest GroupAddress, data []byte, compact bool) Telegram {
	return Telegram{Destination: dest, APCI: APCIResponse, Data: data, Compact: compact, Timestamp: time.Now()}
}

// NewReadTelegram creates a group read request.
func NewReadTelegram(dest GroupAddress) Telegram {
	return Telegram{Destination: dest, APCI: APCIRead, Timestamp: time.Now()}
}

// IsWrite reports whether the telegram is a group write.
func (t Telegram) IsWrite() bool { return t.APCI == APCIWrite }

// IsRead reports whether the telegram is a read request.
func (t Telegram) IsRead() bool { return t.APCI == APCIRead }

// IsResponse reports whether the telegram answers a read request.
func (t Telegram) IsResponse() bool { return t.APCI == APCIResponse }

// Encode returns the frame: source(2) + destination(2) + TPCI + APCI
// octet, followed by the payload unless it is compact.
func (t Telegram) Encode() []byte {
	src := t.Source.Uint16()
	dst := t.Destination.Uint16()
	out := []byte{byte(src >> 8), byte(src), byte(dst >> 8), byte(dst), 0x00, byte(t.APCI)}
	if t.APCI == APCIRead {
		return out
	}
	if t.Compact && len(t.Data) == 1 {
		out[5] |= t.Data[0] & 0x3F
		return out
	}
	return append(out, t.Data...)
}

// ParseTelegram decodes a frame produced by Encode.
func ParseTelegram(frame []byte) (Telegram, error) {
	if len(frame) < 6 {
		return Telegram{}, fmt.Errorf("%w: %d bytes", ErrShortTelegram, len(frame))
	}
	t := Telegram{
		Source:      IndividualAddressFromUint16(uint16(frame[0])<<8 | uint16(frame[1])),
		Destination: GroupAddressFromUint16(uint16(frame[2])<<8 | uint16(frame[3])),
		APCI:        APCI(frame[5] & 0xC0),
		Timestamp:   time.Now(),
	}
	switch {
	case t.APCI == APCIRead:
	case len(frame) == 6:
		t.Data = []byte{frame[5] & 0x3F}
		t.Compact = true
	default:
		t.Data = append([]byte(nil), frame[6:]...)
	}
	return t, nil
}

// String returns a one-line description.
func (t Telegram) String() string {
	if t.APCI == APCIRead {
		return fmt.Sprintf("%s -> %s %s", t.Source, t.Destination, t.APCI)
	}
	return fmt.Sprintf("%s -> %s %s % X", t.Source, t.Destination, t.APCI, t.Data)
}
