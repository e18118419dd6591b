package log

import (
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/knxcheck/knxcheck-go/pkg/dpt"
)

// Capture files are a plain sequence of CBOR items, one per Event.
// Encoding is canonical so identical runs produce identical bytes apart
// from timestamps and run IDs.
var (
	encMode = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	})
	decMode = mustDecMode(cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	m, err := opts.EncMode()
	if err != nil {
		panic("log: " + err.Error())
	}
	return m
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	m, err := opts.DecMode()
	if err != nil {
		panic("log: " + err.Error())
	}
	return m
}

// EncodeEvent encodes one event as a CBOR item.
func EncodeEvent(event Event) ([]byte, error) {
	return encMode.Marshal(event)
}

// DecodeEvent decodes one CBOR item.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	err := decMode.Unmarshal(data, &event)
	return event, err
}

// NewEncoder returns a stream encoder for capture files.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a stream decoder for capture files.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// Event is one captured occurrence. CBOR encoding uses integer keys.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// RunID identifies the test run (UUID). Empty for telegrams observed
	// outside a run.
	RunID string `cbor:"2,keyasint,omitempty"`

	// Direction of a telegram relative to the tester.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// Exactly one payload is set.
	Telegram    *TelegramEvent    `cbor:"10,keyasint,omitempty"`
	Verdict     *VerdictEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction indicates telegram flow.
type Direction uint8

const (
	// DirectionIn is a telegram received from the bus.
	DirectionIn Direction = 0
	// DirectionOut is a telegram sent by the tester.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates where an event was captured.
type Layer uint8

const (
	// LayerBus is the gateway/telegram layer.
	LayerBus Layer = 0
	// LayerEngine is the test engine.
	LayerEngine Layer = 1
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerBus:
		return "BUS"
	case LayerEngine:
		return "ENGINE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryTelegram is a telegram on the bus.
	CategoryTelegram Category = 0
	// CategoryVerdict is a verdict assigned to a feedback column.
	CategoryVerdict Category = 1
	// CategoryState is a lifecycle transition.
	CategoryState Category = 2
	// CategoryError is an error.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTelegram:
		return "TELEGRAM"
	case CategoryVerdict:
		return "VERDICT"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// TelegramEvent captures one group telegram.
type TelegramEvent struct {
	Source      string `cbor:"1,keyasint"`
	Destination string `cbor:"2,keyasint"`

	// Service is the APCI name (READ, RESPONSE, WRITE).
	Service string `cbor:"3,keyasint"`

	Data    []byte `cbor:"4,keyasint,omitempty"`
	Compact bool   `cbor:"5,keyasint,omitempty"`
}

// VerdictEvent captures the verdict of one feedback column of one row.
type VerdictEvent struct {
	Model    string    `cbor:"1,keyasint"`
	ModelKey int       `cbor:"2,keyasint,omitempty"`
	Element  int       `cbor:"3,keyasint"`
	Row      int       `cbor:"4,keyasint"`
	Column   int       `cbor:"5,keyasint"`
	Address  string    `cbor:"6,keyasint,omitempty"`
	Expected dpt.Value `cbor:"7,keyasint"`

	// Result is SUCCESS, RESPONSE or FAILURE.
	Result string `cbor:"8,keyasint"`

	// Elapsed is the time from the command write to the decision.
	Elapsed time.Duration `cbor:"9,keyasint,omitempty"`
}

// StateChangeEvent captures run and model lifecycle transitions.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	Name     string      `cbor:"2,keyasint,omitempty"`
	OldState string      `cbor:"3,keyasint,omitempty"`
	NewState string      `cbor:"4,keyasint"`
	Reason   string      `cbor:"5,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	// StateEntityRun is a whole TestAll invocation.
	StateEntityRun StateEntity = 0
	// StateEntityModel is one functional model within a run.
	StateEntityModel StateEntity = 1
)

// String returns the entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityRun:
		return "RUN"
	case StateEntityModel:
		return "MODEL"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures an error at either layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context describes the operation that failed, e.g. "write 1/1/1".
	Context string `cbor:"3,keyasint,omitempty"`
}
