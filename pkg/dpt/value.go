package dpt

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// Value is one test value of a datapoint. A Value is either present,
// holding an integer payload (booleans are 0 and 1), or absent, meaning
// no assertion is made for that row. The zero Value is absent.
type Value struct {
	v  int64
	ok bool
}

// Some returns a present value.
func Some(v int64) Value {
	return Value{v: v, ok: true}
}

// Bool returns a present value of 1 or 0.
func Bool(b bool) Value {
	if b {
		return Some(1)
	}
	return Some(0)
}

// Absent returns a value carrying no assertion.
func Absent() Value {
	return Value{}
}

// Get returns the payload and whether the value is present.
func (v Value) Get() (int64, bool) {
	return v.v, v.ok
}

// IsAbsent reports whether the value carries no assertion.
func (v Value) IsAbsent() bool {
	return !v.ok
}

// Equal reports whether both values are absent or both hold the same payload.
func (v Value) Equal(other Value) bool {
	if v.ok != other.ok {
		return false
	}
	return !v.ok || v.v == other.v
}

// String renders the payload, or "-" when absent.
func (v Value) String() string {
	if !v.ok {
		return "-"
	}
	return strconv.FormatInt(v.v, 10)
}

var jsonNull = []byte("null")

// MarshalJSON encodes an absent value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return jsonNull, nil
	}
	return strconv.AppendInt(nil, v.v, 10), nil
}

// UnmarshalJSON accepts null, integers and booleans.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		*v = Absent()
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = Bool(b)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = Some(n)
	return nil
}

// MarshalCBOR encodes an absent value as CBOR null.
func (v Value) MarshalCBOR() ([]byte, error) {
	if !v.ok {
		return cbor.Marshal(nil)
	}
	return cbor.Marshal(v.v)
}

// UnmarshalCBOR accepts null and integers.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var n *int64
	if err := cbor.Unmarshal(data, &n); err != nil {
		return err
	}
	if n == nil {
		*v = Absent()
		return nil
	}
	*v = Some(*n)
	return nil
}

// Entry is the authoring representation of one row: the raw integer an
// operator edits and whether the row asserts anything at all.
type Entry struct {
	Raw int64
	Set bool
}

// Value converts the entry to its live form.
func (e Entry) Value() Value {
	if !e.Set {
		return Absent()
	}
	return Some(e.Raw)
}

// EntryOf converts a live value back to its authoring form.
func EntryOf(v Value) Entry {
	n, ok := v.Get()
	return Entry{Raw: n, Set: ok}
}
