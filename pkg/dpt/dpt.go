package dpt

import (
	"fmt"

	"go.uber.org/multierr"
)

// DPT is one datapoint of a tested element: a typed group address with
// one test value per row.
//
// The live values and the authoring entries always have the same length;
// every mutating method keeps them in step.
type DPT struct {
	// Type is the datapoint main type number.
	Type Code

	// Address is the group address in "main/middle/sub" form. An empty
	// address means nothing is sent or checked on this datapoint.
	Address string

	values  []Value
	entries []Entry
}

// New creates a DPT whose rows hold the given values.
func New(code Code, address string, values ...Value) *DPT {
	d := &DPT{Type: code, Address: address}
	for _, v := range values {
		d.Append(v)
	}
	return d
}

// FromEntries creates a DPT from authoring entries and refreshes its live
// values from them.
func FromEntries(code Code, address string, entries []Entry) *DPT {
	d := &DPT{
		Type:    code,
		Address: address,
		entries: append([]Entry(nil), entries...),
	}
	d.Refresh()
	return d
}

// DeclaredWidth returns the bit width fixed by the type code.
func (d *DPT) DeclaredWidth() int {
	return d.Type.Width()
}

// Len returns the number of rows.
func (d *DPT) Len() int {
	return len(d.values)
}

// ValueAt returns the live value of row i, or an absent value when the
// row does not exist.
func (d *DPT) ValueAt(i int) Value {
	if i < 0 || i >= len(d.values) {
		return Absent()
	}
	return d.values[i]
}

// Values returns a copy of the live values.
func (d *DPT) Values() []Value {
	return append([]Value(nil), d.values...)
}

// Entries returns a copy of the authoring entries.
func (d *DPT) Entries() []Entry {
	return append([]Entry(nil), d.entries...)
}

// Append adds one row to both vectors.
func (d *DPT) Append(v Value) {
	d.values = append(d.values, v)
	d.entries = append(d.entries, EntryOf(v))
}

// RemoveAt deletes row i from both vectors.
func (d *DPT) RemoveAt(i int) error {
	if i < 0 || i >= len(d.values) {
		return fmt.Errorf("%w: %d of %d", ErrRowOutOfRange, i, len(d.values))
	}
	d.values = append(d.values[:i], d.values[i+1:]...)
	d.entries = append(d.entries[:i], d.entries[i+1:]...)
	return nil
}

// SetEntry edits the authoring entry of row i. The live value changes only
// on the next Refresh.
func (d *DPT) SetEntry(i int, e Entry) error {
	if i < 0 || i >= len(d.entries) {
		return fmt.Errorf("%w: %d of %d", ErrRowOutOfRange, i, len(d.entries))
	}
	d.entries[i] = e
	return nil
}

// Refresh rebuilds the live values from the authoring entries.
func (d *DPT) Refresh() {
	values := make([]Value, len(d.entries))
	for i, e := range d.entries {
		values[i] = e.Value()
	}
	d.values = values
}

// IsWithinRange reports whether every present value fits the declared width.
func (d *DPT) IsWithinRange() bool {
	return d.Validate() == nil
}

// Validate returns one *RangeError per present value outside the declared
// width, combined with multierr, or nil.
func (d *DPT) Validate() error {
	w := d.DeclaredWidth()
	lo, hi := Bounds(w)
	var err error
	for i, v := range d.values {
		n, ok := v.Get()
		if !ok {
			continue
		}
		if n < lo || n > hi {
			err = multierr.Append(err, &RangeError{
				Address: d.Address,
				Type:    d.Type,
				Row:     i,
				Value:   n,
				Width:   w,
			})
		}
	}
	return err
}

// SameCardinality reports whether both DPTs have the same number of rows.
func (d *DPT) SameCardinality(other *DPT) bool {
	return d.Len() == other.Len()
}

// Equal reports structural equality: type, address and live values.
func (d *DPT) Equal(other *DPT) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.Type != other.Type || d.Address != other.Address || len(d.values) != len(other.values) {
		return false
	}
	for i := range d.values {
		if !d.values[i].Equal(other.values[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (d *DPT) Clone() *DPT {
	return &DPT{
		Type:    d.Type,
		Address: d.Address,
		values:  d.Values(),
		entries: d.Entries(),
	}
}
