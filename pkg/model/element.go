package model

import (
	"fmt"

	"github.com/knxcheck/knxcheck-go/pkg/dpt"
	"go.uber.org/multierr"
)

// TestedElement is one command/feedback unit of a functional model.
type TestedElement struct {
	// Command is the datapoint written for every row.
	Command *dpt.DPT

	// Feedbacks are the datapoints expected to report back, in column order.
	Feedbacks []*dpt.DPT
}

// NewTestedElement creates an element from a command and its feedbacks.
func NewTestedElement(command *dpt.DPT, feedbacks ...*dpt.DPT) *TestedElement {
	return &TestedElement{Command: command, Feedbacks: feedbacks}
}

// datapoints returns the command followed by every feedback.
func (e *TestedElement) datapoints() []*dpt.DPT {
	all := make([]*dpt.DPT, 0, len(e.Feedbacks)+1)
	if e.Command != nil {
		all = append(all, e.Command)
	}
	return append(all, e.Feedbacks...)
}

// Rows returns the number of test cases, taken from the command datapoint.
func (e *TestedElement) Rows() int {
	if e.Command != nil {
		return e.Command.Len()
	}
	if len(e.Feedbacks) > 0 {
		return e.Feedbacks[0].Len()
	}
	return 0
}

// IsPossible reports whether every datapoint is within range and all
// datapoints share the same number of rows.
func (e *TestedElement) IsPossible() bool {
	return e.Validate() == nil
}

// Validate checks the element without short-circuiting so that every
// problem is reported. The result wraps ErrUntestable.
func (e *TestedElement) Validate() error {
	if e.Command == nil {
		return fmt.Errorf("%w: %w", ErrUntestable, ErrNoCommand)
	}

	var err error
	want := e.Command.Len()
	for _, d := range e.datapoints() {
		err = multierr.Append(err, d.Validate())
		if !d.SameCardinality(e.Command) {
			err = multierr.Append(err, &CardinalityError{
				Address: d.Address,
				Rows:    d.Len(),
				Want:    want,
			})
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUntestable, err)
	}
	return nil
}

// AddTestCase appends one row: the command receives value and every
// feedback receives an absent expectation.
func (e *TestedElement) AddTestCase(value dpt.Value) {
	if e.Command != nil {
		e.Command.Append(value)
	}
	for _, fb := range e.Feedbacks {
		fb.Append(dpt.Absent())
	}
}

// RemoveTestCase deletes row i from every datapoint.
func (e *TestedElement) RemoveTestCase(i int) error {
	if i < 0 || i >= e.Rows() {
		return fmt.Errorf("%w: %d of %d", dpt.ErrRowOutOfRange, i, e.Rows())
	}
	for _, d := range e.datapoints() {
		if err := d.RemoveAt(i); err != nil {
			return err
		}
	}
	return nil
}

// Refresh rebuilds the live values of every datapoint from their
// authoring entries.
func (e *TestedElement) Refresh() {
	for _, d := range e.datapoints() {
		d.Refresh()
	}
}

// Equal reports structural equality of command and feedbacks.
func (e *TestedElement) Equal(other *TestedElement) bool {
	if e == nil || other == nil {
		return e == other
	}
	if !e.Command.Equal(other.Command) || len(e.Feedbacks) != len(other.Feedbacks) {
		return false
	}
	for i := range e.Feedbacks {
		if !e.Feedbacks[i].Equal(other.Feedbacks[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (e *TestedElement) Clone() *TestedElement {
	c := &TestedElement{}
	if e.Command != nil {
		c.Command = e.Command.Clone()
	}
	for _, fb := range e.Feedbacks {
		c.Feedbacks = append(c.Feedbacks, fb.Clone())
	}
	return c
}
