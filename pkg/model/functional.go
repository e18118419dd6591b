package model

import (
	"fmt"

	"go.uber.org/multierr"
)

// FunctionalModel is the behavioural contract of one device.
type FunctionalModel struct {
	// Name is the display name.
	Name string

	// Key identifies the model inside a Library.
	Key int

	// Elements are tested in declaration order.
	Elements []*TestedElement
}

// Validate returns the combined validation errors of every element,
// prefixed with the element index.
func (m *FunctionalModel) Validate() error {
	var err error
	for i, el := range m.Elements {
		if verr := el.Validate(); verr != nil {
			err = multierr.Append(err, fmt.Errorf("element %d: %w", i, verr))
		}
	}
	return err
}

// Equal reports structural equality: same elements, datapoints and
// values. Name and Key are ignored.
func (m *FunctionalModel) Equal(other *FunctionalModel) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.Elements) != len(other.Elements) {
		return false
	}
	for i := range m.Elements {
		if !m.Elements[i].Equal(other.Elements[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (m *FunctionalModel) Clone() *FunctionalModel {
	c := &FunctionalModel{Name: m.Name, Key: m.Key}
	for _, el := range m.Elements {
		c.Elements = append(c.Elements, el.Clone())
	}
	return c
}
