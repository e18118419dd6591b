package model

import (
	"errors"
	"testing"

	"github.com/knxcheck/knxcheck-go/pkg/dpt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func switchElement() *TestedElement {
	return NewTestedElement(
		dpt.New(1, "1/1/1", dpt.Bool(true), dpt.Bool(false)),
		dpt.New(1, "1/1/2", dpt.Bool(true), dpt.Bool(false)),
	)
}

func TestIsPossible(t *testing.T) {
	tests := []struct {
		name string
		el   *TestedElement
		want bool
	}{
		{"well formed", switchElement(), true},
		{
			name: "no feedbacks",
			el:   NewTestedElement(dpt.New(1, "1/1/1", dpt.Bool(true))),
			want: true,
		},
		{
			name: "feedback row count differs",
			el: NewTestedElement(
				dpt.New(1, "1/1/1", dpt.Bool(true), dpt.Bool(false)),
				dpt.New(1, "1/1/2", dpt.Bool(true)),
			),
			want: false,
		},
		{
			name: "command out of range",
			el: NewTestedElement(
				dpt.New(6, "1/1/1", dpt.Some(300)),
				dpt.New(1, "1/1/2", dpt.Bool(true)),
			),
			want: false,
		},
		{
			name: "feedback out of range",
			el: NewTestedElement(
				dpt.New(1, "1/1/1", dpt.Bool(true)),
				dpt.New(1, "1/1/2", dpt.Some(5)),
			),
			want: false,
		},
		{"no command", &TestedElement{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.el.IsPossible())
			assert.Equal(t, tt.want, tt.el.IsPossible(), "IsPossible must be idempotent")
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	el := NewTestedElement(
		dpt.New(6, "1/1/1", dpt.Some(300), dpt.Some(1)),
		dpt.New(1, "1/1/2", dpt.Some(4)),
	)

	err := el.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUntestable)

	var re *dpt.RangeError
	assert.True(t, errors.As(err, &re), "range error should be reachable")

	var ce *CardinalityError
	require.True(t, errors.As(err, &ce), "cardinality error should be reachable")
	assert.Equal(t, "1/1/2", ce.Address)
	assert.Equal(t, 1, ce.Rows)
	assert.Equal(t, 2, ce.Want)
}

func TestValidateNoCommand(t *testing.T) {
	err := (&TestedElement{}).Validate()
	assert.ErrorIs(t, err, ErrUntestable)
	assert.ErrorIs(t, err, ErrNoCommand)
}

func TestAddRemoveTestCaseKeepsCardinality(t *testing.T) {
	el := NewTestedElement(
		dpt.New(5, "1/1/1", dpt.Some(1)),
		dpt.New(5, "1/1/2", dpt.Some(1)),
		dpt.New(5, "1/1/3", dpt.Absent()),
	)

	el.AddTestCase(dpt.Some(200))
	el.AddTestCase(dpt.Some(-3))
	require.Equal(t, 3, el.Rows())
	for _, d := range el.datapoints() {
		assert.Equal(t, 3, d.Len(), d.Address)
		assert.Len(t, d.Entries(), 3, d.Address)
	}
	assert.Equal(t, dpt.Some(200), el.Command.ValueAt(1))
	assert.True(t, el.Feedbacks[0].ValueAt(1).IsAbsent())

	require.NoError(t, el.RemoveTestCase(0))
	for _, d := range el.datapoints() {
		assert.Equal(t, 2, d.Len(), d.Address)
	}
	assert.Equal(t, dpt.Some(200), el.Command.ValueAt(0))

	assert.ErrorIs(t, el.RemoveTestCase(9), dpt.ErrRowOutOfRange)
	assert.Equal(t, 2, el.Rows())
}

func TestRefresh(t *testing.T) {
	el := switchElement()
	require.NoError(t, el.Feedbacks[0].SetEntry(0, dpt.Entry{}))
	el.Refresh()
	assert.True(t, el.Feedbacks[0].ValueAt(0).IsAbsent())
}

func TestElementEqual(t *testing.T) {
	a, b := switchElement(), switchElement()
	assert.True(t, a.Equal(b))

	b.Feedbacks[0].Address = "1/1/9"
	assert.False(t, a.Equal(b))

	c := switchElement()
	c.Feedbacks = append(c.Feedbacks, dpt.New(1, "1/1/3", dpt.Absent(), dpt.Absent()))
	assert.False(t, a.Equal(c))

	assert.True(t, a.Equal(a.Clone()))
}
