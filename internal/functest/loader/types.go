// Package loader reads functional models and simulated installations
// from YAML files.
package loader

import (
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/knxcheck/knxcheck-go/pkg/dpt"
)

// ModelDoc is one functional model as written in YAML. A file may hold
// several documents separated by "---".
type ModelDoc struct {
	// Name is the display name of the model.
	Name string `yaml:"name"`

	// Elements are tested in order.
	Elements []ElementDoc `yaml:"elements"`
}

// ElementDoc is one tested element.
type ElementDoc struct {
	Command   DatapointDoc   `yaml:"command"`
	Feedbacks []DatapointDoc `yaml:"feedbacks,omitempty"`
}

// DatapointDoc is one datapoint with its per-row values.
type DatapointDoc struct {
	// Type is the KNX main type number, e.g. 1 for switching.
	Type int `yaml:"type"`

	// Address is the group address. It may be empty.
	Address string `yaml:"address,omitempty"`

	// Values holds one entry per row: an integer, a boolean, or null for
	// no value.
	Values []ValueDoc `yaml:"values"`
}

// UnmarshalYAML decodes the values one node at a time so that null rows
// keep their position.
func (d *DatapointDoc) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Type    int         `yaml:"type"`
		Address string      `yaml:"address"`
		Values  []yaml.Node `yaml:"values"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	d.Type = raw.Type
	d.Address = raw.Address
	d.Values = make([]ValueDoc, len(raw.Values))
	for i := range raw.Values {
		if err := d.Values[i].UnmarshalYAML(&raw.Values[i]); err != nil {
			return err
		}
	}
	return nil
}

// ValueDoc is a nullable test value.
type ValueDoc struct {
	Value dpt.Value
	Line  int
}

// UnmarshalYAML accepts null, booleans and integers.
func (v *ValueDoc) UnmarshalYAML(node *yaml.Node) error {
	v.Line = node.Line
	if node.Kind != yaml.ScalarNode {
		return &LoadError{Line: node.Line, Message: "value must be a scalar"}
	}
	switch node.ShortTag() {
	case "!!null":
		v.Value = dpt.Absent()
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		v.Value = dpt.Bool(b)
	case "!!int":
		n, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return &LoadError{Line: node.Line, Message: "invalid integer " + strconv.Quote(node.Value), Cause: err}
		}
		v.Value = dpt.Some(n)
	default:
		return &LoadError{Line: node.Line, Message: "unsupported value " + strconv.Quote(node.Value)}
	}
	return nil
}

// InstallationDoc describes a simulated installation.
type InstallationDoc struct {
	// ReadDelay is how long group reads take to be answered.
	ReadDelay Duration `yaml:"read_delay,omitempty"`

	Devices []DeviceDoc `yaml:"devices"`
}

// DeviceDoc is one simulated device.
type DeviceDoc struct {
	Name string `yaml:"name"`

	// Address is the individual address, e.g. "1.1.20".
	Address string `yaml:"address,omitempty"`

	Reactions []ReactionDoc `yaml:"reactions"`
}

// ReactionDoc is how a device answers writes on one address.
type ReactionDoc struct {
	Trigger      string `yaml:"trigger"`
	TriggerType  int    `yaml:"trigger_type"`
	Feedback     string `yaml:"feedback"`
	FeedbackType int    `yaml:"feedback_type"`

	// Service is "write" (status push, the default) or "response".
	Service string `yaml:"service,omitempty"`

	Delay Duration `yaml:"delay,omitempty"`

	// Values maps received values to reported values.
	Values map[int64]int64 `yaml:"values,omitempty"`

	// Fixed is reported regardless of the received value.
	Fixed *ValueDoc `yaml:"fixed,omitempty"`

	// Empty sends a push without payload.
	Empty bool `yaml:"empty,omitempty"`
}

// Duration is a time.Duration written as "150ms" or "2s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return &LoadError{Line: node.Line, Message: "invalid duration " + strconv.Quote(node.Value), Cause: err}
	}
	*d = Duration(parsed)
	return nil
}

// LoadError provides details about a file that could not be loaded.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Line is the line number where the error occurred (0 if unknown).
	Line int

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Line > 0 {
		return e.File + ":" + strconv.Itoa(e.Line) + ": " + msg
	}
	return e.File + ": " + msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
