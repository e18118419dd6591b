// Package model implements functional models: the expected command and
// feedback behaviour of a KNX device.
//
// # Hierarchy
//
//	FunctionalModel > TestedElement > DPT
//
// A FunctionalModel is an ordered list of TestedElements describing one
// device's behavioural contract. A TestedElement pairs one command datapoint
// with zero or more feedback datapoints. Every datapoint of an element
// holds one value per test case (row), so all vectors of an element share
// the same length.
//
// Models are authored outside the test engine and are read-only inputs to
// it. Structural equality (Equal) lets a Library recognise a newly imported
// structure it already holds.
package model
