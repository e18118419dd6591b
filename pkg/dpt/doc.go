// Package dpt models KNX datapoint values as used by functional tests.
//
// A DPT couples a datapoint type code with a group address and a vector of
// test values, one per test case (row). Each row has two representations
// kept in lock-step: the authoring Entry edited by an operator and the live
// Value the test engine reads. Refresh rebuilds the live vector from the
// authoring one.
//
// The declared bit width of a type code bounds the values a row may hold
// and determines how a value travels on the bus (see Encode and Decode).
package dpt
