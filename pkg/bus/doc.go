// Package bus provides the gateway the test engine drives: group writes,
// group reads, and time-bounded collection of the telegrams observed on a
// group address.
//
// A Monitor implements Gateway on top of a Link, the raw telegram pipe to
// an installation. The Monitor fans every incoming telegram out to the
// Collections open on its destination address.
package bus
