// Package sinks implements progress consumers that write run events to the
// log and to the run store.
package sinks
