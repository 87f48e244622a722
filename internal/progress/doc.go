// Package progress turns pipeline callbacks into run events, batches them on a
// background goroutine and fans them out to sinks. The Tracker sink keeps the
// snapshot served by the ops server.
package progress
