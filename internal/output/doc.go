// Package output persists what a run produced: the book text file, the
// merged list of discovered book IDs, the run row and the run notification.
package output
