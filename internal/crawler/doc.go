// Package crawler implements the sequential chapter pipeline: the fetch-retry
// engine, the pacing controller and the run driver that folds extracted
// chapters into an ordered RunResult.
package crawler
