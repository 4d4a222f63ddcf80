// Package predict runs a model over a sequence of tasks and collects mean,
// standard deviation and samples into on-grid datasets or off-grid frames.
//
// Tasks are processed in order, one at a time. When sampling, the random
// source is reset to Options.Seed right before every task's sampling call so
// that each task's samples are reproducible on their own.
package predict
