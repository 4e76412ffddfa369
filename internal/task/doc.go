// Package task contains the background processing half of the
// pipeline: the bounded queue that decouples submission handlers from
// execution, and the single-flight worker that drains it, runs the
// responder subprocess, parses its output, and applies the resulting
// state transitions.
package task
