// Package preload tracks weighted asynchronous preload work and exposes a
// single normalized completion fraction.
//
// Tasks submitted to one Aggregator run strictly one at a time in submission
// order: each task waits for its predecessor to settle, whatever the
// predecessor's outcome. The denominator grows as tasks register, so callers
// may discover work incrementally without knowing the total up front. The
// reported progress never decreases within an aggregator's lifetime.
package preload
