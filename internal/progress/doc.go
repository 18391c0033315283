// Package progress provides the lifecycle event primitives, non-blocking hub,
// and emitter interfaces that preload sessions use to report task progress and
// navigations. The hub batches events on a background goroutine and fans them
// out to pluggable sinks such as Prometheus metrics or structured logs.
package progress
