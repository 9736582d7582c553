// Package watch implements the Watch Daemon (§4.13): an event-driven
// incremental re-indexer. It wraps a file-system watcher with a two-timer
// debounce/batch stage, processes batches through an injected indexer
// behind a circuit breaker, tracks its own Stopped/Starting/Running/
// Stopping/Failed lifecycle, and manages a cross-process PID file.
package watch
