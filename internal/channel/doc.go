// Package channel owns the hand-off between the target tree and transport.
//
// Ownership boundary:
// - the Group contract consumed by transmission targets
// - bounded non-blocking queueing with per-token pause
// - sink delivery with pacing and retry/backoff
//
// Enqueue never blocks the caller; delivery failures never surface to the
// code that tracked the event.
package channel
