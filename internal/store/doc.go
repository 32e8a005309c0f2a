// Package store persists per-target enablement flags across restarts.
//
// Ownership boundary:
// - key derivation for target flags
// - in-memory and leveldb backed key-value adapters
package store
