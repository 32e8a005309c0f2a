// Package target owns the transmission target tree.
//
// Ownership boundary:
// - target identity, parent/child structure and the token registry
// - own enabled flags and cascading enablement
// - property inheritance and the TrackEvent path into a channel.Group
//
// Locking: one Registry lock guards the node table and every node's flag,
// properties and children. Ancestor walks run under a single read lock so
// they observe one consistent snapshot. The channel hand-off happens after
// the lock is released.
//
// Removal: a target with children cannot be removed (ErrHasChildren). Remove
// leaves the persisted enabled flag in place so a re-created target with the
// same token resumes its last state.
package target
