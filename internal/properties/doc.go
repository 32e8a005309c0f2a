// Package properties owns per-target event property overrides.
//
// Ownership boundary:
// - own-property storage for one transmission target
// - name/value validation limits
// - nearest-wins resolution across an ancestor chain
package properties
