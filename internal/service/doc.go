// Package service owns process lifecycle for the tracking agent.
//
// Ownership boundary:
// - building the registry, flag store, queue and admin API from config
// - declaring configured targets at boot
// - supervising long-running components until shutdown
//
// Lifecycle order:
// - open store -> build queue -> build registry -> declare targets -> serve
package service
