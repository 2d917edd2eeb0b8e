// Package types holds the interfaces and records shared across trailstrap's
// reconcilers: the filesystem abstraction, the machine profile produced by
// the prober, and the git reconciliation target.
//
// Keeping these in a leaf package avoids import cycles between the
// reconcilers and the infrastructure packages (filesystem, command).
package types
