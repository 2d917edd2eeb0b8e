// Package filesystem provides implementations of the types.FS interface:
// the real OS filesystem used at runtime and an afero-backed one used by
// tests to exercise reconcilers against an in-memory tree.
package filesystem
