package types

// Family identifies the distribution family of the target machine. It is a
// closed enum: every reconciler that branches per distribution switches on
// it, and Unsupported is a fatal precondition at startup.
type Family string

const (
	FamilyDebian      Family = "debian"
	FamilyRedHat      Family = "redhat"
	FamilyOpenSUSE    Family = "opensuse"
	FamilyUnsupported Family = "unsupported"
)

// MachineProfile describes the probed machine and the package-manager
// command shapes for its family. It is created once by the prober and is
// immutable afterwards; all later branching reads it.
type MachineProfile struct {
	Family Family

	// QueryCmd checks whether a single package is installed. The package
	// name is appended as the final argument.
	QueryCmd []string

	// InstallCmd installs packages. The missing set is appended as trailing
	// arguments in a single invocation.
	InstallCmd []string

	// PrepCmd refreshes the package index before installing. Optional; a
	// failure here is recorded but does not gate the install attempt.
	PrepCmd []string

	// RequiredPackages is the declared base package set for this family, in
	// install order.
	RequiredPackages []string
}

// RepoTarget describes one git-managed reconciliation target: a directory
// that must hold a clone of Remote. The reconciler distinguishes absent,
// foreign (directory exists but is not a working copy) and installed.
type RepoTarget struct {
	// Name is used in log and report entries.
	Name string

	// Path is the checkout location, always absolute.
	Path string

	// Remote is the clone URL.
	Remote string
}
