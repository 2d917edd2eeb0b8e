// Package probe determines what machine trailstrap is running on and
// whether the run may proceed at all. Classification itself is a pure
// function over structured evidence so it can be tested without a real OS.
package probe

import (
	"strings"

	"github.com/trailstrap/trailstrap/pkg/types"
)

// Evidence is the structured input to classification: existence flags and
// contents of the well-known OS descriptor files, plus the kernel name.
type Evidence struct {
	// Kernel is the `uname -s` output, e.g. "Linux".
	Kernel string

	// HasDebianVersion is true when /etc/debian_version exists.
	HasDebianVersion bool

	// HasRedHatRelease is true when /etc/redhat-release exists.
	HasRedHatRelease bool

	// HasSuSERelease is true when /etc/SuSE-release exists.
	HasSuSERelease bool

	// OSRelease is the content of /etc/os-release, empty when absent.
	OSRelease string
}

// Classify maps evidence to exactly one family. Dedicated release files
// take precedence over os-release, which takes precedence over rejection.
func Classify(ev Evidence) types.Family {
	if !strings.EqualFold(strings.TrimSpace(ev.Kernel), "Linux") {
		return types.FamilyUnsupported
	}

	switch {
	case ev.HasDebianVersion:
		return types.FamilyDebian
	case ev.HasRedHatRelease:
		return types.FamilyRedHat
	case ev.HasSuSERelease:
		return types.FamilyOpenSUSE
	}

	id := osReleaseField(ev.OSRelease, "ID")
	like := osReleaseField(ev.OSRelease, "ID_LIKE")
	for _, candidate := range append([]string{id}, strings.Fields(like)...) {
		switch candidate {
		case "debian", "ubuntu":
			return types.FamilyDebian
		case "rhel", "fedora", "centos", "rocky", "almalinux":
			return types.FamilyRedHat
		case "opensuse", "opensuse-leap", "opensuse-tumbleweed", "suse", "sles":
			return types.FamilyOpenSUSE
		}
	}

	return types.FamilyUnsupported
}

// osReleaseField extracts a single KEY=value field from os-release
// content, stripping optional quotes.
func osReleaseField(content, key string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if value, ok := strings.CutPrefix(line, key+"="); ok {
			return strings.Trim(value, `"'`)
		}
	}
	return ""
}
