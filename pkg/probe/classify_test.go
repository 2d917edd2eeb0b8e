package probe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trailstrap/trailstrap/pkg/probe"
	"github.com/trailstrap/trailstrap/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ev   probe.Evidence
		want types.Family
	}{
		{
			name: "debian_release_file",
			ev:   probe.Evidence{Kernel: "Linux", HasDebianVersion: true},
			want: types.FamilyDebian,
		},
		{
			name: "redhat_release_file",
			ev:   probe.Evidence{Kernel: "Linux", HasRedHatRelease: true},
			want: types.FamilyRedHat,
		},
		{
			name: "suse_release_file",
			ev:   probe.Evidence{Kernel: "Linux", HasSuSERelease: true},
			want: types.FamilyOpenSUSE,
		},
		{
			name: "release_file_beats_os_release",
			ev: probe.Evidence{
				Kernel:           "Linux",
				HasDebianVersion: true,
				OSRelease:        "ID=fedora\n",
			},
			want: types.FamilyDebian,
		},
		{
			name: "os_release_id",
			ev:   probe.Evidence{Kernel: "Linux", OSRelease: "NAME=\"Ubuntu\"\nID=ubuntu\n"},
			want: types.FamilyDebian,
		},
		{
			name: "os_release_id_like",
			ev:   probe.Evidence{Kernel: "Linux", OSRelease: "ID=rocky\nID_LIKE=\"rhel centos fedora\"\n"},
			want: types.FamilyRedHat,
		},
		{
			name: "os_release_opensuse_leap",
			ev:   probe.Evidence{Kernel: "Linux", OSRelease: "ID=\"opensuse-leap\"\n"},
			want: types.FamilyOpenSUSE,
		},
		{
			name: "unknown_distribution",
			ev:   probe.Evidence{Kernel: "Linux", OSRelease: "ID=alpine\n"},
			want: types.FamilyUnsupported,
		},
		{
			name: "no_evidence",
			ev:   probe.Evidence{Kernel: "Linux"},
			want: types.FamilyUnsupported,
		},
		{
			name: "non_linux_kernel",
			ev:   probe.Evidence{Kernel: "Darwin", HasDebianVersion: true},
			want: types.FamilyUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, probe.Classify(tt.ev))
		})
	}
}
