package executor

import (
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name     string
		validate func(string) error
		good     []string
		bad      []string
	}{
		{
			name:     "node",
			validate: ValidateNodeName,
			good:     []string{"pve1", "pve-backup-01", "a"},
			bad:      []string{"", "-pve", "pve.lab", "pve_1", strings.Repeat("a", 64)},
		},
		{
			name:     "guest id",
			validate: ValidateGuestID,
			good:     []string{"100", "105", "999999999"},
			bad:      []string{"", "99", "0100", "1000000000", "10a"},
		},
		{
			name:     "package",
			validate: ValidatePackageName,
			good:     []string{"htop", "libc6:i386", "g++", "pve-manager", "libstdc++6"},
			bad:      []string{"", "h", "Htop", "-y", "htop;reboot"},
		},
		{
			name:     "service",
			validate: ValidateServiceName,
			good:     []string{"pveproxy", "pveproxy.service", "getty@tty1.service", "systemd-journald"},
			bad:      []string{"", "-now", "a b", "pveproxy&&reboot"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, v := range tc.good {
				if err := tc.validate(v); err != nil {
					t.Errorf("%q rejected: %v", v, err)
				}
			}
			for _, v := range tc.bad {
				if err := tc.validate(v); !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("%q: err = %v, want ErrInvalidArgument", v, err)
				}
			}
		})
	}
}

func TestProperty_ShellMetacharactersRejected(t *testing.T) {
	validators := []func(string) error{ValidateNodeName, ValidateGuestID, ValidatePackageName, ValidateServiceName}

	rapid.Check(t, func(t *rapid.T) {
		prefix := rapid.StringMatching(`[a-z0-9]{0,8}`).Draw(t, "prefix")
		meta := rapid.SampledFrom([]string{";", "&", "|", "$", "`", " ", "'", "\"", "\n", ">", "<", "(", ")"}).Draw(t, "meta")
		suffix := rapid.StringMatching(`[a-z0-9]{0,8}`).Draw(t, "suffix")
		v := prefix + meta + suffix

		for i, validate := range validators {
			if validate(v) == nil {
				t.Fatalf("validator %d accepted %q", i, v)
			}
		}
	})
}
