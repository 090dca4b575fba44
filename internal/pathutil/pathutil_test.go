package pathutil

import (
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in, want string
	}{
		{"~", home},
		{"~/.ssh/id_ed25519", filepath.Join(home, ".ssh", "id_ed25519")},
		{"/etc/pve/priv/id_rsa", "/etc/pve/priv/id_rsa"},
		{"~root/.ssh/id_rsa", "~root/.ssh/id_rsa"},
		{"relative/key", "relative/key"},
	}
	for _, tc := range tests {
		if got := ExpandHome(tc.in); got != tc.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSSHFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got, want := SSHFile("known_hosts"), filepath.Join(home, ".ssh", "known_hosts"); got != want {
		t.Errorf("SSHFile = %q, want %q", got, want)
	}
}

func TestConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	t.Setenv("XDG_CONFIG_HOME", "")
	if got, want := ConfigFile("pvectl", "config.yaml"), filepath.Join(home, ".config", "pvectl", "config.yaml"); got != want {
		t.Errorf("ConfigFile = %q, want %q", got, want)
	}

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	if got, want := ConfigFile("pvectl", "config.yaml"), filepath.Join(xdg, "pvectl", "config.yaml"); got != want {
		t.Errorf("ConfigFile with XDG = %q, want %q", got, want)
	}
}
