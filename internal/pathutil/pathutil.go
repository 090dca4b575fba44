// Package pathutil resolves the per-user paths pvectl reads: its own
// config file and the OpenSSH files under ~/.ssh.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading ~/ to the user's home directory.
// ~user/... is returned unchanged.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") && path != "~" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// SSHFile returns ~/.ssh/name, or "" when there is no home directory.
func SSHFile(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", name)
}

// ConfigFile returns $XDG_CONFIG_HOME/app/name, falling back to
// ~/.config/app/name. It returns "" when neither can be determined.
func ConfigFile(app, name string) string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, app, name)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", app, name)
}
