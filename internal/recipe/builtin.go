package recipe

import "sort"

// Builtin returns the built-in checks keyed by name.
func Builtin() map[string]Recipe {
	return map[string]Recipe{
		"version": {
			Name:        "version",
			Description: "Proxmox VE and kernel versions",
			Steps:       []string{"pveversion", "uname -r"},
		},
		"cluster": {
			Name:        "cluster",
			Description: "Cluster membership and quorum",
			Steps:       []string{"pvecm status"},
		},
		"storage": {
			Name:        "storage",
			Description: "Storage pools and ZFS health",
			Steps:       []string{"pvesm status", "zpool status -x"},
		},
		"reboot": {
			Name:        "reboot",
			Description: "Whether a reboot is pending after upgrades",
			Steps:       []string{"test -f /var/run/reboot-required && echo reboot required || echo no reboot required"},
		},
		"services": {
			Name:        "services",
			Description: "Core Proxmox daemons",
			Steps: []string{
				"systemctl is-active pveproxy pvedaemon pvestatd pve-cluster",
				"systemctl --failed --no-legend --plain",
			},
		},
		"disk": {
			Name:        "disk",
			Description: "Root filesystem usage",
			Steps:       []string{"df -h /"},
		},
		"subscription": {
			Name:        "subscription",
			Description: "Subscription status",
			Steps:       []string{"pvesubscription get | grep -E '^(status|level|nextduedate):'"},
		},
	}
}

// Lookup finds a check by name. User checks replace built-ins of the
// same name.
func Lookup(name string, user map[string][]string) (Recipe, bool) {
	if steps, ok := user[name]; ok {
		return Recipe{Name: name, Description: "user-defined", Steps: steps}, true
	}
	r, ok := Builtin()[name]
	return r, ok
}

// All returns every check, built-in and user-defined, sorted by name.
func All(user map[string][]string) []Recipe {
	merged := Builtin()
	for name, steps := range user {
		merged[name] = Recipe{Name: name, Description: "user-defined", Steps: steps}
	}

	out := make([]Recipe, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
