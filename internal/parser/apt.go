// Package parser turns the text printed by apt, dpkg, ip, pct, qm and
// systemctl into records. Parsers never fail: lines they do not
// recognise are skipped.
package parser

import (
	"regexp"
	"strings"
)

// PackageRecord is one package from an upgrade or installed listing.
type PackageRecord struct {
	Name string
	// VersionInfo is the currently installed version: the "upgradable
	// from" version in upgrade listings, the package version in
	// installed listings.
	VersionInfo string
	Candidate   string // version that would be installed; upgrade listings only
	Suite       string // e.g. "stable,stable-security"; upgrade listings only
	Arch        string
	Selected    bool
}

// UnknownVersion is reported for installed packages whose version column
// is missing.
const UnknownVersion = "Unknown"

var upgradableFromRe = regexp.MustCompile(`\[upgradable from: ([^\]]+)\]`)

// ParseUpgradable parses `apt list --upgradable`.
//
// Grammar, one package per line after the "Listing..." header:
//
//	<name>/<suite> <candidate> <arch> [upgradable from: <installed>]
//
// Blank lines, WARNING lines and lines without a "/" are skipped. Without
// a header the whole text is treated as the listing. Every record starts
// out selected.
func ParseUpgradable(text string) []PackageRecord {
	lines := strings.Split(text, "\n")

	start := 0
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "Listing...") {
			start = i + 1
			break
		}
	}

	var records []PackageRecord
	for _, raw := range lines[start:] {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "WARNING") {
			continue
		}
		slash := strings.Index(line, "/")
		if slash <= 0 {
			continue
		}
		name := line[:slash]
		if strings.ContainsAny(name, " \t") {
			continue
		}

		rec := PackageRecord{Name: name, Selected: true}
		if m := upgradableFromRe.FindStringSubmatch(line); m != nil {
			rec.VersionInfo = strings.TrimSpace(m[1])
		}

		fields := strings.Fields(line[slash+1:])
		if len(fields) > 0 {
			rec.Suite = fields[0]
		}
		if len(fields) > 1 && !strings.HasPrefix(fields[1], "[") {
			rec.Candidate = fields[1]
		}
		if len(fields) > 2 && !strings.HasPrefix(fields[2], "[") {
			rec.Arch = fields[2]
		}
		records = append(records, rec)
	}
	return records
}

// ParseInstalledPackages parses "<name> <version>" lines, as printed by
// `dpkg-query -W`. A line with only a name gets
// UnknownVersion.
func ParseInstalledPackages(text string) []PackageRecord {
	var records []PackageRecord
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		rec := PackageRecord{Name: fields[0], VersionInfo: UnknownVersion}
		if len(fields) > 1 {
			rec.VersionInfo = fields[1]
		}
		records = append(records, rec)
	}
	return records
}

// ParseDpkgList parses `dpkg -l`. Only rows whose status shows the
// package as installed ("ii", "hi" and the like) are kept; the name and
// version columns become "<name> <version>" lines for
// ParseInstalledPackages.
func ParseDpkgList(text string) []PackageRecord {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !installedStatus(fields[0]) {
			continue
		}
		b.WriteString(strings.Join(fields[1:min(len(fields), 3)], " "))
		b.WriteByte('\n')
	}
	return ParseInstalledPackages(b.String())
}

// installedStatus reports whether a dpkg -l status column (desired
// action, then package state, then an optional error flag) names an
// installed package.
func installedStatus(s string) bool {
	if len(s) < 2 || len(s) > 3 {
		return false
	}
	return strings.IndexByte("uihrp", s[0]) >= 0 && s[1] == 'i'
}

// SelectedNames returns the names of the selected records, in order.
func SelectedNames(records []PackageRecord) []string {
	var names []string
	for _, r := range records {
		if r.Selected {
			names = append(names, r.Name)
		}
	}
	return names
}
