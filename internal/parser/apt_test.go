package parser

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

const aptUpgradableOutput = `Listing... Done
pve-manager/stable 8.2.4 amd64 [upgradable from: 8.2.2]
libc6/stable-security,stable 2.36-9+deb12u7 amd64 [upgradable from: 2.36-9+deb12u4]
proxmox-kernel-6.8/stable 6.8.12-1 all [upgradable from: 6.8.8-2]

WARNING: apt does not have a stable CLI interface. Use with caution in scripts.
`

func TestParseUpgradable_EndToEnd(t *testing.T) {
	got := ParseUpgradable("Listing...\nvim/stable 2:8.2 amd64 [upgradable from: 2:8.1]\n")

	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(got), got)
	}
	if got[0].Name != "vim" {
		t.Errorf("name = %q, want vim", got[0].Name)
	}
	if got[0].VersionInfo != "2:8.1" {
		t.Errorf("versionInfo = %q, want 2:8.1", got[0].VersionInfo)
	}
	if !got[0].Selected {
		t.Error("record should be selected")
	}
	if got[0].Candidate != "2:8.2" || got[0].Suite != "stable" || got[0].Arch != "amd64" {
		t.Errorf("unexpected detail fields: %+v", got[0])
	}
}

func TestParseUpgradable(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantNames []string
	}{
		{
			name:      "real output with warning",
			input:     aptUpgradableOutput,
			wantNames: []string{"pve-manager", "libc6", "proxmox-kernel-6.8"},
		},
		{
			name:      "nothing to upgrade",
			input:     "Listing... Done\n",
			wantNames: nil,
		},
		{
			name:      "empty input",
			input:     "",
			wantNames: nil,
		},
		{
			name:      "line without slash dropped",
			input:     "Listing...\nbroken line without separator\nvim/stable 2:8.2 amd64 [upgradable from: 2:8.1]\n",
			wantNames: []string{"vim"},
		},
		{
			name:      "leading warning before header",
			input:     "WARNING: apt does not have a stable CLI interface.\n\nListing...\nzfsutils-linux/stable 2.2.4-pve1 amd64 [upgradable from: 2.2.3-pve2]\n",
			wantNames: []string{"zfsutils-linux"},
		},
		{
			name:      "no header parses from top",
			input:     "curl/stable 7.88.1-10+deb12u6 amd64 [upgradable from: 7.88.1-10+deb12u5]\n",
			wantNames: []string{"curl"},
		},
		{
			name:      "slash at start is not a name",
			input:     "Listing...\n/stable 1.0 amd64\n",
			wantNames: nil,
		},
		{
			name:      "CRLF line endings",
			input:     "Listing...\r\nvim/stable 2:8.2 amd64 [upgradable from: 2:8.1]\r\n",
			wantNames: []string{"vim"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseUpgradable(tc.input)
			var names []string
			for _, r := range got {
				names = append(names, r.Name)
			}
			if !reflect.DeepEqual(names, tc.wantNames) {
				t.Errorf("names = %v, want %v", names, tc.wantNames)
			}
		})
	}
}

func TestParseUpgradable_MissingFromVersion(t *testing.T) {
	got := ParseUpgradable("Listing...\nnewpkg/stable 1.0 amd64\n")
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].VersionInfo != "" {
		t.Errorf("versionInfo = %q, want empty", got[0].VersionInfo)
	}
	if got[0].Candidate != "1.0" {
		t.Errorf("candidate = %q, want 1.0", got[0].Candidate)
	}
}

func TestParseInstalledPackages(t *testing.T) {
	input := "bash 5.2.15-2+b7\npve-manager 8.2.4\norphan\n\n  zstd   1.5.4+dfsg2-5  \n"
	got := ParseInstalledPackages(input)

	want := []PackageRecord{
		{Name: "bash", VersionInfo: "5.2.15-2+b7"},
		{Name: "pve-manager", VersionInfo: "8.2.4"},
		{Name: "orphan", VersionInfo: UnknownVersion},
		{Name: "zstd", VersionInfo: "1.5.4+dfsg2-5"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}

func TestParseDpkgList(t *testing.T) {
	input := `Desired=Unknown/Install/Remove/Purge/Hold
| Status=Not/Inst/Conf-files/Unpacked/halF-conf/Half-inst/trig-aWait/Trig-pend
|/ Err?=(none)/Reinst-required (Status,Err: uppercase=bad)
||/ Name               Version          Architecture Description
+++-==================-================-============-=================================
ii  bash               5.2.15-2+b7      amd64        GNU Bourne-Again SHell
rc  old-kernel         6.2.16-3         amd64        removed, config files left
hi  pve-manager        8.2.4            amd64        Proxmox Virtual Environment Management Tools
iU  half-done          1.0-1            all          unpacked but not configured
ii  libc6:amd64        2.36-9+deb12u7   amd64        GNU C Library: Shared libraries
`
	got := ParseDpkgList(input)

	want := []PackageRecord{
		{Name: "bash", VersionInfo: "5.2.15-2+b7"},
		{Name: "pve-manager", VersionInfo: "8.2.4"},
		{Name: "libc6:amd64", VersionInfo: "2.36-9+deb12u7"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
	if got := ParseDpkgList(`{"exitcode":0,"exited":1,"out-data":"ii  bash 5.2"}`); got != nil {
		t.Errorf("guest agent JSON should yield nothing, got %+v", got)
	}
}

func TestSelectedNames(t *testing.T) {
	records := []PackageRecord{
		{Name: "a", Selected: true},
		{Name: "b"},
		{Name: "c", Selected: true},
	}
	got := SelectedNames(records)
	if !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("SelectedNames = %v, want [a c]", got)
	}
}

// --- property tests ---

var (
	pkgNameGen = rapid.StringMatching(`[a-z0-9][a-z0-9+.-]{1,20}`)
	versionGen = rapid.StringMatching(`([0-9]:)?[0-9]{1,2}\.[0-9]{1,2}(-[0-9a-z+.~]{1,8})?`)
)

func TestProperty_UpgradableCountMatchesListing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfN(pkgNameGen, 0, 30).Draw(t, "names")

		var b strings.Builder
		b.WriteString("Listing... Done\n")
		for _, n := range names {
			from := versionGen.Draw(t, "from")
			to := versionGen.Draw(t, "to")
			fmt.Fprintf(&b, "%s/stable %s amd64 [upgradable from: %s]\n", n, to, from)
		}

		got := ParseUpgradable(b.String())
		if len(got) != len(names) {
			t.Fatalf("expected %d records, got %d", len(names), len(got))
		}
		for i, r := range got {
			if r.Name == "" {
				t.Fatalf("record %d has empty name", i)
			}
			if r.Name != names[i] {
				t.Fatalf("record %d name = %q, want %q", i, r.Name, names[i])
			}
			if !r.Selected {
				t.Fatalf("record %d not selected", i)
			}
		}
	})
}

func TestProperty_UpgradableNeverExceedsListingLines(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := rapid.SliceOfN(rapid.StringMatching(`[^\n]{0,40}`), 0, 20).Draw(t, "lines")
		text := "Listing...\n" + strings.Join(lines, "\n")

		got := ParseUpgradable(text)
		if len(got) > len(lines) {
			t.Fatalf("got %d records from %d listing lines", len(got), len(lines))
		}
		for i, r := range got {
			if r.Name == "" {
				t.Fatalf("record %d has empty name", i)
			}
		}
	})
}

func TestProperty_ParsersIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`([a-z0-9 /:.\[\]-]{0,30}\n){0,10}`).Draw(t, "text")

		if !reflect.DeepEqual(ParseUpgradable(text), ParseUpgradable(text)) {
			t.Fatal("ParseUpgradable is not deterministic")
		}
		if !reflect.DeepEqual(ParseInstalledPackages(text), ParseInstalledPackages(text)) {
			t.Fatal("ParseInstalledPackages is not deterministic")
		}
	})
}

func TestProperty_InstalledVersionIsSecondToken(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := pkgNameGen.Draw(t, "name")
		withVersion := rapid.Bool().Draw(t, "withVersion")

		line := name
		want := UnknownVersion
		if withVersion {
			want = versionGen.Draw(t, "version")
			line += " " + want
		}

		got := ParseInstalledPackages(line + "\n")
		if len(got) != 1 {
			t.Fatalf("expected 1 record, got %d", len(got))
		}
		if got[0].Name != name || got[0].VersionInfo != want {
			t.Fatalf("got %+v, want name=%q version=%q", got[0], name, want)
		}
	})
}
