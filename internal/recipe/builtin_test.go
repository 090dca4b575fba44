package recipe

import (
	"reflect"
	"sort"
	"testing"
)

func TestBuiltinRecipesAreComplete(t *testing.T) {
	for name, r := range Builtin() {
		if r.Name != name {
			t.Errorf("recipe keyed %q is named %q", name, r.Name)
		}
		if r.Description == "" {
			t.Errorf("recipe %q has no description", name)
		}
		if len(r.Steps) == 0 {
			t.Errorf("recipe %q has no steps", name)
		}
	}
}

func TestLookup(t *testing.T) {
	user := map[string][]string{
		"ntp":     {"timedatectl show -p NTPSynchronized"},
		"version": {"pveversion -v"},
	}

	tests := []struct {
		name  string
		found bool
		steps []string
	}{
		{"cluster", true, []string{"pvecm status"}},
		{"ntp", true, []string{"timedatectl show -p NTPSynchronized"}},
		{"version", true, []string{"pveversion -v"}},
		{"missing", false, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, ok := Lookup(tc.name, user)
			if ok != tc.found {
				t.Fatalf("found = %v, want %v", ok, tc.found)
			}
			if !tc.found {
				return
			}
			if r.Name != tc.name {
				t.Errorf("name = %q", r.Name)
			}
			if !reflect.DeepEqual(r.Steps, tc.steps) {
				t.Errorf("steps = %v, want %v", r.Steps, tc.steps)
			}
		})
	}
}

func TestAllSortedAndMerged(t *testing.T) {
	all := All(map[string][]string{"ntp": {"chronyc tracking"}, "disk": {"df -h /var/lib/vz"}})

	names := make([]string, len(all))
	for i, r := range all {
		names[i] = r.Name
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("names not sorted: %v", names)
	}
	if len(all) != len(Builtin())+1 {
		t.Errorf("got %d checks, want %d", len(all), len(Builtin())+1)
	}
	for _, r := range all {
		if r.Name == "disk" && r.Steps[0] != "df -h /var/lib/vz" {
			t.Errorf("user disk check did not override built-in: %v", r.Steps)
		}
	}
}
