// Package selector expands node selectors given on the command line into
// node names.
//
//	pve1            a node by name, listed in the config or not
//	pve*            every configured node matching the glob
//	@all            every configured node
//	@<group>        the members of a configured group
//
// Selectors can be combined with commas: "@cluster,pve9".
package selector

import (
	"fmt"
	"path"
	"strings"

	"github.com/agent462/pvectl/internal/executor"
)

// Inventory is the set of known nodes and groups. *config.Config
// implements it.
type Inventory interface {
	NodeNames() []string
	Group(name string) ([]string, error)
}

// Resolve expands sel into node names, in selector order with
// duplicates removed.
func Resolve(sel string, inv Inventory) ([]string, error) {
	seen := make(map[string]bool)
	var nodes []string
	for _, part := range strings.Split(sel, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		matched, err := resolveSingle(part, inv)
		if err != nil {
			return nil, err
		}
		for _, n := range matched {
			if !seen[n] {
				seen[n] = true
				nodes = append(nodes, n)
			}
		}
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("selector %q matches no nodes", sel)
	}
	return nodes, nil
}

// ResolveAll expands each argument with Resolve and concatenates the
// results, again without duplicates.
func ResolveAll(args []string, inv Inventory) ([]string, error) {
	return Resolve(strings.Join(args, ","), inv)
}

func resolveSingle(sel string, inv Inventory) ([]string, error) {
	if name, ok := strings.CutPrefix(sel, "@"); ok {
		if name == "all" {
			return inv.NodeNames(), nil
		}
		return inv.Group(name)
	}
	if strings.ContainsAny(sel, "*?[") {
		return matchNodes(sel, inv.NodeNames())
	}
	if err := executor.ValidateNodeName(sel); err != nil {
		return nil, err
	}
	return []string{sel}, nil
}

func matchNodes(pattern string, all []string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	var matched []string
	for _, n := range all {
		if ok, _ := path.Match(pattern, n); ok {
			matched = append(matched, n)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("no configured nodes match %q", pattern)
	}
	return matched, nil
}
