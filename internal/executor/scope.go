package executor

import "fmt"

// ScopeKind says where inside a node a command runs.
type ScopeKind int

const (
	ScopeNode ScopeKind = iota
	ScopeContainer
	ScopeVM
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeNode:
		return "node"
	case ScopeContainer:
		return "ct"
	case ScopeVM:
		return "vm"
	default:
		return "unknown"
	}
}

// Scope names a node, or a container or VM on a node.
type Scope struct {
	Node string
	Kind ScopeKind
	ID   string // CTID or VMID; empty for ScopeNode
}

// NodeScope targets the node itself.
func NodeScope(node string) Scope {
	return Scope{Node: node, Kind: ScopeNode}
}

// ContainerScope targets container ctid on node.
func ContainerScope(node, ctid string) Scope {
	return Scope{Node: node, Kind: ScopeContainer, ID: ctid}
}

// VMScope targets VM vmid on node.
func VMScope(node, vmid string) Scope {
	return Scope{Node: node, Kind: ScopeVM, ID: vmid}
}

// String renders the scope as "pve1", "pve1/ct/105" or "pve1/vm/101".
func (s Scope) String() string {
	if s.Kind == ScopeNode {
		return s.Node
	}
	return fmt.Sprintf("%s/%s/%s", s.Node, s.Kind, s.ID)
}
