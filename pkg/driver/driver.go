package driver

import (
	"errors"
	"maps"

	"github.com/chinchliff/oti/pkg/types"
)

// GraphProvider represents the type of graph database provider.
type GraphProvider string

const (
	GraphProviderNeo4j  GraphProvider = "neo4j"
	GraphProviderBadger GraphProvider = "badger"
)

var (
	// ErrNodeNotFound is returned when a node id does not resolve to a node.
	ErrNodeNotFound = errors.New("node not found")
	// ErrNoTreeRoot is returned when a node's ancestry does not reach a tree root.
	ErrNoTreeRoot = errors.New("node has no containing tree root")
)

// Node is a snapshot of a graph node. It implements Hit.
type Node struct {
	ID         types.NodeID      `json:"id"`
	Class      types.EntityClass `json:"class"`
	Parent     types.NodeID      `json:"parent,omitempty"`
	Properties map[string]string `json:"properties"`
}

// NewNode creates a node snapshot with a copy of props.
func NewNode(id types.NodeID, class types.EntityClass, props map[string]string) *Node {
	return &Node{ID: id, Class: class, Properties: maps.Clone(props)}
}

// NodeID implements Hit.
func (n *Node) NodeID() types.NodeID {
	return n.ID
}

// Property implements Hit.
func (n *Node) Property(name string) (string, bool) {
	v, ok := n.Properties[name]
	return v, ok
}

// exactMirrors returns props plus the lowercased mirror of every property the
// class's exact index covers.
func exactMirrors(class types.EntityClass, props map[string]string) map[string]any {
	out := make(map[string]any, len(props)*2)
	for name, value := range props {
		out[name] = value
		if p, ok := types.LookupProperty(class, name); ok && p.Exact {
			out[ExactField(name)] = normalizeExact(value)
		}
	}
	return out
}
