package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/chinchliff/oti/pkg/driver"
	"github.com/chinchliff/oti/pkg/types"
)

// studyAccumulator keys study hits by study id.
type studyAccumulator struct {
	studies map[string]types.StudyResult
}

func newStudyAccumulator() *studyAccumulator {
	return &studyAccumulator{studies: make(map[string]types.StudyResult)}
}

func (s *studyAccumulator) fold(_ context.Context, hit driver.Hit) error {
	studyID, ok := hit.Property(types.StudyIDProperty)
	if !ok {
		return types.NewMissingPropertyError(hit.NodeID(), types.StudyIDProperty)
	}
	s.studies[studyID] = types.StudyResult{StudyID: studyID}
	return nil
}

func (s *studyAccumulator) results(context.Context) ([]types.StudyResult, error) {
	out := make([]types.StudyResult, 0, len(s.studies))
	for _, r := range s.studies {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b types.StudyResult) int {
		return cmp.Compare(a.StudyID, b.StudyID)
	})
	return out, nil
}

// treeAccumulator collects tree root hits. Hits are roots themselves.
type treeAccumulator struct {
	graph driver.GraphStore
	roots map[types.NodeID]struct{}
}

func newTreeAccumulator(graph driver.GraphStore) *treeAccumulator {
	return &treeAccumulator{graph: graph, roots: make(map[types.NodeID]struct{})}
}

func (t *treeAccumulator) fold(_ context.Context, hit driver.Hit) error {
	t.roots[hit.NodeID()] = struct{}{}
	return nil
}

func (t *treeAccumulator) results(ctx context.Context) ([]types.TreeResult, error) {
	out := make([]types.TreeResult, 0, len(t.roots))
	for root := range t.roots {
		props, err := requireProperties(ctx, t.graph, root,
			types.TreeIDProperty, types.NexsonIDProperty, types.StudyIDProperty)
		if err != nil {
			return nil, err
		}
		out = append(out, types.TreeResult{
			TreeID:   props[0],
			NexsonID: props[1],
			StudyID:  props[2],
		})
	}
	slices.SortFunc(out, func(a, b types.TreeResult) int {
		return cmp.Or(cmp.Compare(a.StudyID, b.StudyID), cmp.Compare(a.TreeID, b.TreeID))
	})
	return out, nil
}

// treeNodeAccumulator groups matched nodes under their containing tree root.
type treeNodeAccumulator struct {
	graph driver.GraphStore
	// groups maps a root to its matched nodes and their nexson ids.
	groups map[types.NodeID]map[types.NodeID]string
	folded map[types.NodeID]struct{}
}

func newTreeNodeAccumulator(graph driver.GraphStore) *treeNodeAccumulator {
	return &treeNodeAccumulator{
		graph:  graph,
		groups: make(map[types.NodeID]map[types.NodeID]string),
		folded: make(map[types.NodeID]struct{}),
	}
}

func (t *treeNodeAccumulator) fold(ctx context.Context, hit driver.Hit) error {
	id := hit.NodeID()
	if _, ok := t.folded[id]; ok {
		return nil
	}

	nexsonID, ok := hit.Property(types.NexsonIDProperty)
	if !ok {
		return types.NewMissingPropertyError(id, types.NexsonIDProperty)
	}

	root, err := t.graph.ContainingRoot(ctx, id)
	if err != nil {
		return &types.RootResolutionError{NodeID: id, Err: err}
	}
	if root == "" {
		return &types.RootResolutionError{NodeID: id, Err: driver.ErrNoTreeRoot}
	}

	nodes, ok := t.groups[root]
	if !ok {
		nodes = make(map[types.NodeID]string)
		t.groups[root] = nodes
	}
	nodes[id] = nexsonID
	t.folded[id] = struct{}{}
	return nil
}

func (t *treeNodeAccumulator) results(ctx context.Context) ([]types.TreeNodeSearchResult, error) {
	out := make([]types.TreeNodeSearchResult, 0, len(t.groups))
	for root, nodes := range t.groups {
		props, err := requireProperties(ctx, t.graph, root, types.NexsonIDProperty, types.StudyIDProperty)
		if err != nil {
			return nil, err
		}

		matched := make([]types.MatchedNode, 0, len(nodes))
		for _, nexsonID := range nodes {
			matched = append(matched, types.MatchedNode{NexsonID: nexsonID})
		}
		slices.SortFunc(matched, func(a, b types.MatchedNode) int {
			return cmp.Compare(a.NexsonID, b.NexsonID)
		})

		out = append(out, types.TreeNodeSearchResult{
			NexsonID:     props[0],
			StudyID:      props[1],
			MatchedNodes: matched,
		})
	}
	slices.SortFunc(out, func(a, b types.TreeNodeSearchResult) int {
		return cmp.Or(cmp.Compare(a.StudyID, b.StudyID), cmp.Compare(a.NexsonID, b.NexsonID))
	})
	return out, nil
}

// requireProperties reads properties of a node in order, failing on the
// first one the node does not carry.
func requireProperties(ctx context.Context, graph driver.GraphStore, id types.NodeID, names ...string) ([]string, error) {
	values := make([]string, len(names))
	for i, name := range names {
		value, ok, err := graph.Property(ctx, id, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s of node %s: %w", name, id, err)
		}
		if !ok {
			return nil, types.NewMissingPropertyError(id, name)
		}
		values[i] = value
	}
	return values, nil
}
