// Package fixture reads study documents used to seed a graph store.
//
// A fixture is a YAML (or JSON) document listing studies, their trees and
// the nodes of each tree:
//
//	studies:
//	  - study_id: pg_10
//	    properties:
//	      ot:curatorName: Jane Smith
//	    trees:
//	      - tree_id: tree1
//	        nexson_id: tree1
//	        nodes:
//	          - nexson_id: node1
//	            properties:
//	              ot:ottTaxonName: Homo sapiens
//	          - nexson_id: node2
//	            parent: node1
package fixture

import (
	"errors"
	"fmt"
	"maps"
	"os"

	"github.com/chinchliff/oti/pkg/types"
	"gopkg.in/yaml.v3"
)

// ErrInvalidFixture is returned for documents that cannot describe a consistent graph.
var ErrInvalidFixture = errors.New("invalid fixture")

// File is the top-level fixture document.
type File struct {
	Studies []Study `yaml:"studies" json:"studies"`
}

// Study is a study-meta node and the trees it owns.
type Study struct {
	StudyID    string            `yaml:"study_id" json:"study_id"`
	Properties map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`
	Trees      []Tree            `yaml:"trees,omitempty" json:"trees,omitempty"`
}

// Tree is a tree-root node and its descendants.
type Tree struct {
	TreeID     string            `yaml:"tree_id" json:"tree_id"`
	NexsonID   string            `yaml:"nexson_id" json:"nexson_id"`
	Properties map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`
	Nodes      []Node            `yaml:"nodes,omitempty" json:"nodes,omitempty"`
}

// Node is a tree node. An empty Parent attaches the node directly to the tree root.
type Node struct {
	NexsonID   string            `yaml:"nexson_id" json:"nexson_id"`
	Parent     string            `yaml:"parent,omitempty" json:"parent,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// Load reads and validates a fixture file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a fixture document. JSON input is accepted
// since it is valid YAML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks identifiers and parent links.
func (f *File) Validate() error {
	studies := make(map[string]bool, len(f.Studies))
	for i, s := range f.Studies {
		if s.StudyID == "" {
			return fmt.Errorf("%w: study %d has no study_id", ErrInvalidFixture, i)
		}
		if studies[s.StudyID] {
			return fmt.Errorf("%w: duplicate study %q", ErrInvalidFixture, s.StudyID)
		}
		studies[s.StudyID] = true

		trees := make(map[string]bool, len(s.Trees))
		for _, t := range s.Trees {
			if t.TreeID == "" || t.NexsonID == "" {
				return fmt.Errorf("%w: study %q has a tree without tree_id or nexson_id", ErrInvalidFixture, s.StudyID)
			}
			if trees[t.TreeID] {
				return fmt.Errorf("%w: duplicate tree %q in study %q", ErrInvalidFixture, t.TreeID, s.StudyID)
			}
			trees[t.TreeID] = true
			if err := t.validateNodes(s.StudyID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t Tree) validateNodes(studyID string) error {
	known := map[string]bool{t.NexsonID: true}
	for _, n := range t.Nodes {
		if n.NexsonID == "" {
			return fmt.Errorf("%w: tree %s/%s has a node without nexson_id", ErrInvalidFixture, studyID, t.TreeID)
		}
		if known[n.NexsonID] {
			return fmt.Errorf("%w: duplicate node %q in tree %s/%s", ErrInvalidFixture, n.NexsonID, studyID, t.TreeID)
		}
		known[n.NexsonID] = true
	}
	for _, n := range t.Nodes {
		if n.Parent != "" && !known[n.Parent] {
			return fmt.Errorf("%w: node %q in tree %s/%s has unknown parent %q",
				ErrInvalidFixture, n.NexsonID, studyID, t.TreeID, n.Parent)
		}
	}
	return nil
}

// NodeProperties returns the properties stored on the study-meta node.
func (s Study) NodeProperties() map[string]string {
	props := maps.Clone(s.Properties)
	if props == nil {
		props = make(map[string]string)
	}
	props[types.StudyIDProperty] = s.StudyID
	return props
}

// RootProperties returns the properties stored on the tree-root node.
func (t Tree) RootProperties(studyID string) map[string]string {
	props := maps.Clone(t.Properties)
	if props == nil {
		props = make(map[string]string)
	}
	props[types.TreeIDProperty] = t.TreeID
	props[types.NexsonIDProperty] = t.NexsonID
	props[types.StudyIDProperty] = studyID
	return props
}

// ParentOf returns the nexson id a node hangs from, defaulting to the tree root.
func (t Tree) ParentOf(n Node) string {
	if n.Parent == "" {
		return t.NexsonID
	}
	return n.Parent
}

// NodeProperties returns the properties stored on the tree-node node.
func (n Node) NodeProperties() map[string]string {
	props := maps.Clone(n.Properties)
	if props == nil {
		props = make(map[string]string)
	}
	props[types.NexsonIDProperty] = n.NexsonID
	return props
}
