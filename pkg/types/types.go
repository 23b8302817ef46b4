package types

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors
var (
	ErrEmptyProperty = errors.New("property name cannot be empty")
	ErrEmptyID       = errors.New("id cannot be empty")
)

// NodeID is the stable identity of a node in the graph store.
// Neo4j element ids and embedded store keys are both strings.
type NodeID string

// Property keys carried by study-meta, tree-root and tree-node nodes.
const (
	// StudyIDProperty is the study identifier on study-meta and tree-root nodes.
	StudyIDProperty = "ot:studyId"
	// TreeIDProperty is the tree identifier on tree-root nodes.
	TreeIDProperty = "oti_tree_id"
	// NexsonIDProperty is the NeXSON element id on tree-root and tree-node nodes.
	NexsonIDProperty = "nexson_id"
)

// EntityClass selects which family of indexes a search runs against.
type EntityClass string

const (
	// StudyClass searches study metadata nodes.
	StudyClass EntityClass = "study"
	// TreeClass searches tree root nodes.
	TreeClass EntityClass = "tree"
	// TreeNodeClass searches individual tree nodes.
	TreeNodeClass EntityClass = "tree_node"
)

// EntityClasses lists every entity class in a stable order.
var EntityClasses = []EntityClass{StudyClass, TreeClass, TreeNodeClass}

// IndexKind selects the exact or the fulltext index of an entity class.
type IndexKind string

const (
	// ExactIndex matches whole property values as a single token.
	ExactIndex IndexKind = "exact"
	// FulltextIndex matches tokenized free text.
	FulltextIndex IndexKind = "fulltext"
)

// IndexRef names one of the six physical indexes.
type IndexRef struct {
	Class EntityClass
	Kind  IndexKind
}

// Name returns the index name used by the graph store, for example
// "study_meta_by_property_exact".
func (r IndexRef) Name() string {
	var prefix string
	switch r.Class {
	case StudyClass:
		prefix = "study_meta"
	case TreeClass:
		prefix = "tree_root"
	case TreeNodeClass:
		prefix = "tree_node"
	default:
		prefix = string(r.Class)
	}
	return fmt.Sprintf("%s_by_property_%s", prefix, r.Kind)
}

func (r IndexRef) String() string {
	return r.Name()
}

// AllIndexes returns the six index references in a stable order.
func AllIndexes() []IndexRef {
	refs := make([]IndexRef, 0, len(EntityClasses)*2)
	for _, class := range EntityClasses {
		refs = append(refs, IndexRef{Class: class, Kind: ExactIndex}, IndexRef{Class: class, Kind: FulltextIndex})
	}
	return refs
}

// SearchPredicate is a single-property search request.
type SearchPredicate struct {
	Property string `json:"property" yaml:"property"`
	Value    string `json:"value" yaml:"value"`
	Exact    bool   `json:"exact" yaml:"exact"`
	Fulltext bool   `json:"fulltext" yaml:"fulltext"`
}

// Enabled reports whether at least one match mode is requested.
func (p SearchPredicate) Enabled() bool {
	return p.Exact || p.Fulltext
}

// Validate checks that the property name is well formed.
// A predicate with both match modes disabled is valid; it simply matches nothing.
func (p SearchPredicate) Validate() error {
	if strings.TrimSpace(p.Property) == "" {
		return &InvalidPredicateError{Property: p.Property, Reason: ErrEmptyProperty.Error()}
	}
	if strings.ContainsAny(p.Property, " \t\r\n") {
		return &InvalidPredicateError{Property: p.Property, Reason: "property name cannot contain whitespace"}
	}
	return nil
}

// StudyResult identifies a matched study.
type StudyResult struct {
	StudyID string `json:"ot:studyId" yaml:"ot:studyId"`
}

// TreeResult identifies a matched tree.
type TreeResult struct {
	TreeID   string `json:"oti_tree_id" yaml:"oti_tree_id"`
	NexsonID string `json:"nexson_id" yaml:"nexson_id"`
	StudyID  string `json:"ot:studyId" yaml:"ot:studyId"`
}

// MatchedNode identifies a tree node that matched a tree-node search.
type MatchedNode struct {
	NexsonID string `json:"nexson_id" yaml:"nexson_id"`
}

// TreeNodeSearchResult groups the matched nodes of a single tree.
type TreeNodeSearchResult struct {
	NexsonID     string        `json:"nexson_id" yaml:"nexson_id"`
	StudyID      string        `json:"ot:studyId" yaml:"ot:studyId"`
	MatchedNodes []MatchedNode `json:"matched_nodes" yaml:"matched_nodes"`
}

// contextKey is an unexported type for context keys defined in this package.
type contextKey string

const (
	// ContextKeyRequestID carries the id assigned to an incoming search request.
	ContextKeyRequestID contextKey = "request_id"
	// ContextKeyRequestSource records where a search came from (server, cli).
	ContextKeyRequestSource contextKey = "request_source"
)
