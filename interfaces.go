package oti

import (
	"context"

	"github.com/chinchliff/oti/pkg/types"
)

// The QueryRunner interface is composed from these smaller interfaces.
// Consumers should depend on the smallest interface that meets their needs.

// StudySearcher finds studies by their metadata.
type StudySearcher interface {
	// SearchStudies returns the distinct studies whose metadata node matches
	// the predicate in the study exact and/or fulltext index.
	SearchStudies(ctx context.Context, pred types.SearchPredicate) ([]types.StudyResult, error)
}

// TreeSearcher finds trees by the properties of their root node.
type TreeSearcher interface {
	// SearchTrees returns the distinct trees whose root matches the predicate.
	SearchTrees(ctx context.Context, pred types.SearchPredicate) ([]types.TreeResult, error)

	// SearchTreeNodes returns one result per tree holding at least one
	// matching node, listing the matched nodes of that tree.
	SearchTreeNodes(ctx context.Context, pred types.SearchPredicate) ([]types.TreeNodeSearchResult, error)
}

// PropertyCatalog describes what can be searched.
type PropertyCatalog interface {
	// Properties lists the searchable properties of an entity class.
	Properties(class types.EntityClass) []types.SearchableProperty
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// QueryRunner is the complete search surface served over HTTP and the CLI.
type QueryRunner interface {
	StudySearcher
	TreeSearcher
	PropertyCatalog
	HealthChecker

	// Close releases the backing store.
	Close() error
}

var _ QueryRunner = (*Client)(nil)
