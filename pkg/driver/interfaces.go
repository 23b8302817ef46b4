package driver

import (
	"context"

	"github.com/chinchliff/oti/pkg/fixture"
	"github.com/chinchliff/oti/pkg/types"
)

// Hit is one node returned by an index query.
type Hit interface {
	NodeID() types.NodeID
	// Property returns a property of the hit node. ok is false when the node
	// does not carry it.
	Property(name string) (value string, ok bool)
}

// Hits is a scoped handle over the results of one index query. It holds
// store resources until Close is called, and Close must be called exactly
// once on every handle a query returns, whether or not iteration finished.
type Hits interface {
	// Next advances to the next hit. It returns false when the results are
	// exhausted or iteration failed; Err tells the two apart.
	Next(ctx context.Context) bool
	// Hit returns the current hit. It is only valid after Next returned true.
	Hit() Hit
	Err() error
	Close(ctx context.Context) error
}

// IndexService runs fuzzy queries against the named search indexes.
type IndexService interface {
	Query(ctx context.Context, index types.IndexRef, query FuzzyQuery) (Hits, error)
}

// GraphStore reads node properties and tree structure.
type GraphStore interface {
	// Property reads a property of a node. ok is false when the node exists
	// but does not carry the property. ErrNodeNotFound is returned for
	// unknown nodes.
	Property(ctx context.Context, id types.NodeID, name string) (value string, ok bool, err error)
	// ContainingRoot returns the tree root a node belongs to. A tree root
	// is its own containing root.
	ContainingRoot(ctx context.Context, id types.NodeID) (types.NodeID, error)
}

// StudyLoader writes fixture studies into the store and its indexes.
type StudyLoader interface {
	LoadStudy(ctx context.Context, study fixture.Study) error
}

// GraphDriver is a complete search backend.
type GraphDriver interface {
	IndexService
	GraphStore
	StudyLoader

	// CreateIndices creates the six search indexes if they do not exist.
	CreateIndices(ctx context.Context) error
	Provider() GraphProvider
	Close() error
}
