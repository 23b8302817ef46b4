package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/chinchliff/oti/pkg/driver"
	"github.com/chinchliff/oti/pkg/types"
)

// Observer receives the outcome of every search.
type Observer interface {
	SearchCompleted(class types.EntityClass, hits, results int, elapsed time.Duration, err error)
}

// Aggregator resolves search predicates into study, tree and tree-node
// results. It holds no per-search state and is safe for concurrent use when
// its index service and graph store are.
type Aggregator struct {
	index    driver.IndexService
	graph    driver.GraphStore
	logger   *slog.Logger
	observer Observer
}

// NewAggregator creates an aggregator over an index service and the graph
// store that holds the indexed nodes.
func NewAggregator(index driver.IndexService, graph driver.GraphStore, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		index:  index,
		graph:  graph,
		logger: logger,
	}
}

// SetObserver sets the observer notified after each search.
func (a *Aggregator) SetObserver(observer Observer) {
	a.observer = observer
}

// SearchStudies returns the studies whose metadata matches the predicate.
func (a *Aggregator) SearchStudies(ctx context.Context, pred types.SearchPredicate) ([]types.StudyResult, error) {
	return run[types.StudyResult](ctx, a, types.StudyClass, pred, newStudyAccumulator())
}

// SearchTrees returns the trees whose root matches the predicate.
func (a *Aggregator) SearchTrees(ctx context.Context, pred types.SearchPredicate) ([]types.TreeResult, error) {
	return run[types.TreeResult](ctx, a, types.TreeClass, pred, newTreeAccumulator(a.graph))
}

// SearchTreeNodes returns one result per tree holding matching nodes.
func (a *Aggregator) SearchTreeNodes(ctx context.Context, pred types.SearchPredicate) ([]types.TreeNodeSearchResult, error) {
	return run[types.TreeNodeSearchResult](ctx, a, types.TreeNodeClass, pred, newTreeNodeAccumulator(a.graph))
}

// folder folds a single index hit into a result shape.
type folder interface {
	fold(ctx context.Context, hit driver.Hit) error
}

// accumulator collects hits from both index passes and materializes them
// into results once both passes are done.
type accumulator[R any] interface {
	folder
	results(ctx context.Context) ([]R, error)
}

func run[R any](ctx context.Context, a *Aggregator, class types.EntityClass, pred types.SearchPredicate, acc accumulator[R]) (results []R, err error) {
	start := time.Now()
	hits := 0
	defer func() {
		if a.observer != nil {
			a.observer.SearchCompleted(class, hits, len(results), time.Since(start), err)
		}
	}()

	if !pred.Enabled() {
		return []R{}, nil
	}
	if err = validate(class, pred); err != nil {
		return nil, err
	}

	query := driver.NewFuzzyQuery(pred.Property, pred.Value)
	for _, pass := range passes(class, pred) {
		n, passErr := a.fold(ctx, pass, query, acc)
		hits += n
		if passErr != nil {
			a.logger.WarnContext(ctx, "search pass failed",
				"index", pass.Name(),
				"property", pred.Property,
				"error", passErr)
			return nil, passErr
		}
	}

	results, err = acc.results(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to materialize search results",
			"class", class,
			"property", pred.Property,
			"error", err)
		return nil, err
	}

	a.logger.DebugContext(ctx, "search completed",
		"class", class,
		"property", pred.Property,
		"hits", hits,
		"results", len(results),
		"elapsed", time.Since(start))
	return results, nil
}

func validate(class types.EntityClass, pred types.SearchPredicate) error {
	if err := pred.Validate(); err != nil {
		return err
	}
	if _, ok := types.LookupProperty(class, pred.Property); !ok {
		return &types.InvalidPredicateError{
			Property: pred.Property,
			Class:    class,
			Reason:   "property is not searchable for this class",
		}
	}
	return nil
}

// passes lists the indexes a predicate queries, exact first.
func passes(class types.EntityClass, pred types.SearchPredicate) []types.IndexRef {
	refs := make([]types.IndexRef, 0, 2)
	if pred.Exact {
		refs = append(refs, types.IndexRef{Class: class, Kind: types.ExactIndex})
	}
	if pred.Fulltext {
		refs = append(refs, types.IndexRef{Class: class, Kind: types.FulltextIndex})
	}
	return refs
}

// fold runs one index query and feeds every hit to f. The result handle is
// closed on every return path.
func (a *Aggregator) fold(ctx context.Context, ref types.IndexRef, query driver.FuzzyQuery, f folder) (n int, err error) {
	hits, err := a.index.Query(ctx, ref, query)
	if err != nil {
		return 0, &types.IndexUnavailableError{Index: ref, Err: err}
	}
	defer func() {
		closeErr := hits.Close(context.WithoutCancel(ctx))
		if closeErr != nil && err == nil {
			err = &types.IndexUnavailableError{Index: ref, Err: closeErr}
		}
	}()

	for hits.Next(ctx) {
		n++
		if err := f.fold(ctx, hits.Hit()); err != nil {
			return n, err
		}
	}
	if err := hits.Err(); err != nil {
		return n, &types.IndexUnavailableError{Index: ref, Err: err}
	}
	return n, nil
}
