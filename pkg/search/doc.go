// Package search resolves single-property search predicates into studies,
// trees and tree nodes.
//
// An Aggregator queries the exact and fulltext index of an entity class,
// folds the hits of both passes into one accumulator so an entity matched by
// both appears once, and materializes the accumulated entities into results:
//
//	agg := search.NewAggregator(d, d, logger)
//	trees, err := agg.SearchTreeNodes(ctx, types.SearchPredicate{
//	    Property: "ot:ottTaxonName",
//	    Value:    "Homo sapiens",
//	    Fulltext: true,
//	})
//
// Tree-node hits are grouped under the tree root that contains them, giving
// one TreeNodeSearchResult per tree.
//
// A predicate with neither match mode enabled returns an empty result. Any
// index, property or root resolution failure aborts the search; partial
// results are never returned.
package search
