// Package types defines the data model shared by the oti search packages.
//
// This package contains:
//   - SearchPredicate: a single-property search request with match modes
//   - StudyResult, TreeResult, TreeNodeSearchResult: entity-level search results
//   - EntityClass and IndexRef: the six indexes (study, tree, tree node × exact, fulltext)
//   - SearchableProperty: the registry of properties each class indexes
//   - Error kinds: ErrInvalidPredicate, ErrIndexUnavailable, ErrMissingProperty,
//     ErrRootResolution and their typed counterparts
//
// # Errors
//
// Typed errors implement Is so callers can match on the sentinel:
//
//	if errors.Is(err, types.ErrRootResolution) {
//	    // a matched tree node could not be traced to its tree
//	}
//
// # JSON Serialization
//
// Result types carry the property names used on the graph nodes as their
// JSON and YAML keys, so serialized results read like the nodes they came from.
package types
