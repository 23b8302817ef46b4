// Package driver provides the search backends used by oti.
//
// A backend answers two kinds of requests: fuzzy queries against the six
// search indexes (IndexService) and node reads by id (GraphStore). Two
// implementations are provided:
//   - Neo4j: fulltext indexes queried with Lucene fuzzy syntax
//   - Badger: an embedded key-value store holding nodes and index postings
//
// # Usage
//
//	// Neo4j
//	d, err := driver.NewNeo4jDriver(ctx, uri, username, password, "neo4j")
//
//	// Badger, on disk or in memory
//	d, err := driver.NewBadgerDriver("/var/lib/oti", false, logger)
//
// # Fuzzy Queries
//
// NewFuzzyQuery lowercases and escapes a search value and derives the
// minimum identity a stored term needs to match it:
//
//	q := driver.NewFuzzyQuery("ot:curatorName", "Jane Smith")
//	hits, err := d.Query(ctx, types.IndexRef{Class: types.StudyClass, Kind: types.FulltextIndex}, q)
//	if err != nil {
//	    return err
//	}
//	defer hits.Close(ctx)
//	for hits.Next(ctx) {
//	    fmt.Println(hits.Hit().NodeID())
//	}
//	return hits.Err()
//
// # Thread Safety
//
// Both drivers are safe for concurrent use. A Hits handle is not; it belongs
// to the goroutine that ran the query.
package driver
