// Package oti resolves property searches over a phylogenetic study graph.
//
// A search names a node property, a value and the match modes to use. The
// value is matched fuzzily against the exact index, the fulltext index, or
// both, of one entity class, and the matching nodes are aggregated into
// studies, trees or trees with their matching nodes.
//
// # Basic Usage
//
// Open a driver and create a client over it:
//
//	d, err := driver.NewBadgerDriver("/var/lib/oti", false, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := oti.NewDriverClient(d, &oti.Config{
//		CircuitBreaker: cfg.CircuitBreaker,
//		Metrics:        metrics.New(nil),
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// # Searching
//
// Studies are found by the properties of their metadata node:
//
//	studies, err := client.SearchStudies(ctx, types.SearchPredicate{
//		Property: types.StudyIDProperty,
//		Value:    "pg_420",
//		Exact:    true,
//	})
//
// Tree node searches group matches by the tree that contains them:
//
//	trees, err := client.SearchTreeNodes(ctx, types.SearchPredicate{
//		Property: "ot:ottTaxonName",
//		Value:    "Homo sapiens",
//		Exact:    true,
//		Fulltext: true,
//	})
//	for _, tree := range trees {
//		fmt.Println(tree.StudyID, tree.NexsonID, len(tree.MatchedNodes))
//	}
//
// A predicate with neither match mode set matches nothing and returns an
// empty result without touching the store. Searches fail with an error
// matching one of the sentinels in package types: ErrInvalidPredicate,
// ErrIndexUnavailable, ErrMissingProperty or ErrRootResolution.
//
// # Backends
//
// Two drivers implement the index service and graph store: Neo4j, with six
// fulltext indexes, and an embedded badger store that fixtures can be loaded
// into for local use and tests.
package oti
