package driver_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/chinchliff/oti/pkg/driver"
	"github.com/chinchliff/oti/pkg/fixture"
	"github.com/chinchliff/oti/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNeo4jUnavailable skips the test unless NEO4J_URI points at a reachable server.
// NEO4J_USER and NEO4J_PASSWORD default to neo4j/password.
func skipIfNeo4jUnavailable(t *testing.T) *driver.Neo4jDriver {
	t.Helper()

	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set")
	}
	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_PASSWORD")
	if password == "" {
		password = "password"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d, err := driver.NewNeo4jDriver(ctx, uri, user, password, os.Getenv("NEO4J_DATABASE"))
	if err != nil {
		t.Skipf("Neo4j not available at %s: %v", uri, err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestNeo4jSearchRoundTrip(t *testing.T) {
	d := skipIfNeo4jUnavailable(t)
	ctx := context.Background()

	require.NoError(t, d.CreateIndices(ctx))
	// Index creation is idempotent.
	require.NoError(t, d.CreateIndices(ctx))

	f, err := fixture.Parse([]byte(badgerFixture))
	require.NoError(t, err)
	for _, s := range f.Studies {
		require.NoError(t, d.LoadStudy(ctx, s))
	}

	// Fulltext indexes are eventually consistent.
	ref := types.IndexRef{Class: types.TreeNodeClass, Kind: types.FulltextIndex}
	var ids []types.NodeID
	require.Eventually(t, func() bool {
		hits, err := d.Query(ctx, ref, driver.NewFuzzyQuery("ot:ottTaxonName", "homo"))
		if err != nil {
			return false
		}
		defer hits.Close(ctx)
		ids = ids[:0]
		for hits.Next(ctx) {
			ids = append(ids, hits.Hit().NodeID())
		}
		return hits.Err() == nil && len(ids) >= 2
	}, 10*time.Second, 200*time.Millisecond)

	for _, id := range ids {
		root, err := d.ContainingRoot(ctx, id)
		require.NoError(t, err)

		nexson, ok, err := d.Property(ctx, root, types.NexsonIDProperty)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "tree1", nexson)
	}
}

func TestNeo4jReloadReplacesStudy(t *testing.T) {
	d := skipIfNeo4jUnavailable(t)
	ctx := context.Background()
	require.NoError(t, d.CreateIndices(ctx))

	for _, doc := range []string{badgerFixture, badgerReloadFixture} {
		f, err := fixture.Parse([]byte(doc))
		require.NoError(t, err)
		for _, s := range f.Studies {
			require.NoError(t, d.LoadStudy(ctx, s))
		}
	}

	noHits := func(ref types.IndexRef, property, value string) func() bool {
		return func() bool {
			hits, err := d.Query(ctx, ref, driver.NewFuzzyQuery(property, value))
			if err != nil {
				return false
			}
			defer hits.Close(ctx)
			return !hits.Next(ctx) && hits.Err() == nil
		}
	}

	// node2 and the old curator name were dropped by the reload.
	nodes := types.IndexRef{Class: types.TreeNodeClass, Kind: types.FulltextIndex}
	require.Eventually(t, noHits(nodes, "ot:ottTaxonName", "erectus"), 10*time.Second, 200*time.Millisecond)
	studies := types.IndexRef{Class: types.StudyClass, Kind: types.ExactIndex}
	require.Eventually(t, noHits(studies, "ot:curatorName", "Jane Smith"), 10*time.Second, 200*time.Millisecond)
}
