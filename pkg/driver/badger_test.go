package driver_test

import (
	"context"
	"testing"

	"github.com/chinchliff/oti/pkg/driver"
	"github.com/chinchliff/oti/pkg/fixture"
	"github.com/chinchliff/oti/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const badgerFixture = `
studies:
  - study_id: pg_10
    properties:
      ot:curatorName: Jane Smith
      ot:tag: alpha beta alpha
    trees:
      - tree_id: tree1
        nexson_id: tree1
        properties:
          ot:branchLengthMode: ot:substitutionCount
        nodes:
          - nexson_id: node1
            properties:
              ot:ottTaxonName: Homo sapiens
          - nexson_id: node2
            parent: node1
            properties:
              ot:ottTaxonName: Homo erectus
  - study_id: pg_11
    properties:
      ot:curatorName: Bob Jones
`

func newLoadedBadger(t *testing.T) *driver.BadgerDriver {
	t.Helper()

	d, err := driver.NewBadgerDriver("", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	f, err := fixture.Parse([]byte(badgerFixture))
	require.NoError(t, err)
	for _, s := range f.Studies {
		require.NoError(t, d.LoadStudy(context.Background(), s))
	}
	return d
}

func collectIDs(t *testing.T, hits driver.Hits) []types.NodeID {
	t.Helper()
	ctx := context.Background()
	defer func() { require.NoError(t, hits.Close(ctx)) }()

	var ids []types.NodeID
	for hits.Next(ctx) {
		ids = append(ids, hits.Hit().NodeID())
	}
	require.NoError(t, hits.Err())
	return ids
}

func TestBadgerExactQuery(t *testing.T) {
	d := newLoadedBadger(t)
	ctx := context.Background()
	ref := types.IndexRef{Class: types.StudyClass, Kind: types.ExactIndex}

	hits, err := d.Query(ctx, ref, driver.NewFuzzyQuery(types.StudyIDProperty, "PG_10"))
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{driver.StudyNodeID("pg_10")}, collectIDs(t, hits))

	hits, err = d.Query(ctx, ref, driver.NewFuzzyQuery("ot:curatorName", "jane smyth"))
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{driver.StudyNodeID("pg_10")}, collectIDs(t, hits))

	// Fulltext-only property has no exact postings.
	hits, err = d.Query(ctx, ref, driver.NewFuzzyQuery("ot:comment", "anything"))
	require.NoError(t, err)
	assert.Empty(t, collectIDs(t, hits))
}

func TestBadgerFulltextQueryYieldsEachNodeOnce(t *testing.T) {
	d := newLoadedBadger(t)
	ctx := context.Background()
	ref := types.IndexRef{Class: types.StudyClass, Kind: types.FulltextIndex}

	hits, err := d.Query(ctx, ref, driver.NewFuzzyQuery("ot:tag", "alpha beta"))
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{driver.StudyNodeID("pg_10")}, collectIDs(t, hits))

	hits, err = d.Query(ctx, ref, driver.NewFuzzyQuery("ot:curatorName", "jones"))
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{driver.StudyNodeID("pg_11")}, collectIDs(t, hits))
}

func TestBadgerTreeNodeQuery(t *testing.T) {
	d := newLoadedBadger(t)
	ctx := context.Background()
	ref := types.IndexRef{Class: types.TreeNodeClass, Kind: types.FulltextIndex}

	hits, err := d.Query(ctx, ref, driver.NewFuzzyQuery("ot:ottTaxonName", "homo"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.NodeID{
		driver.TreeNodeNodeID("pg_10", "tree1", "node1"),
		driver.TreeNodeNodeID("pg_10", "tree1", "node2"),
	}, collectIDs(t, hits))
}

func TestBadgerHitsProperties(t *testing.T) {
	d := newLoadedBadger(t)
	ctx := context.Background()
	ref := types.IndexRef{Class: types.TreeClass, Kind: types.ExactIndex}

	hits, err := d.Query(ctx, ref, driver.NewFuzzyQuery(types.TreeIDProperty, "tree1"))
	require.NoError(t, err)
	defer hits.Close(ctx)

	require.True(t, hits.Next(ctx))
	hit := hits.Hit()
	v, ok := hit.Property(types.StudyIDProperty)
	assert.True(t, ok)
	assert.Equal(t, "pg_10", v)
	_, ok = hit.Property("ot:missing")
	assert.False(t, ok)
	assert.False(t, hits.Next(ctx))
}

func TestBadgerHitsCloseIsIdempotent(t *testing.T) {
	d := newLoadedBadger(t)
	ctx := context.Background()
	ref := types.IndexRef{Class: types.StudyClass, Kind: types.ExactIndex}

	hits, err := d.Query(ctx, ref, driver.NewFuzzyQuery(types.StudyIDProperty, "pg_10"))
	require.NoError(t, err)
	require.NoError(t, hits.Close(ctx))
	require.NoError(t, hits.Close(ctx))
	assert.False(t, hits.Next(ctx))
}

func TestBadgerHitsStopOnCancelledContext(t *testing.T) {
	d := newLoadedBadger(t)
	ref := types.IndexRef{Class: types.TreeNodeClass, Kind: types.FulltextIndex}

	hits, err := d.Query(context.Background(), ref, driver.NewFuzzyQuery("ot:ottTaxonName", "homo"))
	require.NoError(t, err)
	defer hits.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, hits.Next(ctx))
	assert.ErrorIs(t, hits.Err(), context.Canceled)
}

func TestBadgerProperty(t *testing.T) {
	d := newLoadedBadger(t)
	ctx := context.Background()

	v, ok, err := d.Property(ctx, driver.TreeNodeID("pg_10", "tree1"), types.NexsonIDProperty)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tree1", v)

	_, ok, err = d.Property(ctx, driver.StudyNodeID("pg_11"), "ot:tag")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = d.Property(ctx, "study:nope", types.StudyIDProperty)
	assert.ErrorIs(t, err, driver.ErrNodeNotFound)
}

func TestBadgerContainingRoot(t *testing.T) {
	d := newLoadedBadger(t)
	ctx := context.Background()
	root := driver.TreeNodeID("pg_10", "tree1")

	got, err := d.ContainingRoot(ctx, driver.TreeNodeNodeID("pg_10", "tree1", "node2"))
	require.NoError(t, err)
	assert.Equal(t, root, got)

	got, err = d.ContainingRoot(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	_, err = d.ContainingRoot(ctx, driver.StudyNodeID("pg_10"))
	assert.ErrorIs(t, err, driver.ErrNoTreeRoot)

	_, err = d.ContainingRoot(ctx, "node:missing")
	assert.ErrorIs(t, err, driver.ErrNodeNotFound)
}

func TestBadgerDriverMetadata(t *testing.T) {
	d := newLoadedBadger(t)
	assert.Equal(t, driver.GraphProviderBadger, d.Provider())
	assert.NoError(t, d.CreateIndices(context.Background()))

	var _ driver.GraphDriver = d
}

const badgerReloadFixture = `
studies:
  - study_id: pg_10
    properties:
      ot:curatorName: Ann Lee
    trees:
      - tree_id: tree1
        nexson_id: tree1
        nodes:
          - nexson_id: node1
            properties:
              ot:ottTaxonName: Homo sapiens
`

func reload(t *testing.T, d *driver.BadgerDriver, doc string) {
	t.Helper()
	f, err := fixture.Parse([]byte(doc))
	require.NoError(t, err)
	for _, s := range f.Studies {
		require.NoError(t, d.LoadStudy(context.Background(), s))
	}
}

func TestBadgerReloadReplacesStudy(t *testing.T) {
	d := newLoadedBadger(t)
	ctx := context.Background()
	reload(t, d, badgerReloadFixture)

	exact := types.IndexRef{Class: types.StudyClass, Kind: types.ExactIndex}
	hits, err := d.Query(ctx, exact, driver.NewFuzzyQuery("ot:curatorName", "Jane Smith"))
	require.NoError(t, err)
	assert.Empty(t, collectIDs(t, hits), "old value no longer matches")

	hits, err = d.Query(ctx, exact, driver.NewFuzzyQuery("ot:curatorName", "Ann Lee"))
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{driver.StudyNodeID("pg_10")}, collectIDs(t, hits))

	// ot:tag was dropped from the study.
	fulltext := types.IndexRef{Class: types.StudyClass, Kind: types.FulltextIndex}
	hits, err = d.Query(ctx, fulltext, driver.NewFuzzyQuery("ot:tag", "alpha"))
	require.NoError(t, err)
	assert.Empty(t, collectIDs(t, hits))

	// node2 was dropped from the tree.
	nodes := types.IndexRef{Class: types.TreeNodeClass, Kind: types.FulltextIndex}
	hits, err = d.Query(ctx, nodes, driver.NewFuzzyQuery("ot:ottTaxonName", "homo"))
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{driver.TreeNodeNodeID("pg_10", "tree1", "node1")}, collectIDs(t, hits))

	_, _, err = d.Property(ctx, driver.TreeNodeNodeID("pg_10", "tree1", "node2"), types.NexsonIDProperty)
	assert.ErrorIs(t, err, driver.ErrNodeNotFound)

	// Other studies are untouched.
	hits, err = d.Query(ctx, exact, driver.NewFuzzyQuery("ot:curatorName", "Bob Jones"))
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{driver.StudyNodeID("pg_11")}, collectIDs(t, hits))
}

func TestBadgerReloadLeavesStudiesSharingAnIDPrefix(t *testing.T) {
	d := newLoadedBadger(t)
	ctx := context.Background()

	reload(t, d, `
studies:
  - study_id: pg_1
    trees:
      - tree_id: tree1
        nexson_id: tree1
        nodes:
          - nexson_id: node1
            properties:
              ot:ottTaxonName: Pan troglodytes
`)
	reload(t, d, `
studies:
  - study_id: pg_1
`)

	ref := types.IndexRef{Class: types.TreeNodeClass, Kind: types.FulltextIndex}
	hits, err := d.Query(ctx, ref, driver.NewFuzzyQuery("ot:ottTaxonName", "troglodytes"))
	require.NoError(t, err)
	assert.Empty(t, collectIDs(t, hits))

	hits, err = d.Query(ctx, ref, driver.NewFuzzyQuery("ot:ottTaxonName", "homo"))
	require.NoError(t, err)
	assert.Len(t, collectIDs(t, hits), 2, "pg_10 keeps its nodes")
}
