package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chinchliff/oti/pkg/fixture"
	"github.com/chinchliff/oti/pkg/types"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jDriver implements GraphDriver for Neo4j. Search indexes are Neo4j
// fulltext indexes queried with Lucene syntax.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver creates a new Neo4j driver instance and verifies the
// server is reachable.
func NewNeo4jDriver(ctx context.Context, uri, username, password, database string) (*Neo4jDriver, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", uri, err)
	}

	if database == "" {
		database = "neo4j"
	}

	return &Neo4jDriver{
		client:   client,
		database: database,
	}, nil
}

func (n *Neo4jDriver) readSession(ctx context.Context) neo4j.SessionWithContext {
	return n.client.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: n.database,
		AccessMode:   neo4j.AccessModeRead,
	})
}

// Query runs a fuzzy query against one of the fulltext indexes. The returned
// handle owns a session that is released by Close.
func (n *Neo4jDriver) Query(ctx context.Context, index types.IndexRef, query FuzzyQuery) (Hits, error) {
	session := n.readSession(ctx)
	result, err := session.Run(ctx, queryIndexNodes, map[string]any{
		"index": index.Name(),
		"query": query.LuceneQuery(index.Kind),
	})
	if err != nil {
		_ = session.Close(ctx)
		return nil, fmt.Errorf("query on index %s failed: %w", index.Name(), err)
	}

	return &neo4jHits{session: session, result: result, class: index.Class}, nil
}

type neo4jHits struct {
	session neo4j.SessionWithContext
	result  neo4j.ResultWithContext
	class   types.EntityClass
	current *Node
	err     error
	closed  bool
}

func (h *neo4jHits) Next(ctx context.Context) bool {
	if h.closed || h.err != nil {
		return false
	}
	if !h.result.Next(ctx) {
		return false
	}

	record := h.result.Record()
	id, err := RecordString(record, "id")
	if err != nil {
		h.err = err
		return false
	}
	props, err := RecordProperties(record, "props")
	if err != nil {
		h.err = err
		return false
	}

	h.current = &Node{ID: types.NodeID(id), Class: h.class, Properties: props}
	return true
}

func (h *neo4jHits) Hit() Hit {
	return h.current
}

func (h *neo4jHits) Err() error {
	if h.err != nil {
		return h.err
	}
	return h.result.Err()
}

func (h *neo4jHits) Close(ctx context.Context) error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.session.Close(ctx)
}

// Property reads a single property of a node by element id.
func (n *Neo4jDriver) Property(ctx context.Context, id types.NodeID, name string) (string, bool, error) {
	session := n.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, getNodeProperty, map[string]any{
			"id":   string(id),
			"name": name,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s of node %s: %w", name, id, err)
	}

	records := result.([]*neo4j.Record)
	if len(records) == 0 {
		return "", false, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	raw, _ := records[0].Get("value")
	value, ok := PropertyString(raw)
	return value, ok, nil
}

// ContainingRoot follows CHILDOF edges from a node up to its tree root.
func (n *Neo4jDriver) ContainingRoot(ctx context.Context, id types.NodeID) (types.NodeID, error) {
	session := n.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, getContainingRoot, map[string]any{"id": string(id)})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve root of node %s: %w", id, err)
	}

	records := result.([]*neo4j.Record)
	if len(records) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	raw, _ := records[0].Get("root")
	root, ok := AsString(raw)
	if !ok || root == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTreeRoot, id)
	}
	return types.NodeID(root), nil
}

// LoadStudy merges a study, its tree roots and tree nodes into the graph.
// Exact-indexed properties are written alongside their lowercased mirrors.
// Reloading a study replaces it: properties, trees and nodes the new version
// does not carry are removed.
func (n *Neo4jDriver) LoadStudy(ctx context.Context, study fixture.Study) error {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	treeIDs := make([]string, 0, len(study.Trees))
	nodeKeys := []string{}
	for _, tree := range study.Trees {
		treeIDs = append(treeIDs, tree.TreeID)
		for _, node := range tree.Nodes {
			nodeKeys = append(nodeKeys, tree.TreeID+"/"+node.NexsonID)
		}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, pruneStudy, map[string]any{
			"studyId":  study.StudyID,
			"treeIds":  treeIDs,
			"nodeKeys": nodeKeys,
		}); err != nil {
			return nil, fmt.Errorf("failed to prune study: %w", err)
		}
		if _, err := tx.Run(ctx, unlinkStudyNodes, map[string]any{"studyId": study.StudyID}); err != nil {
			return nil, fmt.Errorf("failed to unlink study nodes: %w", err)
		}

		if _, err := tx.Run(ctx, mergeStudyNode, map[string]any{
			"studyId": study.StudyID,
			"props":   exactMirrors(types.StudyClass, study.NodeProperties()),
		}); err != nil {
			return nil, fmt.Errorf("failed to write study: %w", err)
		}

		for _, tree := range study.Trees {
			params := map[string]any{
				"studyId": study.StudyID,
				"treeId":  tree.TreeID,
				"props":   exactMirrors(types.TreeClass, tree.RootProperties(study.StudyID)),
			}
			if _, err := tx.Run(ctx, mergeTreeRoot, params); err != nil {
				return nil, fmt.Errorf("failed to write tree %s: %w", tree.TreeID, err)
			}

			nodes := make([]map[string]any, 0, len(tree.Nodes))
			edges := make([]map[string]any, 0, len(tree.Nodes))
			for _, node := range tree.Nodes {
				props := exactMirrors(types.TreeNodeClass, node.NodeProperties())
				props[types.StudyIDProperty] = study.StudyID
				props[types.TreeIDProperty] = tree.TreeID
				nodes = append(nodes, map[string]any{"nexson_id": node.NexsonID, "props": props})
				edges = append(edges, map[string]any{"child": node.NexsonID, "parent": tree.ParentOf(node)})
			}
			if len(nodes) == 0 {
				continue
			}

			params["nodes"] = nodes
			params["edges"] = edges
			if _, err := tx.Run(ctx, mergeTreeNodes, params); err != nil {
				return nil, fmt.Errorf("failed to write nodes of tree %s: %w", tree.TreeID, err)
			}
			if _, err := tx.Run(ctx, mergeChildEdges, params); err != nil {
				return nil, fmt.Errorf("failed to link nodes of tree %s: %w", tree.TreeID, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to load study %s: %w", study.StudyID, err)
	}
	return nil
}

// CreateIndices creates the six fulltext search indexes.
func (n *Neo4jDriver) CreateIndices(ctx context.Context) error {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	for _, indexQuery := range GetFulltextIndices() {
		result, err := session.Run(ctx, indexQuery, nil)
		if err == nil {
			_, err = result.Consume(ctx)
		}
		if err != nil && !isExistingIndexError(err) {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func isExistingIndexError(err error) bool {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && strings.Contains(neoErr.Code, "EquivalentSchemaRule") {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "An equivalent")
}

func (n *Neo4jDriver) Provider() GraphProvider {
	return GraphProviderNeo4j
}

func (n *Neo4jDriver) Close() error {
	return n.client.Close(context.Background())
}

// VerifyConnectivity checks if the driver can connect to the database.
func (n *Neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	return n.client.VerifyConnectivity(ctx)
}
