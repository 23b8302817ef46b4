package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chinchliff/oti/pkg/fixture"
	"github.com/chinchliff/oti/pkg/types"
	badger "github.com/dgraph-io/badger/v4"
)

// Key layout:
//
//	n/<node id>                                  -> JSON Node
//	x/<index name>/<property>\x00<token>\x00<id> -> empty
const (
	nodeKeyPrefix    = "n/"
	postingKeyPrefix = "x/"
	keySeparator     = byte(0)
)

// BadgerDriver is an embedded GraphDriver backed by BadgerDB. Index entries
// are postings keyed by property and token, scanned with fuzzy matching.
type BadgerDriver struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerDriver opens a store at path, or an in-memory store when inMemory is set.
func NewBadgerDriver(path string, inMemory bool, logger *slog.Logger) (*BadgerDriver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	return &BadgerDriver{db: db, logger: logger}, nil
}

// StudyNodeID returns the store id of a study-meta node.
func StudyNodeID(studyID string) types.NodeID {
	return types.NodeID("study:" + studyID)
}

// TreeNodeID returns the store id of a tree-root node.
func TreeNodeID(studyID, treeID string) types.NodeID {
	return types.NodeID("tree:" + studyID + "/" + treeID)
}

// TreeNodeNodeID returns the store id of a node inside a tree.
func TreeNodeNodeID(studyID, treeID, nexsonID string) types.NodeID {
	return types.NodeID("node:" + studyID + "/" + treeID + "/" + nexsonID)
}

func nodeKey(id types.NodeID) []byte {
	return []byte(nodeKeyPrefix + string(id))
}

func postingPrefix(index types.IndexRef, property string) []byte {
	key := []byte(postingKeyPrefix + index.Name() + "/" + property)
	return append(key, keySeparator)
}

func postingKey(index types.IndexRef, property, token string, id types.NodeID) []byte {
	key := postingPrefix(index, property)
	key = append(key, token...)
	key = append(key, keySeparator)
	return append(key, string(id)...)
}

func splitPostingKey(key, prefix []byte) (token string, id types.NodeID, ok bool) {
	if !bytes.HasPrefix(key, prefix) {
		return "", "", false
	}
	rest := key[len(prefix):]
	i := bytes.IndexByte(rest, keySeparator)
	if i < 0 {
		return "", "", false
	}
	return string(rest[:i]), types.NodeID(rest[i+1:]), true
}

func getNode(txn *badger.Txn, id types.NodeID) (*Node, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var node Node
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &node)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode node %s: %w", id, err)
	}
	return &node, nil
}

// Query scans the postings of the queried property and yields each node
// with a matching token once. The handle keeps a read transaction open
// until Close.
func (b *BadgerDriver) Query(ctx context.Context, index types.IndexRef, query FuzzyQuery) (Hits, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := postingPrefix(index, query.Property)
	txn := b.db.NewTransaction(false)
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
	it.Seek(prefix)

	return &badgerHits{
		txn:    txn,
		it:     it,
		prefix: prefix,
		kind:   index.Kind,
		query:  query,
		seen:   make(map[types.NodeID]bool),
	}, nil
}

type badgerHits struct {
	txn     *badger.Txn
	it      *badger.Iterator
	prefix  []byte
	kind    types.IndexKind
	query   FuzzyQuery
	seen    map[types.NodeID]bool
	current *Node
	err     error
	closed  bool
}

func (h *badgerHits) Next(ctx context.Context) bool {
	if h.closed || h.err != nil {
		return false
	}

	for ; h.it.ValidForPrefix(h.prefix); h.it.Next() {
		if err := ctx.Err(); err != nil {
			h.err = err
			return false
		}

		token, id, ok := splitPostingKey(h.it.Item().Key(), h.prefix)
		if !ok || h.seen[id] || !h.query.Matches(h.kind, token) {
			continue
		}

		node, err := getNode(h.txn, id)
		if err != nil {
			h.err = err
			return false
		}
		h.seen[id] = true
		h.current = node
		h.it.Next()
		return true
	}
	return false
}

func (h *badgerHits) Hit() Hit {
	return h.current
}

func (h *badgerHits) Err() error {
	return h.err
}

func (h *badgerHits) Close(context.Context) error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.it.Close()
	h.txn.Discard()
	return nil
}

// Property reads a property of a stored node.
func (b *BadgerDriver) Property(ctx context.Context, id types.NodeID, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	var (
		value string
		ok    bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		node, err := getNode(txn, id)
		if err != nil {
			return err
		}
		value, ok = node.Property(name)
		return nil
	})
	return value, ok, err
}

// ContainingRoot walks parent links up to the tree root.
func (b *BadgerDriver) ContainingRoot(ctx context.Context, id types.NodeID) (types.NodeID, error) {
	var root types.NodeID
	err := b.db.View(func(txn *badger.Txn) error {
		visited := make(map[types.NodeID]bool)
		current := id
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			if visited[current] {
				return fmt.Errorf("%w: cycle at %s", ErrNoTreeRoot, current)
			}
			visited[current] = true

			node, err := getNode(txn, current)
			if err != nil {
				return err
			}
			if node.Class == types.TreeClass {
				root = node.ID
				return nil
			}
			if node.Parent == "" {
				return fmt.Errorf("%w: %s", ErrNoTreeRoot, id)
			}
			current = node.Parent
		}
	})
	return root, err
}

// LoadStudy writes a study, its trees and their nodes along with the index
// postings of every searchable property they carry. Reloading a study
// replaces it: nodes and postings of the previous version that the new one
// does not carry are deleted.
func (b *BadgerDriver) LoadStudy(ctx context.Context, study fixture.Study) error {
	nodes, err := studyNodes(ctx, study)
	if err != nil {
		return err
	}

	stale, err := b.staleKeys(study.StudyID, nodes)
	if err != nil {
		return fmt.Errorf("failed to read previous version of study %s: %w", study.StudyID, err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("failed to delete stale key of study %s: %w", study.StudyID, err)
		}
	}
	for _, node := range nodes {
		if err := b.writeNode(wb, node); err != nil {
			return err
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to load study %s: %w", study.StudyID, err)
	}

	b.logger.Debug("loaded study",
		"study_id", study.StudyID,
		"trees", len(study.Trees),
		"stale_keys", len(stale))
	return nil
}

// studyNodes lists the study-meta node, tree roots and tree nodes of study.
func studyNodes(ctx context.Context, study fixture.Study) ([]*Node, error) {
	nodes := []*Node{NewNode(StudyNodeID(study.StudyID), types.StudyClass, study.NodeProperties())}

	for _, tree := range study.Trees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rootID := TreeNodeID(study.StudyID, tree.TreeID)
		nodes = append(nodes, NewNode(rootID, types.TreeClass, tree.RootProperties(study.StudyID)))

		for _, n := range tree.Nodes {
			node := NewNode(TreeNodeNodeID(study.StudyID, tree.TreeID, n.NexsonID), types.TreeNodeClass, n.NodeProperties())
			if parent := tree.ParentOf(n); parent == tree.NexsonID {
				node.Parent = rootID
			} else {
				node.Parent = TreeNodeNodeID(study.StudyID, tree.TreeID, parent)
			}
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// staleKeys returns the node and posting keys of the stored version of a
// study that writing nodes would not overwrite.
func (b *BadgerDriver) staleKeys(studyID string, nodes []*Node) ([][]byte, error) {
	keep := make(map[string]bool)
	for _, node := range nodes {
		keep[string(nodeKey(node.ID))] = true
		for _, key := range postingKeys(node) {
			keep[string(key)] = true
		}
	}

	var stale [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		previous, err := storedStudyNodes(txn, studyID)
		if err != nil {
			return err
		}
		for _, node := range previous {
			for _, key := range append([][]byte{nodeKey(node.ID)}, postingKeys(node)...) {
				if !keep[string(key)] {
					stale = append(stale, key)
				}
			}
		}
		return nil
	})
	return stale, err
}

// storedStudyNodes reads every stored node that belongs to studyID.
func storedStudyNodes(txn *badger.Txn, studyID string) ([]*Node, error) {
	var nodes []*Node

	study, err := getNode(txn, StudyNodeID(studyID))
	switch {
	case err == nil:
		nodes = append(nodes, study)
	case !errors.Is(err, ErrNodeNotFound):
		return nil, err
	}

	prefixes := [][]byte{
		nodeKey(types.NodeID("tree:" + studyID + "/")),
		nodeKey(types.NodeID("node:" + studyID + "/")),
	}
	for _, prefix := range prefixes {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var node Node
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &node)
			})
			if err != nil {
				it.Close()
				return nil, fmt.Errorf("failed to decode node %s: %w", it.Item().Key(), err)
			}
			nodes = append(nodes, &node)
		}
		it.Close()
	}
	return nodes, nil
}

func (b *BadgerDriver) writeNode(wb *badger.WriteBatch, node *Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to encode node %s: %w", node.ID, err)
	}
	if err := wb.Set(nodeKey(node.ID), data); err != nil {
		return fmt.Errorf("failed to write node %s: %w", node.ID, err)
	}

	for _, key := range postingKeys(node) {
		if err := wb.Set(key, nil); err != nil {
			return fmt.Errorf("failed to write postings of node %s: %w", node.ID, err)
		}
	}
	return nil
}

// postingKeys returns the exact and fulltext postings of every searchable
// property node carries.
func postingKeys(node *Node) [][]byte {
	var keys [][]byte
	for name, value := range node.Properties {
		p, ok := types.LookupProperty(node.Class, name)
		if !ok {
			continue
		}
		if p.Exact {
			ref := types.IndexRef{Class: node.Class, Kind: types.ExactIndex}
			if token := normalizeExact(value); token != "" {
				keys = append(keys, postingKey(ref, name, token, node.ID))
			}
		}
		if p.Fulltext {
			ref := types.IndexRef{Class: node.Class, Kind: types.FulltextIndex}
			for _, token := range Tokenize(value) {
				keys = append(keys, postingKey(ref, name, token, node.ID))
			}
		}
	}
	return keys
}

// CreateIndices is a no-op; postings are written with the nodes they index.
func (b *BadgerDriver) CreateIndices(context.Context) error {
	return nil
}

func (b *BadgerDriver) Provider() GraphProvider {
	return GraphProviderBadger
}

func (b *BadgerDriver) Close() error {
	return b.db.Close()
}
