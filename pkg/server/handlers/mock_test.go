package handlers

import (
	"context"
	"sync"

	"github.com/chinchliff/oti/pkg/types"
)

// mockRunner is a QueryRunner that records the predicates it receives.
type mockRunner struct {
	mu sync.Mutex

	studies []types.StudyResult
	trees   []types.TreeResult
	nodes   []types.TreeNodeSearchResult
	err     error
	pingErr error
	breaker string

	preds []types.SearchPredicate
}

func (m *mockRunner) record(pred types.SearchPredicate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preds = append(m.preds, pred)
}

func (m *mockRunner) lastPredicate() types.SearchPredicate {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.preds) == 0 {
		return types.SearchPredicate{}
	}
	return m.preds[len(m.preds)-1]
}

func (m *mockRunner) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.preds)
}

func (m *mockRunner) SearchStudies(_ context.Context, pred types.SearchPredicate) ([]types.StudyResult, error) {
	m.record(pred)
	return m.studies, m.err
}

func (m *mockRunner) SearchTrees(_ context.Context, pred types.SearchPredicate) ([]types.TreeResult, error) {
	m.record(pred)
	return m.trees, m.err
}

func (m *mockRunner) SearchTreeNodes(_ context.Context, pred types.SearchPredicate) ([]types.TreeNodeSearchResult, error) {
	m.record(pred)
	return m.nodes, m.err
}

func (m *mockRunner) Properties(class types.EntityClass) []types.SearchableProperty {
	return types.SearchableProperties(class)
}

func (m *mockRunner) Ping(context.Context) error {
	return m.pingErr
}

func (m *mockRunner) Close() error {
	return nil
}

// breakerRunner adds a circuit breaker state to mockRunner.
type breakerRunner struct {
	*mockRunner
}

func (b breakerRunner) BreakerState() string {
	return b.breaker
}
