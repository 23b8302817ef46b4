package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chinchliff/oti/pkg/driver"
	"github.com/chinchliff/oti/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		results int
		err     error
		want    string
	}{
		{3, nil, "ok"},
		{0, nil, "zero_result"},
		{0, &types.InvalidPredicateError{Property: "x"}, "invalid_predicate"},
		{0, &types.IndexUnavailableError{Err: errors.New("down")}, "index_unavailable"},
		{0, types.NewMissingPropertyError("n", "p"), "missing_property"},
		{0, &types.RootResolutionError{NodeID: "n"}, "root_resolution"},
		{0, errors.New("other"), "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.results, tt.err))
	}
}

func TestSearchCompleted(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SearchCompleted(types.TreeNodeClass, 4, 2, 10*time.Millisecond, nil)
	m.SearchCompleted(types.TreeNodeClass, 0, 0, time.Millisecond, nil)
	m.SearchCompleted(types.StudyClass, 0, 0, time.Millisecond, &types.IndexUnavailableError{Err: errors.New("down")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("tree_node", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("tree_node", "zero_result")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("study", "index_unavailable")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.IndexHitsTotal.WithLabelValues("tree_node")))
}

func TestBreakerStateChanged(t *testing.T) {
	m := New(nil)

	m.BreakerStateChanged("index", gobreaker.StateClosed, gobreaker.StateOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("index")))

	m.BreakerStateChanged("index", gobreaker.StateOpen, gobreaker.StateHalfOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("index")))

	m.BreakerStateChanged("index", gobreaker.StateHalfOpen, gobreaker.StateClosed)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("index")))
}

type stubHits struct {
	iterErr  error
	closeErr error
}

func (stubHits) Next(context.Context) bool { return false }
func (stubHits) Hit() driver.Hit { return nil }
func (h stubHits) Err() error { return h.iterErr }
func (h stubHits) Close(context.Context) error { return h.closeErr }

type stubIndex struct {
	err  error
	hits stubHits
}

func (s stubIndex) Query(context.Context, types.IndexRef, driver.FuzzyQuery) (driver.Hits, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func TestWrapIndexServiceCountsQueries(t *testing.T) {
	ref := types.IndexRef{Class: types.StudyClass, Kind: types.ExactIndex}
	q := driver.NewFuzzyQuery(types.StudyIDProperty, "pg_1")

	tests := []struct {
		name  string
		index stubIndex
		want  string
	}{
		{"ok", stubIndex{}, "ok"},
		{"open fails", stubIndex{err: errors.New("down")}, "error"},
		{"iteration fails", stubIndex{hits: stubHits{iterErr: errors.New("reset")}}, "error"},
		{"close fails", stubIndex{hits: stubHits{closeErr: errors.New("broken pipe")}}, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(nil)
			hits, err := m.WrapIndexService(tt.index).Query(context.Background(), ref, q)
			if tt.index.err != nil {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 0.0, testutil.ToFloat64(m.IndexQueriesTotal.WithLabelValues(ref.Name(), "ok")), "counted on close")
				_ = hits.Close(context.Background())
				_ = hits.Close(context.Background())
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexQueriesTotal.WithLabelValues(ref.Name(), tt.want)))
		})
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New(nil)
	m.SearchCompleted(types.StudyClass, 1, 1, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "oti_searches_total")
}
