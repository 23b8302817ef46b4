package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chinchliff/oti"
	"github.com/chinchliff/oti/pkg/config"
	"github.com/chinchliff/oti/pkg/driver"
	"github.com/chinchliff/oti/pkg/fixture"
	"github.com/chinchliff/oti/pkg/metrics"
	"github.com/chinchliff/oti/pkg/server/dto"
	"github.com/chinchliff/oti/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const serverFixture = `
studies:
  - study_id: Smith2020
    properties:
      ot:curatorName: Jane Smith
      ot:comment: primate phylogeny
    trees:
      - tree_id: tree1
        nexson_id: tree1
        nodes:
          - nexson_id: node1
            properties:
              ot:ottTaxonName: Homo sapiens
          - nexson_id: node2
            parent: node1
            properties:
              ot:ottTaxonName: Homo erectus
`

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "localhost",
			Port: 8080,
			Mode: "test",
		},
		Metrics: config.MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func newTestClient(t *testing.T) *oti.Client {
	t.Helper()

	d, err := driver.NewBadgerDriver("", true, nil)
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}
	file, err := fixture.Parse([]byte(serverFixture))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	for _, study := range file.Studies {
		if err := d.LoadStudy(context.Background(), study); err != nil {
			t.Fatalf("failed to load study: %v", err)
		}
	}

	client, err := oti.NewDriverClient(d, nil, nil)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestNew(t *testing.T) {
	cfg := testConfig()

	// A server without a search client can still be created
	server := New(cfg, nil)
	if server == nil {
		t.Fatal("expected non-nil server")
	}

	if server.config != cfg {
		t.Error("expected config to be set")
	}
}

func TestSetup(t *testing.T) {
	server := New(testConfig(), nil)
	server.Setup()

	if server.router == nil {
		t.Error("expected router to be initialized")
	}

	if server.server == nil {
		t.Error("expected http.Server to be initialized")
	}

	expectedAddr := "localhost:8080"
	if server.server.Addr != expectedAddr {
		t.Errorf("expected addr %s, got %s", expectedAddr, server.server.Addr)
	}
}

func TestHealthEndpoints(t *testing.T) {
	server := New(testConfig(), nil)
	server.Setup()

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/live", http.StatusOK},
		// Without a search client, readiness fails
		{"/ready", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		w := serve(server, http.MethodGet, tt.path, "")
		if w.Code != tt.want {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.want, w.Code)
		}
	}
}

func TestReadyEndpointWithClient(t *testing.T) {
	server := New(testConfig(), newTestClient(t))
	server.Setup()

	w := serve(server, http.MethodGet, "/ready", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCORSMiddleware(t *testing.T) {
	server := New(testConfig(), nil)
	server.Setup()

	// OPTIONS request (CORS preflight)
	w := serve(server, http.MethodOptions, "/v1/studies/find_studies", "")

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204 for OPTIONS, got %d", w.Code)
	}

	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected Access-Control-Allow-Origin header")
	}

	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected Access-Control-Allow-Methods header")
	}
}

func TestRequestIDHeader(t *testing.T) {
	server := New(testConfig(), nil)
	server.Setup()

	w := serve(server, http.MethodGet, "/live", "")
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "req-42" {
		t.Errorf("expected caller request id to be echoed, got %q", got)
	}
}

func TestFindStudiesEndToEnd(t *testing.T) {
	server := New(testConfig(), newTestClient(t))
	server.Setup()

	w := serve(server, http.MethodPost, "/v1/studies/find_studies",
		`{"property":"ot:studyId","value":"Smith2020","exact":true,"fulltext":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response dto.StudySearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Total != 1 || response.MatchedStudies[0].StudyID != "Smith2020" {
		t.Errorf("unexpected studies: %+v", response)
	}
}

func TestFindTreeNodesEndToEnd(t *testing.T) {
	server := New(testConfig(), newTestClient(t))
	server.Setup()

	w := serve(server, http.MethodPost, "/v1/studies/find_tree_nodes",
		`{"property":"ot:ottTaxonName","value":"homo"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response dto.TreeNodeSearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.MatchedTrees) != 1 {
		t.Fatalf("expected one tree, got %+v", response.MatchedTrees)
	}
	tree := response.MatchedTrees[0]
	if tree.StudyID != "Smith2020" || tree.NexsonID != "tree1" {
		t.Errorf("unexpected tree: %+v", tree)
	}
	want := []types.MatchedNode{{NexsonID: "node1"}, {NexsonID: "node2"}}
	if len(tree.MatchedNodes) != len(want) || tree.MatchedNodes[0] != want[0] || tree.MatchedNodes[1] != want[1] {
		t.Errorf("expected matched nodes %v, got %v", want, tree.MatchedNodes)
	}
}

func TestUnknownPropertyIsBadRequest(t *testing.T) {
	server := New(testConfig(), newTestClient(t))
	server.Setup()

	w := serve(server, http.MethodPost, "/v1/studies/find_trees", `{"property":"ot:comment","value":"primate"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New(nil)
	server := New(testConfig(), newTestClient(t))
	server.SetMetrics(m)
	server.Setup()

	serve(server, http.MethodGet, "/live", "")
	serve(server, http.MethodGet, "/no/such/route", "")

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/live", "200")); got != 1 {
		t.Errorf("expected 1 request to /live, got %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("expected 1 unmatched request, got %v", got)
	}

	w := serve(server, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "oti_http_requests_total") {
		t.Error("expected http request counter in scrape output")
	}
}

func TestMetricsEndpointDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false

	server := New(cfg, nil)
	server.SetMetrics(metrics.New(nil))
	server.Setup()

	w := serve(server, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}
