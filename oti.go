package oti

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/chinchliff/oti/pkg/alert"
	"github.com/chinchliff/oti/pkg/config"
	"github.com/chinchliff/oti/pkg/driver"
	"github.com/chinchliff/oti/pkg/metrics"
	"github.com/chinchliff/oti/pkg/resilience"
	"github.com/chinchliff/oti/pkg/search"
	"github.com/chinchliff/oti/pkg/types"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// healthCheckNodeID is looked up by Ping. It never names a real node.
const healthCheckNodeID types.NodeID = "health-check-non-existent-id"

// Config holds configuration for the oti client.
type Config struct {
	// CircuitBreaker guards index queries. A disabled breaker queries the
	// index directly.
	CircuitBreaker config.CircuitBreakerConfig
	// Metrics receives search and index query metrics. Nil disables them.
	Metrics *metrics.Metrics
	// Alerter is notified when the circuit breaker trips. Nil disables alerts.
	Alerter alert.Alerter
	// RequestSource tags the context of searches that arrive without one.
	RequestSource string
}

// Client is the main implementation of the QueryRunner interface.
type Client struct {
	index      driver.IndexService
	graph      driver.GraphStore
	aggregator *search.Aggregator
	breaker    *resilience.BreakerIndexService
	config     *Config
	logger     *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// ErrMissingBackend is returned by NewClient when the index service or graph
// store is nil.
var ErrMissingBackend = errors.New("index service and graph store are required")

// NewClient creates a search client over an index service and the graph
// store holding the indexed nodes. Both are usually the same driver.
func NewClient(index driver.IndexService, graph driver.GraphStore, cfg *Config, logger *slog.Logger) (*Client, error) {
	if index == nil || graph == nil {
		return nil, ErrMissingBackend
	}
	if cfg == nil {
		cfg = &Config{}
	}
	copied := *cfg
	cfg = &copied
	if cfg.RequestSource == "" {
		cfg.RequestSource = "client"
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		index:  index,
		graph:  graph,
		config: cfg,
		logger: logger,
	}

	guarded := index
	if cfg.Metrics != nil {
		guarded = cfg.Metrics.WrapIndexService(guarded)
	}
	if cfg.CircuitBreaker.Enabled {
		c.breaker = resilience.NewBreakerIndexService(guarded, cfg.CircuitBreaker, logger, c.breakerListener())
		guarded = c.breaker
	}

	c.aggregator = search.NewAggregator(guarded, graph, logger)
	if cfg.Metrics != nil {
		c.aggregator.SetObserver(cfg.Metrics)
	}
	return c, nil
}

// breakerListener fans breaker transitions out to metrics and alerting.
func (c *Client) breakerListener() resilience.StateListener {
	var listeners []resilience.StateListener
	if c.config.Metrics != nil {
		listeners = append(listeners, c.config.Metrics.BreakerStateChanged)
	}
	if c.config.Alerter != nil {
		listeners = append(listeners, alert.BreakerListener(c.config.Alerter, c.logger))
	}
	if len(listeners) == 0 {
		return nil
	}
	return func(name string, from, to gobreaker.State) {
		for _, l := range listeners {
			l(name, from, to)
		}
	}
}

// NewDriverClient creates a client backed by a single graph driver.
func NewDriverClient(d driver.GraphDriver, cfg *Config, logger *slog.Logger) (*Client, error) {
	if d == nil {
		return nil, ErrMissingBackend
	}
	return NewClient(d, d, cfg, logger)
}

// SearchStudies implements StudySearcher.
func (c *Client) SearchStudies(ctx context.Context, pred types.SearchPredicate) ([]types.StudyResult, error) {
	return c.aggregator.SearchStudies(c.requestContext(ctx), pred)
}

// SearchTrees implements TreeSearcher.
func (c *Client) SearchTrees(ctx context.Context, pred types.SearchPredicate) ([]types.TreeResult, error) {
	return c.aggregator.SearchTrees(c.requestContext(ctx), pred)
}

// SearchTreeNodes implements TreeSearcher.
func (c *Client) SearchTreeNodes(ctx context.Context, pred types.SearchPredicate) ([]types.TreeNodeSearchResult, error) {
	return c.aggregator.SearchTreeNodes(c.requestContext(ctx), pred)
}

// Properties implements PropertyCatalog.
func (c *Client) Properties(class types.EntityClass) []types.SearchableProperty {
	return types.SearchableProperties(class)
}

// Ping looks up a node that does not exist. Not finding it means the
// store answered.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.graph.Property(ctx, healthCheckNodeID, types.StudyIDProperty)
	if err == nil || errors.Is(err, driver.ErrNodeNotFound) {
		return nil
	}
	return err
}

// Close closes the index service and graph store if they hold resources.
// A store serving as both is closed once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		closed := make(map[io.Closer]bool)
		for _, backend := range []any{c.index, c.graph} {
			closer, ok := backend.(io.Closer)
			if !ok || closed[closer] {
				continue
			}
			closed[closer] = true
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// BreakerState reports the index circuit breaker state, or "disabled".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// requestContext tags ctx with a request id and source unless the caller
// already did.
func (c *Client) requestContext(ctx context.Context) context.Context {
	if _, ok := ctx.Value(types.ContextKeyRequestID).(string); !ok {
		ctx = context.WithValue(ctx, types.ContextKeyRequestID, uuid.NewString())
	}
	if _, ok := ctx.Value(types.ContextKeyRequestSource).(string); !ok {
		ctx = context.WithValue(ctx, types.ContextKeyRequestSource, c.config.RequestSource)
	}
	return ctx
}
