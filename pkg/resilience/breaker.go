// Package resilience guards the index service with a circuit breaker so a
// failing backend is shed quickly instead of being queried on every search.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chinchliff/oti/pkg/config"
	"github.com/chinchliff/oti/pkg/driver"
	"github.com/chinchliff/oti/pkg/types"
	"github.com/sony/gobreaker"
)

// StateListener is notified when the breaker changes state.
type StateListener func(name string, from, to gobreaker.State)

// BreakerIndexService wraps an IndexService with circuit breaking logic.
// A query counts as failed when opening it, iterating it or closing it fails.
type BreakerIndexService struct {
	index driver.IndexService
	cb    *gobreaker.TwoStepCircuitBreaker
}

// NewBreakerIndexService creates a circuit breaker around index. listener may be nil.
func NewBreakerIndexService(index driver.IndexService, cfg config.CircuitBreakerConfig, logger *slog.Logger, listener StateListener) *BreakerIndexService {
	if logger == nil {
		logger = slog.Default()
	}

	ratio := cfg.ReadyToTripRatio
	st := gobreaker.Settings{
		Name:        "index",
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= ratio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Error("circuit breaker tripped, index queries are being rejected",
					"breaker", name, "from", from.String(), "to", to.String())
			} else {
				logger.Info("circuit breaker changed state",
					"breaker", name, "from", from.String(), "to", to.String())
			}
			if listener != nil {
				listener(name, from, to)
			}
		},
	}

	return &BreakerIndexService{
		index: index,
		cb:    gobreaker.NewTwoStepCircuitBreaker(st),
	}
}

// Query implements driver.IndexService. While the breaker is open it fails
// immediately with gobreaker.ErrOpenState.
func (b *BreakerIndexService) Query(ctx context.Context, index types.IndexRef, query driver.FuzzyQuery) (driver.Hits, error) {
	done, err := b.cb.Allow()
	if err != nil {
		return nil, err
	}

	hits, err := b.index.Query(ctx, index, query)
	if err != nil {
		done(isSuccessful(err))
		return nil, err
	}
	return &breakerHits{Hits: hits, done: done}, nil
}

// State returns the current breaker state.
func (b *BreakerIndexService) State() gobreaker.State {
	return b.cb.State()
}

// isSuccessful treats caller cancellation as success; it says nothing about
// the health of the index.
func isSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// breakerHits reports the outcome of a query to the breaker when closed.
type breakerHits struct {
	driver.Hits
	done     func(success bool)
	reported bool
}

func (h *breakerHits) Close(ctx context.Context) error {
	err := h.Hits.Close(ctx)
	if !h.reported {
		h.reported = true
		h.done(isSuccessful(h.Hits.Err()) && isSuccessful(err))
	}
	return err
}
