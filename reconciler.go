package provisioner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/datakaveri/dx-resource-server-sub001/model"
	"github.com/datakaveri/dx-resource-server-sub001/retry"
)

// Reconciler repairs the partial state that sagas leave behind when they stop partway.
//
// Each sweep:
//   - removes adapter rows whose exchange no longer exists at the broker
//     (left by a DeleteAdapter that failed after the broker step)
//   - deletes user queues that have no subscription row
//     (left by a Create that failed after the queue was registered)
//   - deletes gateway-declared exchanges that have no adapter row
//     (left by a RegisterAdapter that failed after the exchange was registered)
//
// A Create or RegisterAdapter in flight owns a broker object without a row for a
// short while, so queues and exchanges are deleted only once they have been found
// rowless by two consecutive sweeps.
//
// Thread safety: Sweep calls are serialized.
type Reconciler struct {
	subscriptions SubscriptionRepository
	adapters      AdapterRepository
	broker        BrokerGateway
	logger        Logger
	metrics       *Metrics
	backoff       retry.Backoff
	pageSize      int

	mu               sync.Mutex
	suspects         map[string]struct{} // Rowless queues seen by the previous sweep
	exchangeSuspects map[string]struct{} // Rowless exchanges seen by the previous sweep
}

// SweepResult reports what a sweep removed.
type SweepResult struct {
	AdapterRows int
	Queues      int
	Exchanges   int
	Suspects    int // Rowless queues and exchanges that will be deleted if still rowless next sweep
}

// NewReconciler creates a new reconciler with the provided options.
//
// Required options:
//   - WithReconcilerRepositories: subscription and adapter repositories
//   - WithReconcilerBroker: broker gateway
//   - WithReconcilerLogger: logger instance
//
// Optional options:
//   - WithBackoff: wait after failed sweeps (default: retry.DefaultBackoff())
//   - WithPageSize: adapter rows per query (default: 100)
//   - WithReconcilerMetrics: removal counters
func NewReconciler(opts ...ReconcilerOption) (*Reconciler, error) {
	r := &Reconciler{
		backoff:          retry.DefaultBackoff(),
		pageSize:         100,
		suspects:         make(map[string]struct{}),
		exchangeSuspects: make(map[string]struct{}),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply reconciler option", err)
		}
	}

	if r.subscriptions == nil || r.adapters == nil {
		return nil, NewError(ErrCodeConfiguration, "repositories are required (use WithReconcilerRepositories)")
	}
	if r.broker == nil {
		return nil, NewError(ErrCodeConfiguration, "BrokerGateway is required (use WithReconcilerBroker)")
	}
	if r.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithReconcilerLogger)")
	}

	return r, nil
}

// Sweep runs one reconciliation pass over adapters, queues and exchanges.
// Every part always runs; their errors are joined.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result SweepResult

	removed, adapterErr := r.sweepAdapters(ctx)
	result.AdapterRows = removed
	r.metrics.observeSweep("adapter_row", removed)

	deleted, suspects, queueErr := r.sweepQueues(ctx)
	result.Queues = deleted
	result.Suspects = suspects
	r.metrics.observeSweep("queue", deleted)

	exchanges, exchangeSuspects, exchangeErr := r.sweepExchanges(ctx)
	result.Exchanges = exchanges
	result.Suspects += exchangeSuspects
	r.metrics.observeSweep("exchange", exchanges)

	if result.AdapterRows > 0 || result.Queues > 0 || result.Exchanges > 0 {
		r.logger.Infof("Sweep removed: adapterRows=%d, queues=%d, exchanges=%d, suspects=%d",
			result.AdapterRows, result.Queues, result.Exchanges, result.Suspects)
	}

	return result, errors.Join(adapterErr, queueErr, exchangeErr)
}

// sweepAdapters pages through every adapter row and removes those without an exchange.
func (r *Reconciler) sweepAdapters(ctx context.Context) (int, error) {
	removed := 0
	var afterID int64

	for {
		page, err := r.adapters.ListAfter(ctx, afterID, r.pageSize)
		if err != nil {
			return removed, fmt.Errorf("failed to list adapters: %w", err)
		}

		for i := range page {
			rec := &page[i]
			afterID = rec.ID

			_, err := r.broker.ListExchangeSubscribers(ctx, rec.ExchangeName)
			if err == nil {
				continue
			}
			if !IsNotFound(err) {
				return removed, fmt.Errorf("failed to inspect exchange %s: %w", rec.ExchangeName, err)
			}

			if err := r.adapters.DeleteByExchangeName(ctx, rec.ExchangeName); err != nil && !IsNotFound(err) {
				return removed, fmt.Errorf("failed to delete adapter row %s: %w", rec.ExchangeName, err)
			}
			r.logger.Warnf("Removed adapter row without exchange: %s (user %s)", rec.ExchangeName, rec.UserID)
			removed++
		}

		if len(page) < r.pageSize {
			return removed, nil
		}
	}
}

// sweepQueues deletes user queues found rowless on two consecutive sweeps.
// System queues and any queue not named "{user}/{name}" are ignored.
func (r *Reconciler) sweepQueues(ctx context.Context) (deleted, suspects int, err error) {
	queues, err := r.broker.ListQueues(ctx)
	if err != nil {
		return 0, len(r.suspects), fmt.Errorf("failed to list queues: %w", err)
	}

	next := make(map[string]struct{})
	for _, queue := range queues {
		owner := model.QueueOwner(queue)
		if owner == "" {
			continue
		}

		exists, err := r.subscriptions.ExistsByQueueName(ctx, queue)
		if err != nil {
			return deleted, len(next), fmt.Errorf("failed to check queue %s: %w", queue, err)
		}
		if exists {
			continue
		}

		if _, seen := r.suspects[queue]; !seen {
			next[queue] = struct{}{}
			continue
		}

		if err := r.broker.DeleteQueue(ctx, queue, owner); err != nil && !IsNotFound(err) {
			next[queue] = struct{}{}
			r.logger.Errorf("Failed to delete rowless queue %s: %v", queue, err)
			continue
		}
		r.logger.Warnf("Deleted rowless queue: %s (user %s)", queue, owner)
		deleted++
	}

	r.suspects = next
	return deleted, len(next), nil
}

// sweepExchanges deletes gateway-declared exchanges found rowless on two consecutive sweeps.
// A failed RegisterAdapter leaves such an exchange behind, and the conflict gate of the
// retry would otherwise reject the entity forever.
func (r *Reconciler) sweepExchanges(ctx context.Context) (deleted, suspects int, err error) {
	exchanges, err := r.broker.ListExchanges(ctx)
	if err != nil {
		return 0, len(r.exchangeSuspects), fmt.Errorf("failed to list exchanges: %w", err)
	}

	next := make(map[string]struct{})
	for exchange, owner := range exchanges {
		exists, err := r.adapters.ExistsByExchangeName(ctx, exchange)
		if err != nil {
			return deleted, len(next), fmt.Errorf("failed to check exchange %s: %w", exchange, err)
		}
		if exists {
			continue
		}

		if _, seen := r.exchangeSuspects[exchange]; !seen {
			next[exchange] = struct{}{}
			continue
		}

		if err := r.broker.DeleteExchange(ctx, exchange, owner); err != nil && !IsNotFound(err) {
			next[exchange] = struct{}{}
			r.logger.Errorf("Failed to delete rowless exchange %s: %v", exchange, err)
			continue
		}
		if err := r.broker.RevokeWrite(ctx, owner, exchange); err != nil {
			r.logger.Warnf("Failed to revoke write on deleted exchange %s: %v", exchange, err)
		}
		r.logger.Warnf("Deleted rowless exchange: %s (user %s)", exchange, owner)
		deleted++
	}

	r.exchangeSuspects = next
	return deleted, len(next), nil
}

// Run starts the sweep loop that runs every interval until ctx is canceled.
// After a failed sweep the next one is additionally delayed by the backoff.
// This is a blocking call - run in a goroutine.
//
// Example:
//
//	go reconciler.Run(ctx, 5*time.Minute)
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Reconciler started")

	failures := 0
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return
		case <-ticker.C:
		}

		if _, err := r.Sweep(ctx); err != nil {
			failures++
			if r.backoff.Escalate(failures) {
				r.logger.Errorf("Sweep failed %d times in a row: %v", failures, err)
			} else {
				r.logger.Warnf("Sweep failed (attempt %d): %v", failures, err)
			}

			wait := time.NewTimer(r.backoff.Delay(failures))
			select {
			case <-ctx.Done():
				wait.Stop()
				r.logger.Info("Reconciler stopped")
				return
			case <-wait.C:
			}
			continue
		}
		failures = 0
	}
}
