package provisioner

import (
	"fmt"

	"github.com/datakaveri/dx-resource-server-sub001/retry"
)

// ReconcilerOption is a function that configures a Reconciler.
//
// Example:
//
//	reconciler, err := provisioner.NewReconciler(
//	    provisioner.WithReconcilerRepositories(subRepo, adapterRepo),
//	    provisioner.WithReconcilerBroker(broker),
//	    provisioner.WithReconcilerLogger(logger),
//	    provisioner.WithPageSize(200), // optional
//	)
type ReconcilerOption func(*Reconciler) error

// WithReconcilerRepositories sets the stores the sweep compares against the broker.
// Both repositories are required and must not be nil.
//
// This is a required option for NewReconciler.
func WithReconcilerRepositories(subscriptions SubscriptionRepository, adapters AdapterRepository) ReconcilerOption {
	return func(r *Reconciler) error {
		if subscriptions == nil {
			return fmt.Errorf("subscription repository cannot be nil")
		}
		if adapters == nil {
			return fmt.Errorf("adapter repository cannot be nil")
		}

		r.subscriptions = subscriptions
		r.adapters = adapters
		return nil
	}
}

// WithReconcilerBroker sets the broker gateway whose topology is swept.
//
// This is a required option for NewReconciler.
func WithReconcilerBroker(broker BrokerGateway) ReconcilerOption {
	return func(r *Reconciler) error {
		if broker == nil {
			return fmt.Errorf("broker cannot be nil")
		}
		r.broker = broker
		return nil
	}
}

// WithReconcilerLogger sets the logger instance for the reconciler.
// Logger is required and must not be nil.
//
// Use NoopLogger for silent operation or ZapLogger in production.
func WithReconcilerLogger(logger Logger) ReconcilerOption {
	return func(r *Reconciler) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		r.logger = logger
		return nil
	}
}

// WithBackoff sets the wait applied after consecutive failed sweeps.
// This is an optional configuration - if not provided, retry.DefaultBackoff() will be used.
func WithBackoff(backoff retry.Backoff) ReconcilerOption {
	return func(r *Reconciler) error {
		r.backoff = backoff
		return nil
	}
}

// WithPageSize sets how many adapter rows are read per store query.
// This is an optional configuration - default is 100.
//
// Must be > 0.
func WithPageSize(size int) ReconcilerOption {
	return func(r *Reconciler) error {
		if size <= 0 {
			return fmt.Errorf("page size must be > 0, got %d", size)
		}
		r.pageSize = size
		return nil
	}
}

// WithReconcilerMetrics counts removed objects per kind.
func WithReconcilerMetrics(metrics *Metrics) ReconcilerOption {
	return func(r *Reconciler) error {
		r.metrics = metrics
		return nil
	}
}
