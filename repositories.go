package provisioner

import (
	"context"
	"time"

	"github.com/datakaveri/dx-resource-server-sub001/model"
)

// SubscriptionRepository defines the persistence interface for subscription rows.
// Query methods report absence through their results, never through an error.
// Mutations that target a missing key return ErrCodeNotFound.
//
// Implementations must be safe for concurrent use.
type SubscriptionRepository interface {
	// ExistsByQueueName reports whether any row uses queueName.
	ExistsByQueueName(ctx context.Context, queueName string) (bool, error)

	// ExistsByQueueAndEntity reports whether the (queueName, entityID) pair is recorded.
	ExistsByQueueAndEntity(ctx context.Context, queueName, entityID string) (bool, error)

	// FindByQueueAndEntity returns the row for the pair, or nil when absent.
	FindByQueueAndEntity(ctx context.Context, queueName, entityID string) (*model.SubscriptionRecord, error)

	// FindByQueueName returns every row of queueName, oldest first.
	// Returns an empty slice when the queue is unknown.
	FindByQueueName(ctx context.Context, queueName string) ([]model.SubscriptionRecord, error)

	// FindByUserID returns every row owned by userID.
	// Returns an empty slice when the user has no subscriptions.
	FindByUserID(ctx context.Context, userID string) ([]model.SubscriptionRecord, error)

	// Insert stores a new row and returns it with its surrogate ID populated.
	// Returns ErrCodeConflict when the (queueName, entityID) pair already exists.
	Insert(ctx context.Context, m model.SubscriptionRecord) (model.SubscriptionRecord, error)

	// UpdateExpiry changes the lease end of one row.
	// Returns ErrCodeNotFound when the pair does not exist.
	UpdateExpiry(ctx context.Context, queueName, entityID string, expiry time.Time) error

	// DeleteByQueueName removes every row of queueName.
	// Returns ErrCodeNotFound when the queue has no rows.
	DeleteByQueueName(ctx context.Context, queueName string) error
}

// AdapterRepository defines the persistence interface for ingestion adapter rows.
// Same absence conventions as SubscriptionRepository.
type AdapterRepository interface {
	// ExistsByExchangeName reports whether an adapter owns exchangeName.
	ExistsByExchangeName(ctx context.Context, exchangeName string) (bool, error)

	// ExistsByResourceID reports whether an adapter was registered for resourceID.
	ExistsByResourceID(ctx context.Context, resourceID string) (bool, error)

	// FindByExchangeName returns the adapter row, or nil when absent.
	FindByExchangeName(ctx context.Context, exchangeName string) (*model.AdapterRecord, error)

	// FindAllByProviderID returns every adapter registered for providerID.
	// Returns an empty slice when there are none.
	FindAllByProviderID(ctx context.Context, providerID string) ([]model.AdapterRecord, error)

	// ListAfter pages through all adapters ordered by surrogate ID, starting after afterID.
	ListAfter(ctx context.Context, afterID int64, limit int) ([]model.AdapterRecord, error)

	// Insert stores a new row and returns it with its surrogate ID populated.
	// Returns ErrCodeConflict when exchangeName is taken.
	Insert(ctx context.Context, m model.AdapterRecord) (model.AdapterRecord, error)

	// DeleteByExchangeName removes the adapter row.
	// Returns ErrCodeNotFound when it does not exist.
	DeleteByExchangeName(ctx context.Context, exchangeName string) error
}
