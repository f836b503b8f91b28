package provisioner

import "context"

// QueueHandle describes a queue created by BrokerGateway.RegisterQueue.
type QueueHandle struct {
	Name     string
	UserID   string
	Password string // Set only when the broker account was created by this call
	VHost    string
}

// ExchangeHandle describes an exchange created by BrokerGateway.RegisterExchange.
type ExchangeHandle struct {
	Name     string
	UserID   string
	Password string // Set only when the broker account was created by this call
	VHost    string
}

// BrokerGateway owns broker-side topology: queues, exchanges, bindings and permissions.
// Orchestrators guard idempotency; implementations report existing or missing
// objects through ErrCodeConflict and ErrCodeNotFound and everything else
// through ErrCodeBroker.
type BrokerGateway interface {
	// RegisterQueue creates the broker account for userID if absent, then the queue.
	// Returns ErrCodeConflict if the queue already exists.
	RegisterQueue(ctx context.Context, userID, queue string) (QueueHandle, error)

	// DeleteQueue removes the queue. Returns ErrCodeNotFound if it does not exist.
	DeleteQueue(ctx context.Context, queue, userID string) error

	// RegisterExchange creates the broker account for userID if absent, then the exchange.
	// Returns ErrCodeConflict if the exchange already exists.
	RegisterExchange(ctx context.Context, userID, exchange string) (ExchangeHandle, error)

	// DeleteExchange removes the exchange. Returns ErrCodeNotFound if it does not exist.
	DeleteExchange(ctx context.Context, exchange, userID string) error

	// Bind binds queue to exchange with routingKey. Binding twice is a no-op.
	Bind(ctx context.Context, exchange, queue, routingKey string) error

	// GrantRead lets userID consume from target.
	GrantRead(ctx context.Context, userID, target string) error

	// GrantWrite lets userID publish to target.
	GrantWrite(ctx context.Context, userID, target string) error

	// RevokeRead withdraws a read grant.
	RevokeRead(ctx context.Context, userID, target string) error

	// RevokeWrite withdraws a write grant.
	RevokeWrite(ctx context.Context, userID, target string) error

	// ListQueueSubscribers returns the routing keys queue is bound with.
	// Returns ErrCodeNotFound if the queue does not exist.
	ListQueueSubscribers(ctx context.Context, queue string) ([]string, error)

	// ListExchangeSubscribers maps every queue bound to exchange onto its routing keys.
	// Returns ErrCodeNotFound if the exchange does not exist.
	ListExchangeSubscribers(ctx context.Context, exchange string) (map[string][]string, error)

	// Publish sends payload to exchange with routingKey.
	Publish(ctx context.Context, exchange, routingKey string, payload []byte) error

	// ListQueues returns the names of every queue on the broker.
	ListQueues(ctx context.Context) ([]string, error)

	// ListExchanges maps every exchange declared by RegisterExchange onto its owner.
	// Exchanges declared by other means are omitted.
	ListExchanges(ctx context.Context) (map[string]string, error)
}
