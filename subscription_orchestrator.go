package provisioner

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/datakaveri/dx-resource-server-sub001/model"
)

// SubscriptionOrchestrator provisions consumer push subscriptions.
// Every operation is a saga over the broker and the subscription store:
//
//	Create: gate → queue → catalogue → topology → bind → grant read → row
//	Append: catalogue → topology → bind → grant read → row (if absent)
//	Update: find row → update expiry
//	Delete: find rows → delete rows → delete queue
//
// The orchestrator keeps no state between calls and re-derives topology from the
// catalogue on every invocation.
//
// Thread safety: Safe for concurrent use.
type SubscriptionOrchestrator struct {
	repo      SubscriptionRepository
	broker    BrokerGateway
	catalogue CatalogueGateway
	sagaRunner
}

// SubscriptionOrchestratorOption configures a SubscriptionOrchestrator.
type SubscriptionOrchestratorOption func(*SubscriptionOrchestrator) error

// NewSubscriptionOrchestrator creates a new SubscriptionOrchestrator with the provided options.
//
// Required options:
//   - WithSubscriptionRepository: subscription store
//   - WithSubscriptionGateways: broker and catalogue gateways
//   - WithSubscriptionLogger: logger instance
//
// Example:
//
//	subs, err := provisioner.NewSubscriptionOrchestrator(
//	    provisioner.WithSubscriptionRepository(repos.Subscription),
//	    provisioner.WithSubscriptionGateways(broker, catalogue),
//	    provisioner.WithSubscriptionLogger(logger),
//	)
func NewSubscriptionOrchestrator(opts ...SubscriptionOrchestratorOption) (*SubscriptionOrchestrator, error) {
	o := &SubscriptionOrchestrator{
		sagaRunner: sagaRunner{notifications: &NoOpNotificationService{}},
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply subscription orchestrator option", err)
		}
	}

	if o.repo == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriptionRepository is required (use WithSubscriptionRepository)")
	}
	if o.broker == nil {
		return nil, NewError(ErrCodeConfiguration, "BrokerGateway is required (use WithSubscriptionGateways)")
	}
	if o.catalogue == nil {
		return nil, NewError(ErrCodeConfiguration, "CatalogueGateway is required (use WithSubscriptionGateways)")
	}
	if o.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithSubscriptionLogger)")
	}

	return o, nil
}

// WithSubscriptionRepository sets the subscription store.
func WithSubscriptionRepository(repo SubscriptionRepository) SubscriptionOrchestratorOption {
	return func(o *SubscriptionOrchestrator) error {
		if repo == nil {
			return fmt.Errorf("subscription repository cannot be nil")
		}
		o.repo = repo
		return nil
	}
}

// WithSubscriptionGateways sets the broker and catalogue collaborators.
func WithSubscriptionGateways(broker BrokerGateway, catalogue CatalogueGateway) SubscriptionOrchestratorOption {
	return func(o *SubscriptionOrchestrator) error {
		if broker == nil {
			return fmt.Errorf("broker cannot be nil")
		}
		if catalogue == nil {
			return fmt.Errorf("catalogue cannot be nil")
		}
		o.broker = broker
		o.catalogue = catalogue
		return nil
	}
}

// WithSubscriptionLogger sets the logger instance.
func WithSubscriptionLogger(logger Logger) SubscriptionOrchestratorOption {
	return func(o *SubscriptionOrchestrator) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithSubscriptionNotifications sets an optional lifecycle notification service.
func WithSubscriptionNotifications(service NotificationService) SubscriptionOrchestratorOption {
	return func(o *SubscriptionOrchestrator) error {
		if service == nil {
			return fmt.Errorf("notification service cannot be nil")
		}
		o.notifications = service
		return nil
	}
}

// WithSubscriptionMetrics enables saga metrics.
func WithSubscriptionMetrics(metrics *Metrics) SubscriptionOrchestratorOption {
	return func(o *SubscriptionOrchestrator) error {
		o.metrics = metrics
		return nil
	}
}

// CreateSubscriptionRequest represents a request to create a subscription queue.
type CreateSubscriptionRequest struct {
	UserID      string                 // Owner of the queue (required)
	EntityID    string                 // Catalogue entity to subscribe to (required)
	Name        string                 // Subscription name; the queue is "{UserID}/{Name}" (required)
	Expiry      time.Time              // Bookkeeping lease end (required)
	Type        model.SubscriptionType // STREAMING or CALLBACK (required)
	DelegatorID string                 // Delegating user (optional)
}

// Validate checks the request fields.
func (r CreateSubscriptionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.EntityID, validation.Required),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Expiry, validation.Required),
		validation.Field(&r.Type, validation.Required,
			validation.In(model.SubscriptionTypeStreaming, model.SubscriptionTypeCallback)),
	)
}

// AppendSubscriptionRequest represents a request to add an entity to an existing queue.
type AppendSubscriptionRequest struct {
	UserID      string                 // Owner of the queue (required)
	EntityID    string                 // Entity to add (required)
	Name        string                 // Subscription name (required)
	Expiry      time.Time              // Lease end of the new row (required)
	Type        model.SubscriptionType // Defaults to STREAMING
	DelegatorID string                 // Delegating user (optional)
}

// Validate checks the request fields.
func (r AppendSubscriptionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.EntityID, validation.Required),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Expiry, validation.Required),
		validation.Field(&r.Type,
			validation.In(model.SubscriptionTypeStreaming, model.SubscriptionTypeCallback)),
	)
}

// CreateSubscriptionResult is what a successful Create hands back to the caller.
type CreateSubscriptionResult struct {
	ID       string                   // Subscription id, equal to the queue name
	Queue    QueueHandle              // Broker coordinates and credentials of the queue
	Topology RoutingTopology          // Where the queue is bound
	Record   model.SubscriptionRecord // Persisted row
}

// SubscriptionDetails combines the persisted rows of a queue with its live bindings.
type SubscriptionDetails struct {
	ID          string
	Records     []model.SubscriptionRecord
	RoutingKeys []string
}

// Create provisions a new subscription queue bound to the entity's exchange.
//
// Returns ErrCodeConflict when the store already knows the queue (no broker call is made)
// or when the broker already has it. The queue created by the broker step is left in
// place if a later step fails; a retry then reports the conflict from the broker.
func (o *SubscriptionOrchestrator) Create(ctx context.Context, req CreateSubscriptionRequest) (*CreateSubscriptionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "invalid subscription request", err)
	}

	queueName := model.QueueNameFor(req.UserID, req.Name)
	result := &CreateSubscriptionResult{ID: queueName}
	var item CatalogueItem

	steps := []Step{
		{Name: "conflict-gate", Idempotent: true, Run: func(ctx context.Context) error {
			return o.gateQueue(ctx, queueName)
		}},
		{Name: "register-queue", Run: func(ctx context.Context) error {
			handle, err := o.broker.RegisterQueue(ctx, req.UserID, queueName)
			if err != nil {
				return keepKind(err, ErrCodeBroker, "failed to register queue")
			}
			result.Queue = handle
			return nil
		}},
		{Name: "resolve-catalogue", Idempotent: true, Run: func(ctx context.Context) (err error) {
			item, err = o.resolve(ctx, req.EntityID)
			return err
		}},
		{Name: "resolve-topology", Idempotent: true, Run: func(_ context.Context) (err error) {
			result.Topology, err = ResolveTopology(item, req.EntityID)
			return err
		}},
		{Name: "bind", Idempotent: true, Run: func(ctx context.Context) error {
			return o.bind(ctx, result.Topology, queueName)
		}},
		{Name: "grant-read", Idempotent: true, Run: func(ctx context.Context) error {
			if err := o.broker.GrantRead(ctx, req.UserID, queueName); err != nil {
				return keepKind(err, ErrCodeBroker, "failed to grant read permission")
			}
			return nil
		}},
		{Name: "persist", Run: func(ctx context.Context) error {
			rec := o.newRecord(queueName, req.UserID, req.EntityID, req.Type, req.Expiry, req.DelegatorID,
				item, result.Topology)
			saved, err := o.insert(ctx, rec)
			if err != nil {
				return err
			}
			result.Record = saved
			return nil
		}},
	}

	if err := o.run(ctx, "subscription.create", steps); err != nil {
		return nil, err
	}

	o.logger.Infof("Subscription created: queue=%s, entity=%s, exchange=%s, routingKey=%s",
		queueName, req.EntityID, result.Topology.ExchangeRoot, result.Topology.RoutingKey)
	if err := o.notifications.NotifySubscriptionCreated(ctx, result.Record); err != nil {
		o.logger.Warnf("Failed to send subscription created notification: %v", err)
	}

	return result, nil
}

// Append binds an existing subscription queue to another entity and records the pair.
// Appending a pair that is already recorded succeeds without writing a second row.
//
// Returns the appended entity id.
func (o *SubscriptionOrchestrator) Append(ctx context.Context, req AppendSubscriptionRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", NewErrorWithCause(ErrCodeValidation, "invalid append request", err)
	}
	if req.Type == "" {
		req.Type = model.SubscriptionTypeStreaming
	}

	subsID := model.QueueNameFor(req.UserID, req.Name)
	var (
		item     CatalogueItem
		topology RoutingTopology
	)

	steps := []Step{
		{Name: "resolve-catalogue", Idempotent: true, Run: func(ctx context.Context) (err error) {
			item, err = o.resolve(ctx, req.EntityID)
			return err
		}},
		{Name: "resolve-topology", Idempotent: true, Run: func(_ context.Context) (err error) {
			topology, err = ResolveTopology(item, req.EntityID)
			return err
		}},
		{Name: "bind", Idempotent: true, Run: func(ctx context.Context) error {
			return o.bind(ctx, topology, subsID)
		}},
		{Name: "grant-read", Idempotent: true, Run: func(ctx context.Context) error {
			if err := o.broker.GrantRead(ctx, req.UserID, subsID); err != nil {
				return keepKind(err, ErrCodeBroker, "failed to grant read permission")
			}
			return nil
		}},
		{Name: "persist-if-absent", Idempotent: true, Run: func(ctx context.Context) error {
			exists, err := o.repo.ExistsByQueueAndEntity(ctx, subsID, req.EntityID)
			if err != nil {
				return keepKind(err, ErrCodePersistence, "failed to check existing subscription")
			}
			if exists {
				o.logger.Debugf("Entity %s already appended to %s", req.EntityID, subsID)
				return nil
			}
			rec := o.newRecord(subsID, req.UserID, req.EntityID, req.Type, req.Expiry, req.DelegatorID,
				item, topology)
			_, err = o.insert(ctx, rec)
			return err
		}},
	}

	if err := o.run(ctx, "subscription.append", steps); err != nil {
		return "", err
	}

	o.logger.Infof("Subscription appended: queue=%s, entity=%s", subsID, req.EntityID)
	return req.EntityID, nil
}

// Update extends the lease of one (queue, entity) row. The broker is not touched.
//
// Returns ErrCodeNotFound when the row does not exist and ErrCodeValidation when
// expiry is unset, so a lease can never be cleared through an update.
func (o *SubscriptionOrchestrator) Update(ctx context.Context, entityID, queueName string, expiry time.Time) (*model.SubscriptionRecord, error) {
	if entityID == "" || queueName == "" {
		return nil, NewError(ErrCodeValidation, "entity id and queue name are required")
	}
	if expiry.IsZero() {
		return nil, NewError(ErrCodeValidation, "expiry is required")
	}

	var rec *model.SubscriptionRecord
	steps := []Step{
		{Name: "find", Idempotent: true, Run: func(ctx context.Context) (err error) {
			rec, err = o.repo.FindByQueueAndEntity(ctx, queueName, entityID)
			if err != nil {
				return keepKind(err, ErrCodePersistence, "failed to load subscription")
			}
			if rec == nil {
				return NewError(ErrCodeNotFound, fmt.Sprintf("subscription not found: %s (entity %s)", queueName, entityID))
			}
			return nil
		}},
		{Name: "update-expiry", Idempotent: true, Run: func(ctx context.Context) error {
			if err := o.repo.UpdateExpiry(ctx, queueName, entityID, expiry); err != nil {
				return keepKind(err, ErrCodePersistence, "failed to update subscription expiry")
			}
			rec.ExtendExpiry(expiry)
			return nil
		}},
	}

	if err := o.run(ctx, "subscription.update", steps); err != nil {
		return nil, err
	}

	o.logger.Infof("Subscription updated: queue=%s, entity=%s, expiry=%s", queueName, entityID, expiry.Format(time.RFC3339))
	return rec, nil
}

// Delete removes every row of the queue, then the broker queue itself.
// The rows go first: a queue left behind by a failed broker call is collected by the
// reconciliation sweep, while a row left behind would resurrect a phantom subscription.
//
// Returns the entity ids that were bound to the queue.
func (o *SubscriptionOrchestrator) Delete(ctx context.Context, queueName, userID string) ([]string, error) {
	if queueName == "" || userID == "" {
		return nil, NewError(ErrCodeValidation, "queue name and user id are required")
	}

	var entities []string
	steps := []Step{
		{Name: "find", Idempotent: true, Run: func(ctx context.Context) error {
			rows, err := o.repo.FindByQueueName(ctx, queueName)
			if err != nil {
				return keepKind(err, ErrCodePersistence, "failed to load subscription")
			}
			if len(rows) == 0 {
				return NewError(ErrCodeNotFound, fmt.Sprintf("subscription not found: %s", queueName))
			}
			for _, row := range rows {
				entities = append(entities, row.EntityID)
			}
			return nil
		}},
		{Name: "delete-rows", Run: func(ctx context.Context) error {
			if err := o.repo.DeleteByQueueName(ctx, queueName); err != nil {
				return keepKind(err, ErrCodePersistence, "failed to delete subscription rows")
			}
			return nil
		}},
		{Name: "delete-queue", Run: func(ctx context.Context) error {
			if err := o.broker.DeleteQueue(ctx, queueName, userID); err != nil {
				return keepKind(err, ErrCodeBroker, "failed to delete queue")
			}
			return nil
		}},
	}

	if err := o.run(ctx, "subscription.delete", steps); err != nil {
		return nil, err
	}

	o.logger.Infof("Subscription deleted: queue=%s, entities=%v", queueName, entities)
	if err := o.notifications.NotifySubscriptionDeleted(ctx, queueName, userID); err != nil {
		o.logger.Warnf("Failed to send subscription deleted notification: %v", err)
	}
	return entities, nil
}

// Get returns the persisted rows of a subscription enriched with its live bindings.
// Existence is decided by the store alone: a queue missing at the broker yields no routing keys.
//
// Returns ErrCodeNotFound when the store has no row for the queue.
func (o *SubscriptionOrchestrator) Get(ctx context.Context, subscriptionID string) (*SubscriptionDetails, error) {
	rows, err := o.repo.FindByQueueName(ctx, subscriptionID)
	if err != nil {
		return nil, keepKind(err, ErrCodePersistence, "failed to load subscription")
	}
	if len(rows) == 0 {
		return nil, NewError(ErrCodeNotFound, fmt.Sprintf("subscription not found: %s", subscriptionID))
	}

	keys, err := o.broker.ListQueueSubscribers(ctx, subscriptionID)
	if err != nil {
		if !IsNotFound(err) {
			return nil, keepKind(err, ErrCodeBroker, "failed to list queue bindings")
		}
		o.logger.Warnf("Subscription %s has rows but no broker queue", subscriptionID)
		keys = []string{}
	}

	return &SubscriptionDetails{ID: subscriptionID, Records: rows, RoutingKeys: keys}, nil
}

// ListForUser returns every subscription row owned by userID.
// No subscriptions is a valid empty result.
func (o *SubscriptionOrchestrator) ListForUser(ctx context.Context, userID string) ([]model.SubscriptionRecord, error) {
	if userID == "" {
		return nil, NewError(ErrCodeValidation, "user id is required")
	}

	rows, err := o.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeInternal, "failed to list subscriptions", err)
	}
	if rows == nil {
		rows = []model.SubscriptionRecord{}
	}
	return rows, nil
}

func (o *SubscriptionOrchestrator) gateQueue(ctx context.Context, queueName string) error {
	exists, err := o.repo.ExistsByQueueName(ctx, queueName)
	if err != nil {
		return keepKind(err, ErrCodePersistence, "failed to check existing queue")
	}
	if exists {
		return NewError(ErrCodeConflict, fmt.Sprintf("queue already exists: %s", queueName))
	}
	return nil
}

func (o *SubscriptionOrchestrator) resolve(ctx context.Context, entityID string) (CatalogueItem, error) {
	item, err := o.catalogue.Resolve(ctx, entityID)
	if err != nil {
		return item, keepKind(err, ErrCodeInternal, "failed to resolve catalogue entity")
	}
	return item, nil
}

func (o *SubscriptionOrchestrator) bind(ctx context.Context, topology RoutingTopology, queueName string) error {
	if err := o.broker.Bind(ctx, topology.ExchangeRoot, queueName, topology.RoutingKey); err != nil {
		return keepKind(err, ErrCodeBroker, "failed to bind queue")
	}
	return nil
}

func (o *SubscriptionOrchestrator) newRecord(
	queueName, userID, entityID string,
	subType model.SubscriptionType,
	expiry time.Time,
	delegatorID string,
	item CatalogueItem,
	topology RoutingTopology,
) model.SubscriptionRecord {
	rec := model.NewSubscriptionRecord(queueName, entityID, subType, expiry)
	rec.UserID = userID
	rec.DelegatorID = delegatorID
	rec.DatasetName = item.Name
	rec.DatasetJSON = item.Raw
	rec.ProviderID = item.Provider
	rec.ResourceGroupID = topology.ExchangeRoot
	rec.ItemType = topology.ItemType()
	return rec
}

func (o *SubscriptionOrchestrator) insert(ctx context.Context, rec model.SubscriptionRecord) (model.SubscriptionRecord, error) {
	if err := rec.Validate(); err != nil {
		return rec, NewErrorWithCause(ErrCodeInternal, "subscription row is incomplete", err)
	}
	saved, err := o.repo.Insert(ctx, rec)
	if err != nil {
		return rec, keepKind(err, ErrCodePersistence, "failed to save subscription")
	}
	return saved, nil
}
