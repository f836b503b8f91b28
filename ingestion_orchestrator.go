package provisioner

import (
	"bytes"
	"context"
	"fmt"

	"github.com/buger/jsonparser"
	"golang.org/x/sync/errgroup"

	"github.com/datakaveri/dx-resource-server-sub001/model"
)

// IngestionOrchestrator provisions producer-side ingestion adapters and forwards
// their data batches to the broker.
//
// An adapter row exists only once its exchange is registered, write-permitted for the
// owner and bound to every system queue. Registration never writes a partial row: all
// broker steps are idempotent, so a failed registration is retried from the top.
//
// Thread safety: Safe for concurrent use.
type IngestionOrchestrator struct {
	repo      AdapterRepository
	broker    BrokerGateway
	catalogue CatalogueGateway
	sagaRunner
}

// IngestionOrchestratorOption configures an IngestionOrchestrator.
type IngestionOrchestratorOption func(*IngestionOrchestrator) error

// NewIngestionOrchestrator creates a new IngestionOrchestrator with the provided options.
//
// Required options:
//   - WithAdapterRepository: adapter store
//   - WithIngestionGateways: broker and catalogue gateways
//   - WithIngestionLogger: logger instance
func NewIngestionOrchestrator(opts ...IngestionOrchestratorOption) (*IngestionOrchestrator, error) {
	o := &IngestionOrchestrator{
		sagaRunner: sagaRunner{notifications: &NoOpNotificationService{}},
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply ingestion orchestrator option", err)
		}
	}

	if o.repo == nil {
		return nil, NewError(ErrCodeConfiguration, "AdapterRepository is required (use WithAdapterRepository)")
	}
	if o.broker == nil {
		return nil, NewError(ErrCodeConfiguration, "BrokerGateway is required (use WithIngestionGateways)")
	}
	if o.catalogue == nil {
		return nil, NewError(ErrCodeConfiguration, "CatalogueGateway is required (use WithIngestionGateways)")
	}
	if o.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithIngestionLogger)")
	}

	return o, nil
}

// WithAdapterRepository sets the adapter store.
func WithAdapterRepository(repo AdapterRepository) IngestionOrchestratorOption {
	return func(o *IngestionOrchestrator) error {
		if repo == nil {
			return fmt.Errorf("adapter repository cannot be nil")
		}
		o.repo = repo
		return nil
	}
}

// WithIngestionGateways sets the broker and catalogue collaborators.
func WithIngestionGateways(broker BrokerGateway, catalogue CatalogueGateway) IngestionOrchestratorOption {
	return func(o *IngestionOrchestrator) error {
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

// WithIngestionLogger sets the logger instance.
func WithIngestionLogger(logger Logger) IngestionOrchestratorOption {
	return func(o *IngestionOrchestrator) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithIngestionNotifications sets an optional lifecycle notification service.
func WithIngestionNotifications(service NotificationService) IngestionOrchestratorOption {
	return func(o *IngestionOrchestrator) error {
		if service == nil {
			return fmt.Errorf("notification service cannot be nil")
		}
		o.notifications = service
		return nil
	}
}

// WithIngestionMetrics enables saga metrics.
func WithIngestionMetrics(metrics *Metrics) IngestionOrchestratorOption {
	return func(o *IngestionOrchestrator) error {
		o.metrics = metrics
		return nil
	}
}

// RegisterAdapterResult is what a successful RegisterAdapter hands back to the caller.
type RegisterAdapterResult struct {
	Exchange ExchangeHandle
	Topology RoutingTopology
	Record   model.AdapterRecord
}

// RegisterAdapter provisions the exchange entityID publishes into.
//
// Returns ErrCodeConflict without touching the broker when an adapter is already
// recorded for entityID, and ErrCodeInvalidCatalogueData when the catalogue record
// cannot be routed.
func (o *IngestionOrchestrator) RegisterAdapter(ctx context.Context, entityID, userID string) (*RegisterAdapterResult, error) {
	if entityID == "" || userID == "" {
		return nil, NewError(ErrCodeValidation, "entity id and user id are required")
	}

	result := &RegisterAdapterResult{}
	var item CatalogueItem

	steps := []Step{
		{Name: "conflict-gate", Idempotent: true, Run: func(ctx context.Context) error {
			return o.gateAdapter(ctx, entityID)
		}},
		{Name: "resolve-catalogue", Idempotent: true, Run: func(ctx context.Context) (err error) {
			item, err = o.catalogue.Resolve(ctx, entityID)
			if err != nil {
				return keepKind(err, ErrCodeInternal, "failed to resolve catalogue entity")
			}
			return nil
		}},
		{Name: "resolve-topology", Idempotent: true, Run: func(_ context.Context) (err error) {
			result.Topology, err = ResolveTopology(item, entityID)
			return err
		}},
		{Name: "register-exchange", Run: func(ctx context.Context) error {
			handle, err := o.broker.RegisterExchange(ctx, userID, result.Topology.ExchangeRoot)
			if err != nil {
				return keepKind(err, ErrCodeBroker, "failed to register exchange")
			}
			result.Exchange = handle
			return nil
		}},
		{Name: "grant-write", Idempotent: true, Run: func(ctx context.Context) error {
			if err := o.broker.GrantWrite(ctx, userID, result.Topology.ExchangeRoot); err != nil {
				return keepKind(err, ErrCodeBroker, "failed to grant write permission")
			}
			return nil
		}},
		{Name: "bind-system-queues", Idempotent: true, Run: func(ctx context.Context) error {
			return o.bindSystemQueues(ctx, result.Topology)
		}},
		{Name: "persist", Run: func(ctx context.Context) error {
			rec := model.NewAdapterRecord(result.Topology.ExchangeRoot, entityID, userID, item.Provider)
			rec.DatasetName = item.Name
			rec.DatasetDetailsJSON = item.Raw
			if err := rec.Validate(); err != nil {
				return NewErrorWithCause(ErrCodeInvalidCatalogueData, "adapter row is incomplete", err)
			}
			saved, err := o.repo.Insert(ctx, rec)
			if err != nil {
				return keepKind(err, ErrCodePersistence, "failed to save adapter")
			}
			result.Record = saved
			return nil
		}},
	}

	if err := o.run(ctx, "adapter.register", steps); err != nil {
		return nil, err
	}

	o.logger.Infof("Adapter registered: entity=%s, exchange=%s, user=%s",
		entityID, result.Topology.ExchangeRoot, userID)
	if err := o.notifications.NotifyAdapterRegistered(ctx, result.Record); err != nil {
		o.logger.Warnf("Failed to send adapter registered notification: %v", err)
	}

	return result, nil
}

// DeleteAdapter tears down the exchange, withdraws the owner's write grant and
// finally removes the row. The broker goes first; a row left behind by a failed
// store call is removed by the reconciliation sweep.
//
// Returns ErrCodeNotFound when the broker has no such exchange.
func (o *IngestionOrchestrator) DeleteAdapter(ctx context.Context, exchangeName, userID string) error {
	if exchangeName == "" || userID == "" {
		return NewError(ErrCodeValidation, "exchange name and user id are required")
	}

	steps := []Step{
		{Name: "delete-exchange", Run: func(ctx context.Context) error {
			if err := o.broker.DeleteExchange(ctx, exchangeName, userID); err != nil {
				return keepKind(err, ErrCodeBroker, "failed to delete exchange")
			}
			return nil
		}},
		{Name: "revoke-write", Idempotent: true, Run: func(ctx context.Context) error {
			if err := o.broker.RevokeWrite(ctx, userID, exchangeName); err != nil {
				return keepKind(err, ErrCodeBroker, "failed to revoke write permission")
			}
			return nil
		}},
		{Name: "delete-row", Idempotent: true, Run: func(ctx context.Context) error {
			err := o.repo.DeleteByExchangeName(ctx, exchangeName)
			if IsNotFound(err) {
				o.logger.Warnf("Exchange %s had no adapter row", exchangeName)
				return nil
			}
			if err != nil {
				return keepKind(err, ErrCodePersistence, "failed to delete adapter row")
			}
			return nil
		}},
	}

	if err := o.run(ctx, "adapter.delete", steps); err != nil {
		return err
	}

	o.logger.Infof("Adapter deleted: exchange=%s, user=%s", exchangeName, userID)
	if err := o.notifications.NotifyAdapterDeleted(ctx, exchangeName, userID); err != nil {
		o.logger.Warnf("Failed to send adapter deleted notification: %v", err)
	}
	return nil
}

// GetAdapterDetails returns every queue bound to the exchange with its routing keys.
//
// Returns ErrCodeNotFound when the broker has no such exchange.
func (o *IngestionOrchestrator) GetAdapterDetails(ctx context.Context, exchangeName string) (map[string][]string, error) {
	if exchangeName == "" {
		return nil, NewError(ErrCodeValidation, "exchange name is required")
	}

	bindings, err := o.broker.ListExchangeSubscribers(ctx, exchangeName)
	if err != nil {
		return nil, keepKind(err, ErrCodeBroker, "failed to list exchange bindings")
	}
	return bindings, nil
}

// PublishDataFromAdapter forwards a batch to the exchange of its declared entity as
// a single JSON array. The "id" key is removed from every record first.
// Nothing is persisted.
//
// Returns ErrCodeInvalidCatalogueData when the entity cannot be resolved to an exchange
// and ErrCodeInternal when the publish fails.
func (o *IngestionOrchestrator) PublishDataFromAdapter(ctx context.Context, batch model.DataBatch) error {
	if err := batch.Validate(); err != nil {
		return NewErrorWithCause(ErrCodeValidation, "invalid data batch", err)
	}

	item, err := o.catalogue.Resolve(ctx, batch.EntityID)
	if err != nil {
		return NewErrorWithCause(ErrCodeInvalidCatalogueData, "failed to resolve batch entity", err)
	}
	topology, err := ResolveTopology(item, batch.EntityID)
	if err != nil {
		return err
	}
	routingKey := topology.ExchangeRoot + "/." + batch.EntityID

	payload := stripRecordIDs(batch)
	if err := o.broker.Publish(ctx, topology.ExchangeRoot, routingKey, payload); err != nil {
		return NewErrorWithCause(ErrCodeInternal, "failed to publish batch", err)
	}

	o.logger.Debugf("Published %d records to %s with key %s", len(batch.Records), topology.ExchangeRoot, routingKey)
	return nil
}

// ListAdaptersForUser resolves iid to its provider and returns every adapter of that provider.
// An item that is itself a provider is its own provider id.
func (o *IngestionOrchestrator) ListAdaptersForUser(ctx context.Context, iid string) ([]model.AdapterRecord, error) {
	if iid == "" {
		return nil, NewError(ErrCodeValidation, "item id is required")
	}

	item, err := o.catalogue.Resolve(ctx, iid)
	if err != nil {
		return nil, keepKind(err, ErrCodeInternal, "failed to resolve catalogue entity")
	}

	providerID := item.Provider
	if providerID == "" {
		providerID = item.ID
	}
	if providerID == "" {
		return nil, NewError(ErrCodeInvalidCatalogueData, fmt.Sprintf("item %q names no provider", iid))
	}

	adapters, err := o.repo.FindAllByProviderID(ctx, providerID)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeInternal, "failed to list adapters", err)
	}
	if adapters == nil {
		adapters = []model.AdapterRecord{}
	}
	return adapters, nil
}

func (o *IngestionOrchestrator) gateAdapter(ctx context.Context, entityID string) error {
	exists, err := o.repo.ExistsByExchangeName(ctx, entityID)
	if err != nil {
		return keepKind(err, ErrCodePersistence, "failed to check existing exchange")
	}
	if !exists {
		exists, err = o.repo.ExistsByResourceID(ctx, entityID)
		if err != nil {
			return keepKind(err, ErrCodePersistence, "failed to check existing adapter")
		}
	}
	if exists {
		return NewError(ErrCodeConflict, fmt.Sprintf("adapter already registered: %s", entityID))
	}
	return nil
}

// bindSystemQueues binds every system queue to the exchange and waits for all of them.
func (o *IngestionOrchestrator) bindSystemQueues(ctx context.Context, topology RoutingTopology) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, queue := range model.SystemQueues {
		g.Go(func() error {
			if err := o.broker.Bind(gctx, topology.ExchangeRoot, queue, topology.RoutingKey); err != nil {
				return keepKind(err, ErrCodeBroker, fmt.Sprintf("failed to bind %s", queue))
			}
			return nil
		})
	}
	return g.Wait()
}

// stripRecordIDs renders the batch records as one JSON array without their "id" keys.
func stripRecordIDs(batch model.DataBatch) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, rec := range batch.Records {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(jsonparser.Delete(bytes.Clone(rec), "id"))
	}
	buf.WriteByte(']')
	return buf.Bytes()
}
