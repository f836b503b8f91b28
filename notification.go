package provisioner

import (
	"context"

	"github.com/datakaveri/dx-resource-server-sub001/model"
)

// NotificationService receives provisioning lifecycle events.
// Implementations might feed an audit trail, alerting or a reconciliation queue.
type NotificationService interface {
	// NotifySubscriptionCreated is called after a subscription row is written.
	NotifySubscriptionCreated(ctx context.Context, record model.SubscriptionRecord) error

	// NotifySubscriptionDeleted is called after a subscription queue is torn down.
	NotifySubscriptionDeleted(ctx context.Context, queueName, userID string) error

	// NotifyAdapterRegistered is called after an adapter row is written.
	NotifyAdapterRegistered(ctx context.Context, record model.AdapterRecord) error

	// NotifyAdapterDeleted is called after an adapter exchange is torn down.
	NotifyAdapterDeleted(ctx context.Context, exchangeName, userID string) error

	// NotifySagaFailed is called when a saga stops partway. Steps before
	// result.FailedStep took effect and were not rolled back.
	NotifySagaFailed(ctx context.Context, result SagaResult) error
}

// NoOpNotificationService is a no-op implementation of NotificationService.
type NoOpNotificationService struct{}

// NotifySubscriptionCreated does nothing.
func (n *NoOpNotificationService) NotifySubscriptionCreated(_ context.Context, _ model.SubscriptionRecord) error {
	return nil
}

// NotifySubscriptionDeleted does nothing.
func (n *NoOpNotificationService) NotifySubscriptionDeleted(_ context.Context, _, _ string) error {
	return nil
}

// NotifyAdapterRegistered does nothing.
func (n *NoOpNotificationService) NotifyAdapterRegistered(_ context.Context, _ model.AdapterRecord) error {
	return nil
}

// NotifyAdapterDeleted does nothing.
func (n *NoOpNotificationService) NotifyAdapterDeleted(_ context.Context, _, _ string) error {
	return nil
}

// NotifySagaFailed does nothing.
func (n *NoOpNotificationService) NotifySagaFailed(_ context.Context, _ SagaResult) error {
	return nil
}

// LoggingNotificationService is a simple implementation that logs notifications.
type LoggingNotificationService struct {
	logger Logger
}

// NewLoggingNotificationService creates a new LoggingNotificationService.
func NewLoggingNotificationService(logger Logger) *LoggingNotificationService {
	return &LoggingNotificationService{logger: logger}
}

// NotifySubscriptionCreated logs subscription creation.
func (n *LoggingNotificationService) NotifySubscriptionCreated(_ context.Context, record model.SubscriptionRecord) error {
	n.logger.Infof("Subscription provisioned: queue=%s, entity=%s, user=%s, expiry=%s",
		record.QueueName, record.EntityID, record.UserID, record.Expiry.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}

// NotifySubscriptionDeleted logs subscription deletion.
func (n *LoggingNotificationService) NotifySubscriptionDeleted(_ context.Context, queueName, userID string) error {
	n.logger.Infof("Subscription removed: queue=%s, user=%s", queueName, userID)
	return nil
}

// NotifyAdapterRegistered logs adapter registration.
func (n *LoggingNotificationService) NotifyAdapterRegistered(_ context.Context, record model.AdapterRecord) error {
	n.logger.Infof("Adapter registered: exchange=%s, resource=%s, user=%s",
		record.ExchangeName, record.ResourceID, record.UserID)
	return nil
}

// NotifyAdapterDeleted logs adapter deletion.
func (n *LoggingNotificationService) NotifyAdapterDeleted(_ context.Context, exchangeName, userID string) error {
	n.logger.Infof("Adapter removed: exchange=%s, user=%s", exchangeName, userID)
	return nil
}

// NotifySagaFailed logs the failed step so partial state can be reconciled by hand.
func (n *LoggingNotificationService) NotifySagaFailed(_ context.Context, result SagaResult) error {
	n.logger.Warnf("Saga %s stopped at step %d after %d completed steps: %v",
		result.Operation, result.FailedStep, result.Completed, result.Err)
	return nil
}
