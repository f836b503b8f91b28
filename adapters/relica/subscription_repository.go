package relica

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/relica"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
	"github.com/datakaveri/dx-resource-server-sub001/model"
)

// SubscriptionRepository implements provisioner.SubscriptionRepository using Relica.
type SubscriptionRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewSubscriptionRepository creates a new SubscriptionRepository with default table prefix.
func NewSubscriptionRepository(sqlDB *sql.DB, driverName string) *SubscriptionRepository {
	return NewSubscriptionRepositoryWithPrefix(sqlDB, driverName, DefaultTablePrefix)
}

// NewSubscriptionRepositoryWithPrefix creates a new SubscriptionRepository with custom table prefix.
func NewSubscriptionRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *SubscriptionRepository {
	return &SubscriptionRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		tablePrefix: prefix,
	}
}

func (r *SubscriptionRepository) tableName() string {
	return r.tablePrefix + "subscription"
}

// ExistsByQueueName reports whether any row uses queueName.
func (r *SubscriptionRepository) ExistsByQueueName(ctx context.Context, queueName string) (bool, error) {
	var c rowCount
	err := r.db.WithContext(ctx).Select("COUNT(*) AS n").
		From(r.tableName()).
		Where("queue_name = ?", queueName).
		One(&c)
	if err != nil {
		return false, provisioner.NewErrorWithCause(provisioner.ErrCodePersistence, "failed to count subscriptions", err)
	}
	return c.N > 0, nil
}

// ExistsByQueueAndEntity reports whether the pair is recorded.
func (r *SubscriptionRepository) ExistsByQueueAndEntity(ctx context.Context, queueName, entityID string) (bool, error) {
	var c rowCount
	err := r.db.WithContext(ctx).Select("COUNT(*) AS n").
		From(r.tableName()).
		Where("queue_name = ? AND entity_id = ?", queueName, entityID).
		One(&c)
	if err != nil {
		return false, provisioner.NewErrorWithCause(provisioner.ErrCodePersistence, "failed to count subscriptions", err)
	}
	return c.N > 0, nil
}

// FindByQueueAndEntity returns the row for the pair, or nil when absent.
func (r *SubscriptionRepository) FindByQueueAndEntity(ctx context.Context, queueName, entityID string) (*model.SubscriptionRecord, error) {
	var rec model.SubscriptionRecord

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("queue_name = ? AND entity_id = ?", queueName, entityID).
		One(&rec)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, provisioner.NewErrorWithCause(provisioner.ErrCodePersistence, "failed to load subscription", err)
	}

	return &rec, nil
}

// FindByQueueName returns every row of queueName, oldest first.
func (r *SubscriptionRepository) FindByQueueName(ctx context.Context, queueName string) ([]model.SubscriptionRecord, error) {
	var rows []model.SubscriptionRecord

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("queue_name = ?", queueName).
		OrderBy("id ASC").
		All(&rows)

	if err != nil {
		return nil, provisioner.NewErrorWithCause(provisioner.ErrCodePersistence, "failed to find subscriptions by queue", err)
	}
	if rows == nil {
		rows = []model.SubscriptionRecord{}
	}

	return rows, nil
}

// FindByUserID returns every row owned by userID.
func (r *SubscriptionRepository) FindByUserID(ctx context.Context, userID string) ([]model.SubscriptionRecord, error) {
	var rows []model.SubscriptionRecord

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("user_id = ?", userID).
		OrderBy("created_at DESC").
		All(&rows)

	if err != nil {
		return nil, provisioner.NewErrorWithCause(provisioner.ErrCodePersistence, "failed to find subscriptions by user", err)
	}
	if rows == nil {
		rows = []model.SubscriptionRecord{}
	}

	return rows, nil
}

// Insert stores a new row. The unique (queue_name, entity_id) constraint turns a
// concurrent duplicate into ErrCodeConflict.
func (r *SubscriptionRepository) Insert(ctx context.Context, m model.SubscriptionRecord) (model.SubscriptionRecord, error) {
	m.ID = 0
	// Insert using Model() API - auto-populates m.ID
	if err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert(); err != nil {
		return m, insertError(err, "failed to insert subscription")
	}
	return m, nil
}

// UpdateExpiry changes the lease end of one row.
func (r *SubscriptionRepository) UpdateExpiry(ctx context.Context, queueName, entityID string, expiry time.Time) error {
	res, err := r.db.WithContext(ctx).Update(r.tableName()).
		Set(map[string]interface{}{
			"expiry":      expiry,
			"modified_at": time.Now().UTC(),
		}).
		Where("queue_name = ? AND entity_id = ?", queueName, entityID).
		Execute()

	if err != nil {
		return provisioner.NewErrorWithCause(provisioner.ErrCodePersistence, "failed to update subscription expiry", err)
	}
	return requireAffected(res)
}

// DeleteByQueueName removes every row of queueName in a single statement.
func (r *SubscriptionRepository) DeleteByQueueName(ctx context.Context, queueName string) error {
	res, err := r.db.WithContext(ctx).Delete(r.tableName()).
		Where("queue_name = ?", queueName).
		Execute()
	if err != nil {
		return provisioner.NewErrorWithCause(provisioner.ErrCodePersistence, "failed to delete subscriptions", err)
	}
	return requireAffected(res)
}

var _ provisioner.SubscriptionRepository = (*SubscriptionRepository)(nil)
