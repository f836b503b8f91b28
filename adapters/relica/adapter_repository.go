package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/relica"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
	"github.com/datakaveri/dx-resource-server-sub001/model"
)

// AdapterRepository implements provisioner.AdapterRepository using Relica.
type AdapterRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewAdapterRepository creates a new AdapterRepository with default table prefix.
func NewAdapterRepository(sqlDB *sql.DB, driverName string) *AdapterRepository {
	return NewAdapterRepositoryWithPrefix(sqlDB, driverName, DefaultTablePrefix)
}

// NewAdapterRepositoryWithPrefix creates a new AdapterRepository with custom table prefix.
func NewAdapterRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *AdapterRepository {
	return &AdapterRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *AdapterRepository) tableName() string {
	return r.tablePrefix + "adapter"
}

// ExistsByExchangeName reports whether an adapter owns exchangeName.
func (r *AdapterRepository) ExistsByExchangeName(ctx context.Context, exchangeName string) (bool, error) {
	return r.exists(ctx, "exchange_name = ?", exchangeName)
}

// ExistsByResourceID reports whether an adapter was registered for resourceID.
func (r *AdapterRepository) ExistsByResourceID(ctx context.Context, resourceID string) (bool, error) {
	return r.exists(ctx, "resource_id = ?", resourceID)
}

func (r *AdapterRepository) exists(ctx context.Context, where string, arg string) (bool, error) {
	var c rowCount
	err := r.db.WithContext(ctx).Select("COUNT(*) AS n").From(r.tableName()).Where(where, arg).One(&c)
	if err != nil {
		return false, provisioner.NewErrorWithCause(provisioner.ErrCodePersistence, "failed to count adapters", err)
	}
	return c.N > 0, nil
}

// FindByExchangeName returns the adapter row, or nil when absent.
func (r *AdapterRepository) FindByExchangeName(ctx context.Context, exchangeName string) (*model.AdapterRecord, error) {
	var rec model.AdapterRecord
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("exchange_name = ?", exchangeName).One(&rec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, provisioner.NewErrorWithCause(provisioner.ErrCodePersistence, "failed to load adapter", err)
	}
	return &rec, nil
}

// FindAllByProviderID returns every adapter registered for providerID.
func (r *AdapterRepository) FindAllByProviderID(ctx context.Context, providerID string) ([]model.AdapterRecord, error) {
	var rows []model.AdapterRecord
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("provider_id = ?", providerID).
		OrderBy("id ASC").
		All(&rows)
	if err != nil {
		return nil, provisioner.NewErrorWithCause(provisioner.ErrCodePersistence, "failed to find adapters by provider", err)
	}
	if rows == nil {
		rows = []model.AdapterRecord{}
	}
	return rows, nil
}

// ListAfter pages through all adapters ordered by ID.
func (r *AdapterRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]model.AdapterRecord, error) {
	var rows []model.AdapterRecord
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("id > ?", afterID).
		OrderBy("id ASC").
		Limit(int64(limit)).
		All(&rows)
	if err != nil {
		return nil, provisioner.NewErrorWithCause(provisioner.ErrCodePersistence, "failed to page adapters", err)
	}
	return rows, nil
}

// Insert stores a new row. The unique exchange_name constraint turns a concurrent
// registration into ErrCodeConflict.
func (r *AdapterRepository) Insert(ctx context.Context, m model.AdapterRecord) (model.AdapterRecord, error) {
	m.ID = 0
	if err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert(); err != nil {
		return m, insertError(err, "failed to insert adapter")
	}
	return m, nil
}

// DeleteByExchangeName removes the adapter row.
func (r *AdapterRepository) DeleteByExchangeName(ctx context.Context, exchangeName string) error {
	res, err := r.db.WithContext(ctx).Delete(r.tableName()).
		Where("exchange_name = ?", exchangeName).
		Execute()
	if err != nil {
		return provisioner.NewErrorWithCause(provisioner.ErrCodePersistence, "failed to delete adapter", err)
	}
	return requireAffected(res)
}

var _ provisioner.AdapterRepository = (*AdapterRepository)(nil)
