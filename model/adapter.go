package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// SystemQueues are the fixed queues every adapter exchange is bound to.
var SystemQueues = []string{"database", "redis-latest", "subscriptions-monitoring"}

// AdapterRecord is the durable bookkeeping row of a registered ingestion adapter.
// ExchangeName is unique. Rows are never updated in place: re-registration after
// delete creates a fresh row.
type AdapterRecord struct {
	ID                 int64     `json:"-" db:"id"`
	ExchangeName       string    `json:"exchangeName" db:"exchange_name"`
	ResourceID         string    `json:"resourceId" db:"resource_id"`
	DatasetName        string    `json:"datasetName" db:"dataset_name"`
	DatasetDetailsJSON string    `json:"datasetDetailsJson" db:"dataset_details_json"`
	UserID             string    `json:"userId" db:"user_id"`
	ProviderID         string    `json:"providerId" db:"provider_id"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
	ModifiedAt         time.Time `json:"modifiedAt" db:"modified_at"`
}

// TableName returns the database table name for AdapterRecord.
func (m AdapterRecord) TableName() string {
	return tablePrefix + "adapter"
}

// NewAdapterRecord creates a record for exchangeName stamped with the current time.
func NewAdapterRecord(exchangeName, resourceID, userID, providerID string) AdapterRecord {
	now := time.Now().UTC()
	return AdapterRecord{
		ExchangeName: exchangeName,
		ResourceID:   resourceID,
		UserID:       userID,
		ProviderID:   providerID,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
}

// Validate checks the fields every persisted adapter row must carry.
func (m AdapterRecord) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.ExchangeName, validation.Required, validation.Length(1, 512)),
		validation.Field(&m.ResourceID, validation.Required),
		validation.Field(&m.UserID, validation.Required),
		validation.Field(&m.ProviderID, validation.Required),
	)
}
