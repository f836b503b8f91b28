// Package model contains the domain records and value types of the provisioning core.
package model

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// tablePrefix is the default prefix of every table owned by this module.
const tablePrefix = "dx_"

// DataBatch is an inbound batch of records produced by a registered ingestion adapter.
// Every record is a JSON object that carries the entity id under the "id" key;
// the id is stripped before the batch is forwarded to the broker.
type DataBatch struct {
	EntityID string            `json:"id"`      // Declared entity the batch belongs to
	Records  []json.RawMessage `json:"records"` // Raw JSON records
}

// Validate checks that the batch names an entity and carries at least one record.
func (b DataBatch) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.EntityID, validation.Required),
		validation.Field(&b.Records, validation.Required),
	)
}
