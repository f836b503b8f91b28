package model

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// SubscriptionType selects how a subscriber consumes its queue.
type SubscriptionType string

const (
	// SubscriptionTypeStreaming delivers through a broker queue the user consumes directly.
	SubscriptionTypeStreaming SubscriptionType = "STREAMING"

	// SubscriptionTypeCallback delivers to a callback endpoint registered by the user.
	SubscriptionTypeCallback SubscriptionType = "CALLBACK"
)

// ItemType records whether a subscription targets a single resource or a whole group.
type ItemType string

const (
	// ItemTypeResource marks an entity that belongs to a resource group.
	ItemTypeResource ItemType = "RESOURCE"

	// ItemTypeResourceGroup marks an entity that is itself an exchange root.
	ItemTypeResourceGroup ItemType = "RESOURCE_GROUP"
)

// SubscriptionRecord is the durable bookkeeping row of a push subscription.
// A queue may own several rows, one per appended entity; (QueueName, EntityID) is unique.
//
// Invariant: a row exists only if the broker queue exists and is bound with a routing key
// resolving to EntityID.
type SubscriptionRecord struct {
	ID               int64            `json:"-" db:"id"`                               // Surrogate key used by SQL adapters
	QueueName        string           `json:"queueName" db:"queue_name"`               // Always "{userId}/{name}"
	EntityID         string           `json:"entityId" db:"entity_id"`                 // Catalogue entity bound to the queue
	SubscriptionType SubscriptionType `json:"subscriptionType" db:"subscription_type"` // STREAMING or CALLBACK
	Expiry           time.Time        `json:"expiry" db:"expiry"`                      // Bookkeeping lease end
	DatasetName      string           `json:"datasetName" db:"dataset_name"`           // Catalogue item name
	DatasetJSON      string           `json:"datasetJson" db:"dataset_json"`           // Opaque catalogue snapshot
	UserID           string           `json:"userId" db:"user_id"`                     // Owner of the queue
	ResourceGroupID  string           `json:"resourceGroupId" db:"resource_group_id"`  // Exchange root the queue is bound to
	ProviderID       string           `json:"providerId" db:"provider_id"`             // Catalogue provider
	DelegatorID      string           `json:"delegatorId" db:"delegator_id"`           // Delegating user, if any
	ItemType         ItemType         `json:"itemType" db:"item_type"`                 // RESOURCE or RESOURCE_GROUP
	CreatedAt        time.Time        `json:"createdAt" db:"created_at"`               // Row creation time
	ModifiedAt       time.Time        `json:"modifiedAt" db:"modified_at"`             // Last expiry change
}

// TableName returns the database table name for SubscriptionRecord.
func (m SubscriptionRecord) TableName() string {
	return tablePrefix + "subscription"
}

// QueueNameFor builds the queue name owned by userID for a subscription called name.
func QueueNameFor(userID, name string) string {
	return userID + "/" + name
}

// QueueOwner returns the user id encoded in a queue name, or "" when the name has no owner prefix.
func QueueOwner(queueName string) string {
	owner, _, ok := strings.Cut(queueName, "/")
	if !ok {
		return ""
	}
	return owner
}

// NewSubscriptionRecord creates a record stamped with the current time.
func NewSubscriptionRecord(queueName, entityID string, subType SubscriptionType, expiry time.Time) SubscriptionRecord {
	now := time.Now().UTC()
	return SubscriptionRecord{
		QueueName:        queueName,
		EntityID:         entityID,
		SubscriptionType: subType,
		Expiry:           expiry,
		CreatedAt:        now,
		ModifiedAt:       now,
	}
}

// ExtendExpiry moves the lease end and stamps the modification time.
func (m *SubscriptionRecord) ExtendExpiry(expiry time.Time) {
	m.Expiry = expiry
	m.ModifiedAt = time.Now().UTC()
}

// IsExpired reports whether the lease ended before now.
func (m SubscriptionRecord) IsExpired(now time.Time) bool {
	return !m.Expiry.IsZero() && m.Expiry.Before(now)
}

// Validate checks the fields every persisted subscription row must carry.
func (m SubscriptionRecord) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.QueueName, validation.Required, validation.Length(3, 512)),
		validation.Field(&m.EntityID, validation.Required),
		validation.Field(&m.UserID, validation.Required),
		validation.Field(&m.SubscriptionType, validation.Required,
			validation.In(SubscriptionTypeStreaming, SubscriptionTypeCallback)),
		validation.Field(&m.ItemType, validation.Required,
			validation.In(ItemTypeResource, ItemTypeResourceGroup)),
	)
}
