package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionRecord_TableName(t *testing.T) {
	rec := SubscriptionRecord{}
	assert.Equal(t, "dx_subscription", rec.TableName())
}

func TestQueueNameFor(t *testing.T) {
	assert.Equal(t, "u1/my-sub", QueueNameFor("u1", "my-sub"))
}

func TestQueueOwner(t *testing.T) {
	tests := []struct {
		queue    string
		expected string
	}{
		{"u1/my-sub", "u1"},
		{"u1/nested/name", "u1"},
		{"database", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, QueueOwner(tt.queue), tt.queue)
	}
}

func TestNewSubscriptionRecord(t *testing.T) {
	expiry := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	rec := NewSubscriptionRecord("u1/my-sub", "e1", SubscriptionTypeStreaming, expiry)

	assert.Equal(t, int64(0), rec.ID)
	assert.Equal(t, "u1/my-sub", rec.QueueName)
	assert.Equal(t, "e1", rec.EntityID)
	assert.Equal(t, SubscriptionTypeStreaming, rec.SubscriptionType)
	assert.Equal(t, expiry, rec.Expiry)
	assert.WithinDuration(t, time.Now(), rec.CreatedAt, time.Second)
	assert.Equal(t, rec.CreatedAt, rec.ModifiedAt)
}

func TestSubscriptionRecord_ExtendExpiry(t *testing.T) {
	rec := NewSubscriptionRecord("u1/my-sub", "e1", SubscriptionTypeStreaming, time.Now())
	rec.ModifiedAt = rec.ModifiedAt.Add(-time.Hour)

	newExpiry := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rec.ExtendExpiry(newExpiry)

	assert.Equal(t, newExpiry, rec.Expiry)
	assert.WithinDuration(t, time.Now(), rec.ModifiedAt, time.Second)
}

func TestSubscriptionRecord_IsExpired(t *testing.T) {
	now := time.Now()

	assert.True(t, SubscriptionRecord{Expiry: now.Add(-time.Minute)}.IsExpired(now))
	assert.False(t, SubscriptionRecord{Expiry: now.Add(time.Minute)}.IsExpired(now))
	assert.False(t, SubscriptionRecord{}.IsExpired(now), "zero expiry never expires")
}

func TestSubscriptionRecord_Validate(t *testing.T) {
	valid := NewSubscriptionRecord("u1/my-sub", "e1", SubscriptionTypeCallback, time.Now())
	valid.UserID = "u1"
	valid.ItemType = ItemTypeResource

	tests := []struct {
		name    string
		mutate  func(r *SubscriptionRecord)
		wantErr bool
	}{
		{"valid", func(_ *SubscriptionRecord) {}, false},
		{"missing entity", func(r *SubscriptionRecord) { r.EntityID = "" }, true},
		{"missing user", func(r *SubscriptionRecord) { r.UserID = "" }, true},
		{"unknown type", func(r *SubscriptionRecord) { r.SubscriptionType = "PULL" }, true},
		{"unknown item type", func(r *SubscriptionRecord) { r.ItemType = "PROVIDER" }, true},
		{"short queue", func(r *SubscriptionRecord) { r.QueueName = "u" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid
			tt.mutate(&rec)
			err := rec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
