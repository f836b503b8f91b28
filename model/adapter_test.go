package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdapterRecord_TableName(t *testing.T) {
	assert.Equal(t, "dx_adapter", AdapterRecord{}.TableName())
}

func TestNewAdapterRecord(t *testing.T) {
	rec := NewAdapterRecord("rg1", "e1", "u1", "p1")

	assert.Equal(t, "rg1", rec.ExchangeName)
	assert.Equal(t, "e1", rec.ResourceID)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "p1", rec.ProviderID)
	assert.WithinDuration(t, time.Now(), rec.CreatedAt, time.Second)
	assert.NoError(t, rec.Validate())
}

func TestAdapterRecord_ValidateMissingProvider(t *testing.T) {
	rec := NewAdapterRecord("rg1", "e1", "u1", "")
	assert.Error(t, rec.Validate())
}

func TestSystemQueues(t *testing.T) {
	assert.Equal(t, []string{"database", "redis-latest", "subscriptions-monitoring"}, SystemQueues)
}
