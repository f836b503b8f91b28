package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
	"github.com/datakaveri/dx-resource-server-sub001/model"
)

func subscriptionRow(queue, entity string) model.SubscriptionRecord {
	rec := model.NewSubscriptionRecord(queue, entity, model.SubscriptionTypeStreaming, time.Now().Add(time.Hour))
	rec.UserID = model.QueueOwner(queue)
	rec.ItemType = model.ItemTypeResource
	return rec
}

func TestSubscriptionStore_InsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s := NewSubscriptionStore()

	saved, err := s.Insert(ctx, subscriptionRow("u1/sub", "e1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.ID)

	_, err = s.Insert(ctx, subscriptionRow("u1/sub", "e2"))
	require.NoError(t, err)

	_, err = s.Insert(ctx, subscriptionRow("u1/sub", "e1"))
	assert.True(t, provisioner.IsConflict(err))

	exists, err := s.ExistsByQueueName(ctx, "u1/sub")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ExistsByQueueAndEntity(ctx, "u1/sub", "e3")
	require.NoError(t, err)
	assert.False(t, exists)

	rows, err := s.FindByQueueName(ctx, "u1/sub")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = s.FindByUserID(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	rec, err := s.FindByQueueAndEntity(ctx, "u1/ghost", "e1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSubscriptionStore_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewSubscriptionStore()
	_, err := s.Insert(ctx, subscriptionRow("u1/sub", "e1"))
	require.NoError(t, err)

	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdateExpiry(ctx, "u1/sub", "e1", expiry))
	rec, err := s.FindByQueueAndEntity(ctx, "u1/sub", "e1")
	require.NoError(t, err)
	assert.Equal(t, expiry, rec.Expiry)

	assert.True(t, provisioner.IsNotFound(s.UpdateExpiry(ctx, "u1/sub", "e9", expiry)))

	require.NoError(t, s.DeleteByQueueName(ctx, "u1/sub"))
	assert.Zero(t, s.Len())
	assert.True(t, provisioner.IsNotFound(s.DeleteByQueueName(ctx, "u1/sub")))
}

func TestSubscriptionStore_FailWith(t *testing.T) {
	ctx := context.Background()
	s := NewSubscriptionStore()
	boom := errors.New("db down")
	s.FailWith(boom)

	_, err := s.FindByUserID(ctx, "u1")
	assert.ErrorIs(t, err, boom)
	_, err = s.Insert(ctx, subscriptionRow("u1/sub", "e1"))
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, s.Writes())
}

func TestAdapterStore(t *testing.T) {
	ctx := context.Background()
	s := NewAdapterStore()

	for _, ex := range []string{"rg1", "rg2", "rg3"} {
		_, err := s.Insert(ctx, model.NewAdapterRecord(ex, ex+"-res", "u1", "p1"))
		require.NoError(t, err)
	}
	_, err := s.Insert(ctx, model.NewAdapterRecord("rg1", "x", "u1", "p1"))
	assert.True(t, provisioner.IsConflict(err))

	exists, err := s.ExistsByResourceID(ctx, "rg2-res")
	require.NoError(t, err)
	assert.True(t, exists)

	page, err := s.ListAfter(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "rg2", page[1].ExchangeName)

	page, err = s.ListAfter(ctx, page[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "rg3", page[0].ExchangeName)

	byProvider, err := s.FindAllByProviderID(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, byProvider, 3)

	require.NoError(t, s.DeleteByExchangeName(ctx, "rg2"))
	assert.True(t, provisioner.IsNotFound(s.DeleteByExchangeName(ctx, "rg2")))

	rec, err := s.FindByExchangeName(ctx, "rg2")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
