package relica

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
	"github.com/datakaveri/dx-resource-server-sub001/model"
)

// openTestDB returns a migrated in-memory SQLite store. A single connection keeps
// every statement on the same :memory: database.
func openTestDB(t *testing.T) *Repositories {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, provisioner.ApplyMigrations(context.Background(), db, "sqlite3"))
	return NewRepositories(db, "sqlite3")
}

func subscriptionRow(queue, entity string) model.SubscriptionRecord {
	rec := model.NewSubscriptionRecord(queue, entity, model.SubscriptionTypeStreaming, time.Now().Add(time.Hour).UTC())
	rec.UserID = model.QueueOwner(queue)
	rec.ItemType = model.ItemTypeResource
	rec.ResourceGroupID = "rg-1"
	return rec
}

func TestSubscriptionRepository_Exists(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Subscription

	found, err := repo.ExistsByQueueName(ctx, "alice/sub")
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.ExistsByQueueAndEntity(ctx, "alice/sub", "rs-1")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = repo.Insert(ctx, subscriptionRow("alice/sub", "rs-1"))
	require.NoError(t, err)

	found, err = repo.ExistsByQueueName(ctx, "alice/sub")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.ExistsByQueueAndEntity(ctx, "alice/sub", "rs-1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.ExistsByQueueAndEntity(ctx, "alice/sub", "rs-2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSubscriptionRepository_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Subscription

	first, err := repo.Insert(ctx, subscriptionRow("alice/sub", "rs-1"))
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	second := subscriptionRow("alice/sub", "rs-2")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	_, err = repo.Insert(ctx, second)
	require.NoError(t, err)

	_, err = repo.Insert(ctx, subscriptionRow("bob/other", "rs-1"))
	require.NoError(t, err)

	rec, err := repo.FindByQueueAndEntity(ctx, "alice/sub", "rs-2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "alice", rec.UserID)
	assert.Equal(t, model.SubscriptionTypeStreaming, rec.SubscriptionType)

	rec, err = repo.FindByQueueAndEntity(ctx, "alice/sub", "rs-9")
	require.NoError(t, err)
	assert.Nil(t, rec)

	rows, err := repo.FindByQueueName(ctx, "alice/sub")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "rs-1", rows[0].EntityID)
	assert.Equal(t, "rs-2", rows[1].EntityID)

	rows, err = repo.FindByQueueName(ctx, "nobody/none")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	rows, err = repo.FindByUserID(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "rs-2", rows[0].EntityID, "newest first")
}

func TestSubscriptionRepository_InsertDuplicateIsConflict(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Subscription

	_, err := repo.Insert(ctx, subscriptionRow("alice/sub", "rs-1"))
	require.NoError(t, err)

	_, err = repo.Insert(ctx, subscriptionRow("alice/sub", "rs-1"))
	assert.True(t, provisioner.IsConflict(err))
}

func TestSubscriptionRepository_UpdateExpiry(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Subscription

	_, err := repo.Insert(ctx, subscriptionRow("alice/sub", "rs-1"))
	require.NoError(t, err)

	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.UpdateExpiry(ctx, "alice/sub", "rs-1", expiry))

	rec, err := repo.FindByQueueAndEntity(ctx, "alice/sub", "rs-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, expiry.Equal(rec.Expiry))

	err = repo.UpdateExpiry(ctx, "alice/sub", "rs-9", expiry)
	assert.True(t, provisioner.IsNotFound(err))
}

func TestSubscriptionRepository_DeleteByQueueName(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Subscription

	for _, entity := range []string{"rs-1", "rs-2", "rs-3"} {
		_, err := repo.Insert(ctx, subscriptionRow("alice/sub", entity))
		require.NoError(t, err)
	}
	_, err := repo.Insert(ctx, subscriptionRow("alice/keep", "rs-1"))
	require.NoError(t, err)

	require.NoError(t, repo.DeleteByQueueName(ctx, "alice/sub"))

	found, err := repo.ExistsByQueueName(ctx, "alice/sub")
	require.NoError(t, err)
	assert.False(t, found, "every row of the queue is removed")

	found, err = repo.ExistsByQueueName(ctx, "alice/keep")
	require.NoError(t, err)
	assert.True(t, found)

	err = repo.DeleteByQueueName(ctx, "alice/sub")
	assert.True(t, provisioner.IsNotFound(err))
}

func adapterRow(exchange, resource string) model.AdapterRecord {
	return model.NewAdapterRecord(exchange, resource, "prov-user", "prov-1")
}

func TestAdapterRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Adapter

	found, err := repo.ExistsByExchangeName(ctx, "rg-1")
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.ExistsByResourceID(ctx, "rs-1")
	require.NoError(t, err)
	assert.False(t, found)

	rec, err := repo.FindByExchangeName(ctx, "rg-1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	inserted, err := repo.Insert(ctx, adapterRow("rg-1", "rs-1"))
	require.NoError(t, err)
	assert.NotZero(t, inserted.ID)

	found, err = repo.ExistsByExchangeName(ctx, "rg-1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.ExistsByResourceID(ctx, "rs-1")
	require.NoError(t, err)
	assert.True(t, found)

	rec, err = repo.FindByExchangeName(ctx, "rg-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "prov-1", rec.ProviderID)

	_, err = repo.Insert(ctx, adapterRow("rg-1", "rs-2"))
	assert.True(t, provisioner.IsConflict(err), "exchange name is unique")

	require.NoError(t, repo.DeleteByExchangeName(ctx, "rg-1"))

	found, err = repo.ExistsByExchangeName(ctx, "rg-1")
	require.NoError(t, err)
	assert.False(t, found)

	err = repo.DeleteByExchangeName(ctx, "rg-1")
	assert.True(t, provisioner.IsNotFound(err))
}

func TestAdapterRepository_Paging(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Adapter

	for _, name := range []string{"rg-1", "rg-2", "rg-3"} {
		_, err := repo.Insert(ctx, adapterRow(name, name+"-rs"))
		require.NoError(t, err)
	}
	other := adapterRow("rg-4", "rg-4-rs")
	other.ProviderID = "prov-2"
	_, err := repo.Insert(ctx, other)
	require.NoError(t, err)

	byProvider, err := repo.FindAllByProviderID(ctx, "prov-1")
	require.NoError(t, err)
	assert.Len(t, byProvider, 3)

	none, err := repo.FindAllByProviderID(ctx, "prov-9")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	var seen []string
	var after int64
	for {
		page, err := repo.ListAfter(ctx, after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, rec := range page {
			seen = append(seen, rec.ExchangeName)
			after = rec.ID
		}
	}
	assert.Equal(t, []string{"rg-1", "rg-2", "rg-3", "rg-4"}, seen)
}
