package provisioner_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
	"github.com/datakaveri/dx-resource-server-sub001/adapters/memory"
	"github.com/datakaveri/dx-resource-server-sub001/model"
)

var (
	groupItem = provisioner.CatalogueItem{
		ID:       "rg-1",
		Types:    []string{"iudx:ResourceGroup"},
		Provider: "prov-1",
		Name:     "air-quality",
		Raw:      `{"id":"rg-1"}`,
	}
	resourceItem = provisioner.CatalogueItem{
		ID:            "rs-1",
		Types:         []string{"iudx:Resource"},
		ResourceGroup: "rg-1",
		Provider:      "prov-1",
		Name:          "pune-aqm",
		Raw:           `{"id":"rs-1"}`,
	}
	orphanItem = provisioner.CatalogueItem{
		ID:       "rs-orphan",
		Types:    []string{"iudx:Resource"},
		Provider: "prov-1",
		Name:     "orphan",
	}
	providerItem = provisioner.CatalogueItem{
		ID:    "prov-1",
		Types: []string{"iudx:Provider"},
	}
)

type env struct {
	broker    *memory.Broker
	catalogue *memory.Catalogue
	subs      *memory.SubscriptionStore
	adapters  *memory.AdapterStore

	subscriptions *provisioner.SubscriptionOrchestrator
	ingestion     *provisioner.IngestionOrchestrator
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		broker:    memory.NewBroker(),
		catalogue: memory.NewCatalogue(groupItem, resourceItem, orphanItem, providerItem),
		subs:      memory.NewSubscriptionStore(),
		adapters:  memory.NewAdapterStore(),
	}
	logger := &provisioner.NoopLogger{}

	var err error
	e.subscriptions, err = provisioner.NewSubscriptionOrchestrator(
		provisioner.WithSubscriptionRepository(e.subs),
		provisioner.WithSubscriptionGateways(e.broker, e.catalogue),
		provisioner.WithSubscriptionLogger(logger),
	)
	require.NoError(t, err)

	e.ingestion, err = provisioner.NewIngestionOrchestrator(
		provisioner.WithAdapterRepository(e.adapters),
		provisioner.WithIngestionGateways(e.broker, e.catalogue),
		provisioner.WithIngestionLogger(logger),
	)
	require.NoError(t, err)

	return e
}

func createRequest(name, entity string) provisioner.CreateSubscriptionRequest {
	return provisioner.CreateSubscriptionRequest{
		UserID:   "user-1",
		EntityID: entity,
		Name:     name,
		Expiry:   time.Now().Add(24 * time.Hour).UTC(),
		Type:     model.SubscriptionTypeStreaming,
	}
}
