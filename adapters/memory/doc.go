// Package memory provides in-process implementations of the provisioning gateways
// and repositories.
//
// They keep all state in maps guarded by a mutex and record every call, which makes
// them suitable for tests and for running the server without a broker or database:
//
//	broker := memory.NewBroker()
//	catalogue := memory.NewCatalogue()
//	catalogue.Add(provisioner.CatalogueItem{ID: "rg1", Types: []string{"iudx:ResourceGroup"}})
//
//	subs, err := provisioner.NewSubscriptionOrchestrator(
//	    provisioner.WithSubscriptionRepository(memory.NewSubscriptionStore()),
//	    provisioner.WithSubscriptionGateways(broker, catalogue),
//	    provisioner.WithSubscriptionLogger(&provisioner.NoopLogger{}),
//	)
//
// Failures can be injected per method with FailOn.
package memory
