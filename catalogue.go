package provisioner

import "context"

// CatalogueItem is a catalogue record as the orchestrators need it.
// Raw is the opaque JSON snapshot persisted verbatim into subscription and adapter rows.
type CatalogueItem struct {
	ID            string   // Catalogue id of the item
	Types         []string // Declared type set, e.g. ["iudx:Resource"]
	ResourceGroup string   // Owning resource group; empty when not declared
	Provider      string   // Provider id
	Name          string   // Dataset name
	Raw           string   // Verbatim catalogue JSON
}

// CatalogueGateway resolves entity ids against the catalogue service.
type CatalogueGateway interface {
	// Resolve returns the catalogue record of entityID.
	// Returns an error with ErrCodeNotFound when the catalogue has no such entity.
	Resolve(ctx context.Context, entityID string) (CatalogueItem, error)
}
