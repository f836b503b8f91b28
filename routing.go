package provisioner

import (
	"fmt"
	"strings"

	"github.com/datakaveri/dx-resource-server-sub001/model"
)

// ItemKind is the closed classification of a catalogue item for routing purposes.
type ItemKind int

const (
	// ItemKindOther is any item that is neither a Resource nor a ResourceGroup
	// (providers, resource servers). It routes like a group: it is its own exchange root.
	ItemKindOther ItemKind = iota

	// ItemKindResourceGroup is an exchange root.
	ItemKindResourceGroup

	// ItemKindResource belongs to exactly one resource group that owns its exchange.
	ItemKindResource
)

// String implements fmt.Stringer.
func (k ItemKind) String() string {
	switch k {
	case ItemKindResource:
		return "Resource"
	case ItemKindResourceGroup:
		return "ResourceGroup"
	default:
		return "Other"
	}
}

// knownItemTypes is the catalogue item-type vocabulary.
var knownItemTypes = map[string]ItemKind{
	"Resource":       ItemKindResource,
	"ResourceGroup":  ItemKindResourceGroup,
	"Provider":       ItemKindOther,
	"ResourceServer": ItemKindOther,
}

// RoutingTopology is where an entity lives on the broker. Derived on every call, never persisted.
type RoutingTopology struct {
	Kind         ItemKind
	ExchangeRoot string
	RoutingKey   string
}

// ItemType maps the topology kind onto the persisted item type.
func (t RoutingTopology) ItemType() model.ItemType {
	if t.Kind == ItemKindResource {
		return model.ItemTypeResource
	}
	return model.ItemTypeResourceGroup
}

// ClassifyItem intersects the declared type set with the known vocabulary.
// Namespaced types ("iudx:Resource") match on the part after the last colon.
// Resource wins over every other kind; an empty intersection is ItemKindOther.
func ClassifyItem(types []string) ItemKind {
	kind := ItemKindOther
	for _, t := range types {
		if i := strings.LastIndex(t, ":"); i >= 0 {
			t = t[i+1:]
		}
		k, ok := knownItemTypes[t]
		if !ok {
			continue
		}
		if k == ItemKindResource {
			return k
		}
		if k > kind {
			kind = k
		}
	}
	return kind
}

// ResolveTopology derives the exchange root and routing key of entityID from its catalogue item.
//
// A Resource routes through its group's exchange with key "{group}/.{entityID}".
// Anything else is its own exchange root with key "{id}/.*".
//
// Pure and deterministic; safe for concurrent use.
func ResolveTopology(item CatalogueItem, entityID string) (RoutingTopology, error) {
	if len(item.Types) == 0 {
		return RoutingTopology{}, NewError(ErrCodeInvalidCatalogueData,
			fmt.Sprintf("catalogue item %q declares no type", entityID))
	}

	kind := ClassifyItem(item.Types)
	if kind == ItemKindResource {
		if item.ResourceGroup == "" {
			return RoutingTopology{}, NewError(ErrCodeInvalidCatalogueData,
				fmt.Sprintf("resource %q has no resourceGroup", entityID))
		}
		return RoutingTopology{
			Kind:         kind,
			ExchangeRoot: item.ResourceGroup,
			RoutingKey:   item.ResourceGroup + "/." + entityID,
		}, nil
	}

	root := item.ID
	if root == "" {
		root = entityID
	}
	return RoutingTopology{
		Kind:         kind,
		ExchangeRoot: root,
		RoutingKey:   root + "/.*",
	}, nil
}
