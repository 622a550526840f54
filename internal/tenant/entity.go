package tenant

import (
	"errors"
	"fmt"

	storedomain "github.com/smallbiznis/tillway/internal/store/domain"
)

// Entity names one sharded, per-store collection family. Unified entities
// (warehouses, payments, merchants, store accounts, the points ledger) never
// appear here; they live in single global tables filtered by store_id.
type Entity string

const (
	EntityProducts         Entity = "products"
	EntitySales            Entity = "sales"
	EntityCustomers        Entity = "customers"
	EntityBrands           Entity = "brands"
	EntityCategories       Entity = "categories"
	EntityUnits            Entity = "units"
	EntitySettings         Entity = "settings"
	EntityCustomerPayments Entity = "customer_payments"
)

// maxCollectionName caps the full collection name after the entity suffix
// is appended.
const maxCollectionName = 255

var (
	ErrStoreIDRequired       = errors.New("store_id_required")
	ErrUnknownEntity         = errors.New("unknown_entity")
	ErrInvalidPrefix         = errors.New("invalid_prefix")
	ErrCollectionNameTooLong = errors.New("collection_name_too_long")
)

// CollectionName builds the physical collection name for a store prefix and
// entity, e.g. ("acme", EntityProducts) -> "acme_products".
func CollectionName(prefix string, entity Entity) (string, error) {
	if !storedomain.ValidPrefix(prefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	name := fmt.Sprintf("%s_%s", prefix, entity)
	if len(name) > maxCollectionName {
		return "", fmt.Errorf("%w: %d chars", ErrCollectionNameTooLong, len(name))
	}
	return name, nil
}

// Schema binds an entity to the prototype used to provision and query its
// per-store collections. Domain packages contribute schemas through the
// "tenant.schemas" fx group.
type Schema struct {
	Entity    Entity
	Prototype func() any
}
