package internal

import (
	"context"

	"github.com/lychee-technology/catalogue"
)

// entitySource is a store holding the built-in entity records.
type entitySource interface {
	GetProduct(ctx context.Context, id int64) (*catalogue.Product, error)
	GetProductType(ctx context.Context, id int64) (*catalogue.ProductType, error)
	GetCategory(ctx context.Context, id int64) (*catalogue.Category, error)
}

// registerEntities installs loaders for products, product types and
// categories read from src.
func registerEntities(registry *EntityRegistry, src entitySource) error {
	loaders := map[string]EntityLoader{
		catalogue.EntityTypeProduct: func(ctx context.Context, id int64) (catalogue.Entity, error) {
			p, err := src.GetProduct(ctx, id)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		catalogue.EntityTypeProductType: func(ctx context.Context, id int64) (catalogue.Entity, error) {
			pt, err := src.GetProductType(ctx, id)
			if err != nil {
				return nil, err
			}
			return pt, nil
		},
		catalogue.EntityTypeCategory: func(ctx context.Context, id int64) (catalogue.Entity, error) {
			c, err := src.GetCategory(ctx, id)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
	for tag, loader := range loaders {
		if err := registry.Register(tag, loader); err != nil {
			return err
		}
	}
	return nil
}

// RegisterPostgresEntities installs the built-in entity loaders backed by
// the Postgres catalogue store.
func RegisterPostgresEntities(registry *EntityRegistry, store *PostgresCatalogueStore) error {
	return registerEntities(registry, store)
}
