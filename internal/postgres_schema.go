package internal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/catalogue"
)

type schemaExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SchemaStatements returns the CREATE TABLE statements for the catalogue
// tables, parents first.
func SchemaStatements(tables catalogue.TableNames) []string {
	q := func(name string) string { return sanitizeIdentifier(name) }
	ddls := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id                BIGSERIAL PRIMARY KEY,
		name              VARCHAR(128) NOT NULL,
		slug              VARCHAR(128) NOT NULL,
		requires_shipping BOOLEAN NOT NULL DEFAULT TRUE,
		track_stock       BOOLEAN NOT NULL DEFAULT TRUE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, q(tables.ProductTypes)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id              BIGSERIAL PRIMARY KEY,
		name            VARCHAR(255) NOT NULL,
		upc             VARCHAR(64) UNIQUE,
		description     TEXT NOT NULL DEFAULT '',
		image           TEXT NOT NULL DEFAULT '',
		parent_id       BIGINT REFERENCES %s (id) ON DELETE CASCADE,
		product_type_id BIGINT REFERENCES %s (id) ON DELETE RESTRICT,
		rating          DOUBLE PRECISION,
		is_discountable BOOLEAN NOT NULL DEFAULT TRUE,
		contains_hazmat BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, q(tables.Products), q(tables.Products), q(tables.ProductTypes)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id          BIGSERIAL PRIMARY KEY,
		path        VARCHAR(255) NOT NULL UNIQUE,
		depth       INTEGER NOT NULL,
		numchild    INTEGER NOT NULL DEFAULT 0,
		name        VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		slug        VARCHAR(255) NOT NULL,
		image       TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, q(tables.Categories)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		product_id  BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
		category_id BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
		PRIMARY KEY (product_id, category_id)
	)`, q(tables.ProductCategories), q(tables.Products), q(tables.Categories)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id         BIGSERIAL PRIMARY KEY,
		name       VARCHAR(128) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, q(tables.OptionGroups)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id         BIGSERIAL PRIMARY KEY,
		group_id   BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
		option     VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (group_id, option)
	)`, q(tables.Options), q(tables.OptionGroups)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id              BIGSERIAL PRIMARY KEY,
		product_type_id BIGINT REFERENCES %s (id) ON DELETE CASCADE,
		name            VARCHAR(128) NOT NULL,
		code            VARCHAR(128) NOT NULL,
		type            VARCHAR(20) NOT NULL,
		required        BOOLEAN NOT NULL DEFAULT FALSE,
		option_group_id BIGINT REFERENCES %s (id) ON DELETE RESTRICT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (product_type_id, code)
	)`, q(tables.Attributes), q(tables.ProductTypes), q(tables.OptionGroups)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id                BIGSERIAL PRIMARY KEY,
		attribute_id      BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
		product_id        BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
		value_text        TEXT,
		value_integer     BIGINT,
		value_boolean     BOOLEAN,
		value_float       DOUBLE PRECISION,
		value_richtext    TEXT,
		value_date        DATE,
		value_datetime    TIMESTAMPTZ,
		value_file        JSONB,
		value_image       JSONB,
		value_option_id   BIGINT REFERENCES %s (id) ON DELETE RESTRICT,
		value_entity_type VARCHAR(64),
		value_entity_id   BIGINT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (attribute_id, product_id)
	)`, q(tables.Values), q(tables.Attributes), q(tables.Products), q(tables.Options)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		value_id  BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
		option_id BIGINT NOT NULL REFERENCES %s (id) ON DELETE RESTRICT,
		PRIMARY KEY (value_id, option_id)
	)`, q(tables.ValueMultiOptions), q(tables.Values), q(tables.Options)),
	}

	return append(ddls, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (product_id)`,
		sanitizeIdentifier(tables.Values+"_product_idx"), q(tables.Values)))
}

// EnsureSchema creates any missing catalogue table.
func EnsureSchema(ctx context.Context, db schemaExecer, tables catalogue.TableNames) error {
	for _, stmt := range SchemaStatements(tables) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure catalogue schema: %w", err)
		}
	}
	return nil
}
