package internal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/catalogue"
	"go.uber.org/zap"
)

// PostgresCatalogueStore implements the option, attribute, product and
// category stores over pgx.
type PostgresCatalogueStore struct {
	pool    pgPool
	tables  catalogue.TableNames
	nowFunc func() time.Time
}

func NewPostgresCatalogueStore(pool pgPool, tables catalogue.TableNames) (*PostgresCatalogueStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	for _, name := range tables.All() {
		if name == "" {
			return nil, fmt.Errorf("table names cannot be empty")
		}
	}
	return &PostgresCatalogueStore{pool: pool, tables: tables, nowFunc: time.Now}, nil
}

func (s *PostgresCatalogueStore) now() time.Time {
	if s.nowFunc == nil {
		return time.Now().UTC()
	}
	return s.nowFunc().UTC()
}

func (s *PostgresCatalogueStore) table(name string) string { return sanitizeIdentifier(name) }

// ---- option groups and options ----

func (s *PostgresCatalogueStore) CreateGroup(ctx context.Context, name string) (*catalogue.AttributeOptionGroup, error) {
	if strings.TrimSpace(name) == "" {
		return nil, catalogue.NewValidationError("name", "name is required")
	}
	now := s.now()
	group := &catalogue.AttributeOptionGroup{Name: name, Auditable: catalogue.Auditable{CreatedAt: now, UpdatedAt: now}}
	query := fmt.Sprintf(`INSERT INTO %s (name, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id`,
		s.table(s.tables.OptionGroups))
	if err := s.pool.QueryRow(ctx, query, name, now, now).Scan(&group.ID); err != nil {
		return nil, fmt.Errorf("insert option group: %w", err)
	}
	return group, nil
}

func (s *PostgresCatalogueStore) GetGroup(ctx context.Context, id int64) (*catalogue.AttributeOptionGroup, error) {
	query := fmt.Sprintf(`SELECT id, name, created_at, updated_at FROM %s WHERE id = $1`,
		s.table(s.tables.OptionGroups))
	var g catalogue.AttributeOptionGroup
	if err := s.pool.QueryRow(ctx, query, id).Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, notFoundOr(err, catalogue.NewOptionGroupNotFoundError(id))
	}
	return &g, nil
}

// DeleteGroup removes the group and its options. A group referenced by an
// attribute, or whose options are referenced by values, is in use.
func (s *PostgresCatalogueStore) DeleteGroup(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table(s.tables.OptionGroups))
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return constraintError(err, catalogue.ErrCodeInUse, fmt.Sprintf("option group %d is in use", id))
	}
	if tag.RowsAffected() == 0 {
		return catalogue.NewOptionGroupNotFoundError(id)
	}
	return nil
}

func duplicateOptionOr(err error, groupID int64, text string) error {
	if pgErrorCode(err) == pgUniqueViolation {
		return catalogue.NewConstraintViolationError(catalogue.ErrCodeDuplicateOption,
			fmt.Sprintf("option %q already exists in group %d", text, groupID)).WithCause(err)
	}
	return err
}

func (s *PostgresCatalogueStore) AddOption(ctx context.Context, groupID int64, option string) (*catalogue.AttributeOption, error) {
	if strings.TrimSpace(option) == "" {
		return nil, catalogue.NewValidationError("option", "option is required")
	}
	now := s.now()
	o := &catalogue.AttributeOption{GroupID: groupID, Option: option, Auditable: catalogue.Auditable{CreatedAt: now, UpdatedAt: now}}
	query := fmt.Sprintf(`INSERT INTO %s (group_id, option, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		s.table(s.tables.Options))
	if err := s.pool.QueryRow(ctx, query, groupID, option, now, now).Scan(&o.ID); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, catalogue.NewOptionGroupNotFoundError(groupID)
		}
		return nil, duplicateOptionOr(err, groupID, option)
	}
	return o, nil
}

func (s *PostgresCatalogueStore) RenameOption(ctx context.Context, optionID int64, option string) (*catalogue.AttributeOption, error) {
	if strings.TrimSpace(option) == "" {
		return nil, catalogue.NewValidationError("option", "option is required")
	}
	query := fmt.Sprintf(`UPDATE %s SET option = $1, updated_at = $2 WHERE id = $3
		RETURNING id, group_id, option, created_at, updated_at`, s.table(s.tables.Options))
	var o catalogue.AttributeOption
	err := s.pool.QueryRow(ctx, query, option, s.now(), optionID).
		Scan(&o.ID, &o.GroupID, &o.Option, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		err = notFoundOr(err, catalogue.NewNotFoundError(catalogue.ErrCodeOptionNotFound,
			fmt.Sprintf("option %d not found", optionID)))
		return nil, duplicateOptionOr(err, 0, option)
	}
	return &o, nil
}

func (s *PostgresCatalogueStore) DeleteOption(ctx context.Context, optionID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table(s.tables.Options))
	tag, err := s.pool.Exec(ctx, query, optionID)
	if err != nil {
		return constraintError(err, catalogue.ErrCodeInUse, fmt.Sprintf("option %d is referenced by a value", optionID))
	}
	if tag.RowsAffected() == 0 {
		return catalogue.NewNotFoundError(catalogue.ErrCodeOptionNotFound, fmt.Sprintf("option %d not found", optionID))
	}
	return nil
}

func scanOptions(rows pgx.Rows) ([]catalogue.AttributeOption, error) {
	defer rows.Close()
	out := make([]catalogue.AttributeOption, 0)
	for rows.Next() {
		var o catalogue.AttributeOption
		if err := rows.Scan(&o.ID, &o.GroupID, &o.Option, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListOptions returns the options of a group ordered by id.
func (s *PostgresCatalogueStore) ListOptions(ctx context.Context, groupID int64) ([]catalogue.AttributeOption, error) {
	query := fmt.Sprintf(`SELECT id, group_id, option, created_at, updated_at FROM %s WHERE group_id = $1 ORDER BY id`,
		s.table(s.tables.Options))
	rows, err := s.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	options, err := scanOptions(rows)
	if err != nil {
		return nil, err
	}
	if len(options) == 0 {
		// an empty list and a missing group look the same
		if _, err := s.GetGroup(ctx, groupID); err != nil {
			return nil, err
		}
	}
	return options, nil
}

func (s *PostgresCatalogueStore) FindOption(ctx context.Context, groupID int64, option string) (*catalogue.AttributeOption, error) {
	query := fmt.Sprintf(`SELECT id, group_id, option, created_at, updated_at FROM %s WHERE group_id = $1 AND option = $2`,
		s.table(s.tables.Options))
	var o catalogue.AttributeOption
	err := s.pool.QueryRow(ctx, query, groupID, option).Scan(&o.ID, &o.GroupID, &o.Option, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, catalogue.NewOptionNotFoundError(groupID, option))
	}
	return &o, nil
}

// ---- attributes ----

const attributeColumns = `id, product_type_id, name, code, type, required, option_group_id, created_at, updated_at`

func scanAttribute(row pgx.Row) (*catalogue.ProductAttribute, error) {
	var (
		attr     catalogue.ProductAttribute
		attrType string
	)
	if err := row.Scan(&attr.ID, &attr.ProductTypeID, &attr.Name, &attr.Code, &attrType, &attr.Required,
		&attr.OptionGroupID, &attr.CreatedAt, &attr.UpdatedAt); err != nil {
		return nil, err
	}
	attr.Type = catalogue.AttributeType(attrType)
	return &attr, nil
}

func (s *PostgresCatalogueStore) CreateAttribute(ctx context.Context, attr *catalogue.ProductAttribute) error {
	now := s.now()
	query := fmt.Sprintf(`INSERT INTO %s (product_type_id, name, code, type, required, option_group_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`, s.table(s.tables.Attributes))
	err := s.pool.QueryRow(ctx, query,
		nullableInt64(attr.ProductTypeID), attr.Name, attr.Code, string(attr.Type), attr.Required,
		nullableInt64(attr.OptionGroupID), now, now).Scan(&attr.ID)
	if err != nil {
		return constraintError(err, catalogue.ErrCodeConstraintFailed,
			fmt.Sprintf("attribute code %s already exists for this product type", attr.Code))
	}
	attr.CreatedAt = now
	attr.UpdatedAt = now
	zap.S().Debugw("created attribute", "id", attr.ID, "code", attr.Code, "type", attr.Type)
	return nil
}

func (s *PostgresCatalogueStore) GetAttribute(ctx context.Context, id int64) (*catalogue.ProductAttribute, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, attributeColumns, s.table(s.tables.Attributes))
	attr, err := scanAttribute(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, attributeNotFound(id))
	}
	return attr, nil
}

func (s *PostgresCatalogueStore) ListAttributes(ctx context.Context, productTypeID int64) ([]*catalogue.ProductAttribute, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE product_type_id = $1 ORDER BY code`,
		attributeColumns, s.table(s.tables.Attributes))
	rows, err := s.pool.Query(ctx, query, productTypeID)
	if err != nil {
		return nil, fmt.Errorf("query attributes: %w", err)
	}
	defer rows.Close()
	out := make([]*catalogue.ProductAttribute, 0)
	for rows.Next() {
		attr, err := scanAttribute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		out = append(out, attr)
	}
	return out, rows.Err()
}

// DeleteAttribute removes the attribute. Its values go with it.
func (s *PostgresCatalogueStore) DeleteAttribute(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table(s.tables.Attributes)), id)
	if err != nil {
		return fmt.Errorf("delete attribute %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return attributeNotFound(id)
	}
	return nil
}

// ---- product types and products ----

func (s *PostgresCatalogueStore) CreateProductType(ctx context.Context, productType *catalogue.ProductType) error {
	now := s.now()
	query := fmt.Sprintf(`INSERT INTO %s (name, slug, requires_shipping, track_stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`, s.table(s.tables.ProductTypes))
	if err := s.pool.QueryRow(ctx, query, productType.Name, productType.Slug, productType.RequiresShipping,
		productType.TrackStock, now, now).Scan(&productType.ID); err != nil {
		return fmt.Errorf("insert product type: %w", err)
	}
	productType.CreatedAt = now
	productType.UpdatedAt = now
	return nil
}

func (s *PostgresCatalogueStore) GetProductType(ctx context.Context, id int64) (*catalogue.ProductType, error) {
	query := fmt.Sprintf(`SELECT id, name, slug, requires_shipping, track_stock, created_at, updated_at FROM %s WHERE id = $1`,
		s.table(s.tables.ProductTypes))
	var pt catalogue.ProductType
	err := s.pool.QueryRow(ctx, query, id).
		Scan(&pt.ID, &pt.Name, &pt.Slug, &pt.RequiresShipping, &pt.TrackStock, &pt.CreatedAt, &pt.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, productTypeNotFound(id))
	}
	return &pt, nil
}

func (s *PostgresCatalogueStore) HasAttributes(ctx context.Context, productTypeID int64) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE product_type_id = $1)`, s.table(s.tables.Attributes))
	var exists bool
	if err := s.pool.QueryRow(ctx, query, productTypeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check attributes of product type %d: %w", productTypeID, err)
	}
	return exists, nil
}

func (s *PostgresCatalogueStore) CreateProduct(ctx context.Context, product *catalogue.Product) error {
	now := s.now()
	var productTypeID any
	if product.ProductTypeID != 0 {
		productTypeID = product.ProductTypeID
	}
	query := fmt.Sprintf(`INSERT INTO %s (name, upc, description, image, parent_id, product_type_id, rating,
		is_discountable, contains_hazmat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`, s.table(s.tables.Products))
	err := s.pool.QueryRow(ctx, query,
		product.Name, nullableString(product.UPC), product.Description, product.Image,
		nullableInt64(product.ParentID), productTypeID, product.Rating,
		product.IsDiscountable, product.ContainsHazmat, now, now).Scan(&product.ID)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return catalogue.NewConstraintViolationError(catalogue.ErrCodeDuplicateProduct,
				fmt.Sprintf("a product with UPC %s already exists", product.UPC)).WithCause(err)
		case pgForeignKeyViolation:
			return catalogue.NewConstraintViolationError(catalogue.ErrCodeConstraintFailed,
				"product references a missing parent or product type").WithCause(err)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return nil
}

func (s *PostgresCatalogueStore) GetProduct(ctx context.Context, id int64) (*catalogue.Product, error) {
	query := fmt.Sprintf(`SELECT id, name, COALESCE(upc, ''), description, image, parent_id,
		COALESCE(product_type_id, 0), rating, is_discountable, contains_hazmat, created_at, updated_at
		FROM %s WHERE id = $1`, s.table(s.tables.Products))
	var p catalogue.Product
	err := s.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.UPC, &p.Description, &p.Image, &p.ParentID,
		&p.ProductTypeID, &p.Rating, &p.IsDiscountable, &p.ContainsHazmat, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, productNotFound(id))
	}
	return &p, nil
}

func (s *PostgresCatalogueStore) ChildProductIDs(ctx context.Context, parentID int64) ([]int64, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE parent_id = $1 ORDER BY id`, s.table(s.tables.Products))
	rows, err := s.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("query children of product %d: %w", parentID, err)
	}
	defer rows.Close()
	out := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteProduct relies on ON DELETE CASCADE for child products, values and
// category links.
func (s *PostgresCatalogueStore) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table(s.tables.Products)), id)
	if err != nil {
		return constraintError(err, catalogue.ErrCodeInUse, fmt.Sprintf("product %d is in use", id))
	}
	if tag.RowsAffected() == 0 {
		return productNotFound(id)
	}
	return nil
}

func (s *PostgresCatalogueStore) AddProductCategory(ctx context.Context, productID, categoryID int64) error {
	query := fmt.Sprintf(`INSERT INTO %s (product_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		s.table(s.tables.ProductCategories))
	if _, err := s.pool.Exec(ctx, query, productID, categoryID); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return catalogue.NewNotFoundError(catalogue.ErrCodeNotFound,
				fmt.Sprintf("product %d or category %d not found", productID, categoryID))
		}
		return fmt.Errorf("link product %d to category %d: %w", productID, categoryID, err)
	}
	return nil
}

func (s *PostgresCatalogueStore) ProductCategories(ctx context.Context, productID int64) ([]*catalogue.Category, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s c JOIN %s pc ON pc.category_id = c.id
		WHERE pc.product_id = $1 ORDER BY c.path`,
		categoryColumns("c"), s.table(s.tables.Categories), s.table(s.tables.ProductCategories))
	return s.queryCategories(ctx, query, productID)
}
