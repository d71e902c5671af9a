package catalogue

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// AttributeManager provides validation, storage and rendering of product
// attribute values.
type AttributeManager interface {
	// Attribute definitions
	DefineAttribute(ctx context.Context, attr *ProductAttribute) (*ProductAttribute, error)
	GetAttribute(ctx context.Context, id int64) (*ProductAttribute, error)
	AttributesForType(ctx context.Context, productTypeID int64) ([]*ProductAttribute, error)
	// OptionSummary joins the option texts of a group with ", ".
	OptionSummary(ctx context.Context, groupID int64) (string, error)

	// Validation
	ValidateValue(ctx context.Context, attr *ProductAttribute, value any) error

	// Writes. SaveValue is the only way values reach the store.
	SaveValue(ctx context.Context, attr *ProductAttribute, product *Product, req WriteRequest) (SaveResult, error)
	SaveValues(ctx context.Context, product *Product, payload map[string]any) (map[string]SaveResult, error)
	DeleteProduct(ctx context.Context, productID int64) error

	// Reads
	GetValue(ctx context.Context, attr *ProductAttribute, product *Product) (*ProductAttributeValue, error)
	SetValue(ctx context.Context, attr *ProductAttribute, record *ProductAttributeValue, value any) error
	ProductValues(ctx context.Context, productID int64) ([]*ProductAttributeValue, error)
	ValueAsText(ctx context.Context, attr *ProductAttribute, record *ProductAttributeValue) (string, error)
	ValueAsHTML(ctx context.Context, attr *ProductAttribute, record *ProductAttributeValue) (string, error)
	Summary(ctx context.Context, attr *ProductAttribute, record *ProductAttributeValue) (string, error)

	// ProductTypeSchema describes the JSON accepted by SaveValues for a product type.
	ProductTypeSchema(ctx context.Context, productTypeID int64) (*jsonschema.Schema, error)
}

// ValueStore persists ProductAttributeValue rows.
type ValueStore interface {
	// WithinTx runs fn in a single store transaction. fn's error rolls back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx ValueTx) error) error
	// ListProductValues returns all values of a product with their slots
	// decoded by each attribute's declared type.
	ListProductValues(ctx context.Context, productID int64) ([]*ProductAttributeValue, error)
}

// ValueTx is the row-level access used inside a value transaction.
type ValueTx interface {
	// GetValue returns a NotFound error when no row exists.
	GetValue(ctx context.Context, attr *ProductAttribute, productID int64) (*ProductAttributeValue, error)
	// CreateValue returns a constraint violation if the pair already has a row.
	CreateValue(ctx context.Context, attr *ProductAttribute, value *ProductAttributeValue) error
	UpdateValue(ctx context.Context, attr *ProductAttribute, value *ProductAttributeValue) error
	DeleteValue(ctx context.Context, value *ProductAttributeValue) error
}

// OptionStore manages option groups and their options.
type OptionStore interface {
	CreateGroup(ctx context.Context, name string) (*AttributeOptionGroup, error)
	GetGroup(ctx context.Context, id int64) (*AttributeOptionGroup, error)
	// DeleteGroup refuses to delete a group still used by an attribute.
	DeleteGroup(ctx context.Context, id int64) error
	AddOption(ctx context.Context, groupID int64, option string) (*AttributeOption, error)
	RenameOption(ctx context.Context, optionID int64, option string) (*AttributeOption, error)
	// DeleteOption refuses to delete an option referenced by a value.
	DeleteOption(ctx context.Context, optionID int64) error
	ListOptions(ctx context.Context, groupID int64) ([]AttributeOption, error)
	FindOption(ctx context.Context, groupID int64, option string) (*AttributeOption, error)
}

// AttributeStore persists attribute definitions.
type AttributeStore interface {
	CreateAttribute(ctx context.Context, attr *ProductAttribute) error
	GetAttribute(ctx context.Context, id int64) (*ProductAttribute, error)
	// ListAttributes returns the attributes of a product type ordered by code.
	ListAttributes(ctx context.Context, productTypeID int64) ([]*ProductAttribute, error)
	DeleteAttribute(ctx context.Context, id int64) error
}

// ProductStore persists products and product types.
type ProductStore interface {
	CreateProductType(ctx context.Context, productType *ProductType) error
	GetProductType(ctx context.Context, id int64) (*ProductType, error)
	HasAttributes(ctx context.Context, productTypeID int64) (bool, error)
	CreateProduct(ctx context.Context, product *Product) error
	GetProduct(ctx context.Context, id int64) (*Product, error)
	// ChildProductIDs lists the direct children of a product.
	ChildProductIDs(ctx context.Context, parentID int64) ([]int64, error)
	// DeleteProduct removes the product and all of its attribute values.
	DeleteProduct(ctx context.Context, id int64) error
	AddProductCategory(ctx context.Context, productID, categoryID int64) error
	ProductCategories(ctx context.Context, productID int64) ([]*Category, error)
}

// FileStore persists uploaded files for file and image attributes.
type FileStore interface {
	Save(ctx context.Context, key string, file FileHandle) (StoredFile, error)
	Delete(ctx context.Context, key string) error
}

// EntityResolver loads the record an EntityRef points to. It returns a
// NotFound error for missing records and unknown type tags.
type EntityResolver interface {
	Resolve(ctx context.Context, ref EntityRef) (Entity, error)
}

// CategoryTree is the read side of the materialized-path tree library the
// catalogue delegates category maintenance to.
type CategoryTree interface {
	GetCategory(ctx context.Context, id int64) (*Category, error)
	// Ancestors returns the ancestors of c, root first.
	Ancestors(ctx context.Context, c *Category) ([]*Category, error)
	Children(ctx context.Context, c *Category) ([]*Category, error)
	Descendants(ctx context.Context, c *Category) ([]*Category, error)
	Siblings(ctx context.Context, c *Category) ([]*Category, error)
}

// CategoryStore adds node creation to CategoryTree. A nil parent adds a
// root node.
type CategoryStore interface {
	CategoryTree
	AddCategory(ctx context.Context, parent *Category, category *Category) error
}
