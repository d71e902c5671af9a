package catalogue

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// AttributeType is the data type of a product attribute. It selects the
// validator, the storage slot and the rendering used for its values.
type AttributeType string

const (
	AttributeTypeText        AttributeType = "text"
	AttributeTypeInteger     AttributeType = "integer"
	AttributeTypeBoolean     AttributeType = "boolean"
	AttributeTypeFloat       AttributeType = "float"
	AttributeTypeRichText    AttributeType = "richtext"
	AttributeTypeDate        AttributeType = "date"
	AttributeTypeDateTime    AttributeType = "datetime"
	AttributeTypeOption      AttributeType = "option"
	AttributeTypeMultiOption AttributeType = "multi_option"
	AttributeTypeEntity      AttributeType = "entity"
	AttributeTypeFile        AttributeType = "file"
	AttributeTypeImage       AttributeType = "image"
)

var attributeTypes = []AttributeType{
	AttributeTypeText,
	AttributeTypeInteger,
	AttributeTypeBoolean,
	AttributeTypeFloat,
	AttributeTypeRichText,
	AttributeTypeDate,
	AttributeTypeDateTime,
	AttributeTypeOption,
	AttributeTypeMultiOption,
	AttributeTypeEntity,
	AttributeTypeFile,
	AttributeTypeImage,
}

// AttributeTypes returns every supported attribute type in declaration order.
func AttributeTypes() []AttributeType {
	out := make([]AttributeType, len(attributeTypes))
	copy(out, attributeTypes)
	return out
}

// ParseAttributeType converts a raw string into an AttributeType.
func ParseAttributeType(s string) (AttributeType, error) {
	candidate := AttributeType(strings.ToLower(strings.TrimSpace(s)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", NewValidationError("type", fmt.Sprintf("unknown attribute type %q", s))
}

// Valid reports whether t is one of the supported attribute types.
func (t AttributeType) Valid() bool {
	for _, known := range attributeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Label is the human readable name used in admin listings.
func (t AttributeType) Label() string {
	switch t {
	case AttributeTypeBoolean:
		return "True / False"
	case AttributeTypeRichText:
		return "Rich Text"
	case AttributeTypeDateTime:
		return "Datetime"
	case AttributeTypeMultiOption:
		return "Multi Option"
	case "":
		return ""
	default:
		s := string(t)
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

// Auditable carries the created/updated timestamps every record has.
type Auditable struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AttributeOptionGroup is a named closed vocabulary for option attributes,
// e.g. "Language".
type AttributeOptionGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Auditable
}

func (g AttributeOptionGroup) String() string { return g.Name }

// AttributeOption is one choice inside an AttributeOptionGroup.
// (GroupID, Option) is unique.
type AttributeOption struct {
	ID      int64  `json:"id"`
	GroupID int64  `json:"groupId"`
	Option  string `json:"option"`
	Auditable
}

func (o AttributeOption) String() string { return o.Option }

// Persisted reports whether the option has been stored and has an identity.
func (o AttributeOption) Persisted() bool { return o.ID != 0 }

// ProductAttribute defines an attribute for a product type, for example
// number_of_pages for books.
type ProductAttribute struct {
	ID            int64         `json:"id"`
	ProductTypeID *int64        `json:"productTypeId,omitempty"`
	Name          string        `json:"name"`
	Code          string        `json:"code"`
	Type          AttributeType `json:"type"`
	Required      bool          `json:"required"`
	OptionGroupID *int64        `json:"optionGroupId,omitempty"`
	Auditable
}

func (a ProductAttribute) String() string { return a.Name }

func (a ProductAttribute) IsOption() bool { return a.Type == AttributeTypeOption }

func (a ProductAttribute) IsMultiOption() bool { return a.Type == AttributeTypeMultiOption }

// IsFile reports whether values are file handles (file and image types).
func (a ProductAttribute) IsFile() bool {
	return a.Type == AttributeTypeFile || a.Type == AttributeTypeImage
}

// UsesOptionGroup reports whether the attribute type needs an option group.
func (a ProductAttribute) UsesOptionGroup() bool {
	return a.IsOption() || a.IsMultiOption()
}

// ProductAttributeValue holds the value of one attribute for one product.
// A row exists only while a non-empty value is assigned.
type ProductAttributeValue struct {
	ID          int64 `json:"id"`
	AttributeID int64 `json:"attributeId"`
	ProductID   int64 `json:"productId"`
	Value       Value `json:"-"`
	Auditable
}

// Persisted reports whether the row exists in the store.
func (v *ProductAttributeValue) Persisted() bool { return v != nil && v.ID != 0 }

// Product is a carrier of attribute values.
type Product struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	UPC            string   `json:"upc"`
	Description    string   `json:"description,omitempty"`
	Image          string   `json:"image,omitempty"`
	ParentID       *int64   `json:"parentId,omitempty"`
	ProductTypeID  int64    `json:"productTypeId"`
	Rating         *float64 `json:"rating,omitempty"`
	IsDiscountable bool     `json:"isDiscountable"`
	ContainsHazmat bool     `json:"containsHazmat"`
	Auditable
}

func (p Product) String() string {
	return fmt.Sprintf("Product (id:%d): %s", p.ID, p.Name)
}

func (p Product) EntityRef() EntityRef { return EntityRef{Tag: EntityTypeProduct, ID: p.ID} }

// ProductType groups products sharing a set of attributes, e.g. Books or Toys.
type ProductType struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Slug             string `json:"slug"`
	RequiresShipping bool   `json:"requiresShipping"`
	TrackStock       bool   `json:"trackStock"`
	Auditable
}

func (t ProductType) String() string { return t.Name }

func (t ProductType) EntityRef() EntityRef { return EntityRef{Tag: EntityTypeProductType, ID: t.ID} }

// Category is a navigational product category stored as a materialized-path
// tree node.
type Category struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Depth       int    `json:"depth"`
	NumChild    int    `json:"numchild"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Slug        string `json:"slug"`
	Image       string `json:"image,omitempty"`
	Auditable
}

func (c Category) EntityRef() EntityRef { return EntityRef{Tag: EntityTypeCategory, ID: c.ID} }

func (c Category) String() string { return c.Name }

// Built-in entity type tags.
const (
	EntityTypeProduct     = "product"
	EntityTypeProductType = "product_type"
	EntityTypeCategory    = "category"
)

// EntityRef is a polymorphic reference to a stored record: a type tag plus
// the record's id.
type EntityRef struct {
	Tag string `json:"type"`
	ID  int64  `json:"id"`
}

func (r EntityRef) String() string { return fmt.Sprintf("%s:%d", r.Tag, r.ID) }

// IsZero reports whether the reference is unset.
func (r EntityRef) IsZero() bool { return r.Tag == "" && r.ID == 0 }

// Entity is any stored record an entity attribute can point to.
type Entity interface {
	EntityRef() EntityRef
	String() string
}

// FileHandle is an uploaded file waiting to be persisted by a FileStore.
type FileHandle struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// StoredFile describes a file persisted by a FileStore.
type StoredFile struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size"`
	URL         string `json:"url,omitempty"`
}

// Date is a calendar date without time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// SaveResult tells what SaveValue did with the value row.
type SaveResult string

const (
	SaveResultNoop    SaveResult = "noop"
	SaveResultCreated SaveResult = "created"
	SaveResultUpdated SaveResult = "updated"
	SaveResultDeleted SaveResult = "deleted"
)
