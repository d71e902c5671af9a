package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/lychee-technology/catalogue"
	"go.uber.org/zap"
)

// Stores groups the relational stores an attribute manager works against.
type Stores struct {
	Attributes catalogue.AttributeStore
	Options    catalogue.OptionStore
	Values     catalogue.ValueStore
	Products   catalogue.ProductStore
}

func (s Stores) validate() error {
	if s.Attributes == nil {
		return fmt.Errorf("attribute store is required")
	}
	if s.Options == nil {
		return fmt.Errorf("option store is required")
	}
	if s.Values == nil {
		return fmt.Errorf("value store is required")
	}
	if s.Products == nil {
		return fmt.Errorf("product store is required")
	}
	return nil
}

type attributeManager struct {
	stores    Stores
	files     catalogue.FileStore
	entities  catalogue.EntityResolver
	validator *attributeValidator
	reserved  catalogue.ReservedIdentifiers
	tx        catalogue.TransactionConfig
	keyPrefix string
}

// NewAttributeManager creates a new AttributeManager instance. files and
// entities may be nil; file and entity attributes then fail at write time.
func NewAttributeManager(
	stores Stores,
	files catalogue.FileStore,
	entities catalogue.EntityResolver,
	config *catalogue.Config,
) (catalogue.AttributeManager, error) {
	if err := stores.validate(); err != nil {
		return nil, err
	}
	if config == nil {
		config = catalogue.DefaultConfig()
	}
	return &attributeManager{
		stores:    stores,
		files:     files,
		entities:  entities,
		validator: newAttributeValidator(stores.Options, entities),
		reserved:  config.Attributes.Reserved(),
		tx:        config.Transaction,
		keyPrefix: config.Storage.Prefix,
	}, nil
}

// DefineAttribute validates and stores a new attribute definition.
func (m *attributeManager) DefineAttribute(ctx context.Context, attr *catalogue.ProductAttribute) (*catalogue.ProductAttribute, error) {
	if attr == nil {
		return nil, fmt.Errorf("attribute cannot be nil")
	}
	if strings.TrimSpace(attr.Name) == "" {
		return nil, catalogue.NewValidationError("name", "name is required")
	}
	if err := catalogue.ValidateCode(attr.Code, m.reserved); err != nil {
		return nil, err
	}
	if !attr.Type.Valid() {
		return nil, catalogue.NewValidationError("type", fmt.Sprintf("unknown attribute type %q", attr.Type))
	}

	hasGroup := attr.OptionGroupID != nil && *attr.OptionGroupID != 0
	switch {
	case attr.UsesOptionGroup() && !hasGroup:
		err := catalogue.NewValidationError("option_group",
			fmt.Sprintf("an option group is required for %s attributes", attr.Type.Label()))
		err.Code = catalogue.ErrCodeOptionGroupRequired
		return nil, err
	case !attr.UsesOptionGroup() && hasGroup:
		return nil, catalogue.NewValidationError("option_group",
			"an option group is only allowed for option and multi option attributes")
	case hasGroup:
		if _, err := m.stores.Options.GetGroup(ctx, *attr.OptionGroupID); err != nil {
			return nil, err
		}
	}

	if attr.ProductTypeID != nil {
		if _, err := m.stores.Products.GetProductType(ctx, *attr.ProductTypeID); err != nil {
			return nil, err
		}
	}

	if err := m.stores.Attributes.CreateAttribute(ctx, attr); err != nil {
		return nil, fmt.Errorf("failed to create attribute %s: %w", attr.Code, err)
	}
	zap.S().Debugw("defined attribute", "code", attr.Code, "type", attr.Type, "id", attr.ID)
	return attr, nil
}

func (m *attributeManager) GetAttribute(ctx context.Context, id int64) (*catalogue.ProductAttribute, error) {
	return m.stores.Attributes.GetAttribute(ctx, id)
}

func (m *attributeManager) AttributesForType(ctx context.Context, productTypeID int64) ([]*catalogue.ProductAttribute, error) {
	return m.stores.Attributes.ListAttributes(ctx, productTypeID)
}

func (m *attributeManager) OptionSummary(ctx context.Context, groupID int64) (string, error) {
	options, err := m.stores.Options.ListOptions(ctx, groupID)
	if err != nil {
		return "", err
	}
	texts := make([]string, 0, len(options))
	for _, o := range options {
		texts = append(texts, o.Option)
	}
	return strings.Join(texts, ", "), nil
}

func (m *attributeManager) ValidateValue(ctx context.Context, attr *catalogue.ProductAttribute, value any) error {
	return m.validator.Validate(ctx, attr, value)
}

// GetValue returns the stored value of attr for product, or a NotFound
// error when the product has none.
func (m *attributeManager) GetValue(ctx context.Context, attr *catalogue.ProductAttribute, product *catalogue.Product) (*catalogue.ProductAttributeValue, error) {
	if attr == nil || product == nil {
		return nil, fmt.Errorf("attribute and product are required")
	}
	var record *catalogue.ProductAttributeValue
	err := m.stores.Values.WithinTx(ctx, func(ctx context.Context, tx catalogue.ValueTx) error {
		var err error
		record, err = tx.GetValue(ctx, attr, product.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	record.Value = slotValue(attr, record)
	return record, nil
}

// SetValue assigns value to record in memory. Option strings are resolved
// within the attribute's group; nothing is persisted.
func (m *attributeManager) SetValue(ctx context.Context, attr *catalogue.ProductAttribute, record *catalogue.ProductAttributeValue, value any) error {
	if attr == nil || record == nil {
		return fmt.Errorf("attribute and record are required")
	}
	if value == nil {
		record.Value = nil
		return nil
	}
	resolved, err := m.resolveOptions(ctx, attr, value)
	if err != nil {
		return err
	}
	converted, err := toValue(attr, resolved)
	if err != nil {
		return err
	}
	record.AttributeID = attr.ID
	record.Value = converted
	return nil
}

func (m *attributeManager) ProductValues(ctx context.Context, productID int64) ([]*catalogue.ProductAttributeValue, error) {
	return m.stores.Values.ListProductValues(ctx, productID)
}

// resolveOptions turns option texts into the group's options for option and
// multi option attributes. Other values pass through unchanged.
func (m *attributeManager) resolveOptions(ctx context.Context, attr *catalogue.ProductAttribute, value any) (any, error) {
	switch attr.Type {
	case catalogue.AttributeTypeOption:
		text, ok := value.(string)
		if !ok {
			return value, nil
		}
		groupID, err := optionGroupOf(attr)
		if err != nil {
			return nil, err
		}
		option, err := m.stores.Options.FindOption(ctx, groupID, text)
		if err != nil {
			return nil, err
		}
		return *option, nil
	case catalogue.AttributeTypeMultiOption:
		return m.resolveOptionList(ctx, attr, value)
	}
	return value, nil
}

func (m *attributeManager) resolveOptionList(ctx context.Context, attr *catalogue.ProductAttribute, value any) (any, error) {
	items, ok := materializeList(value)
	if !ok {
		return value, nil
	}

	hasText := false
	for _, item := range items {
		if _, ok := item.(string); ok {
			hasText = true
			break
		}
	}
	if !hasText {
		return items, nil
	}

	groupID, err := optionGroupOf(attr)
	if err != nil {
		return nil, err
	}
	options, err := m.stores.Options.ListOptions(ctx, groupID)
	if err != nil {
		return nil, err
	}
	byText := make(map[string]catalogue.AttributeOption, len(options))
	for _, o := range options {
		byText[o.Option] = o
	}

	resolved := make([]any, 0, len(items))
	for _, item := range items {
		text, ok := item.(string)
		if !ok {
			resolved = append(resolved, item)
			continue
		}
		option, found := byText[text]
		if !found {
			return nil, catalogue.NewOptionNotFoundError(groupID, text)
		}
		resolved = append(resolved, option)
	}
	return resolved, nil
}
