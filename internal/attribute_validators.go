package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/lychee-technology/catalogue"
)

// attributeValidator checks raw values against an attribute's declared type.
// Option group and entity lookups are the only I/O it performs.
type attributeValidator struct {
	options  catalogue.OptionStore
	entities catalogue.EntityResolver
}

func newAttributeValidator(options catalogue.OptionStore, entities catalogue.EntityResolver) *attributeValidator {
	return &attributeValidator{options: options, entities: entities}
}

// Validate dispatches on the attribute type.
func (v *attributeValidator) Validate(ctx context.Context, attr *catalogue.ProductAttribute, value any) error {
	if attr == nil {
		return fmt.Errorf("attribute cannot be nil")
	}
	switch attr.Type {
	case catalogue.AttributeTypeText, catalogue.AttributeTypeRichText:
		if _, ok := asString(value); !ok {
			return invalidType(attr)
		}
	case catalogue.AttributeTypeFloat:
		if _, ok := asFloat(value); !ok {
			return invalidType(attr)
		}
	case catalogue.AttributeTypeInteger:
		if _, ok := asInteger(value); !ok {
			return invalidType(attr)
		}
	case catalogue.AttributeTypeDate:
		if _, ok := asDate(value); !ok {
			return invalidType(attr)
		}
	case catalogue.AttributeTypeDateTime:
		if _, ok := asDateTime(value); !ok {
			return invalidType(attr)
		}
	case catalogue.AttributeTypeBoolean:
		if _, ok := asBool(value); !ok {
			return invalidType(attr)
		}
	case catalogue.AttributeTypeEntity:
		return v.validateEntity(ctx, attr, value)
	case catalogue.AttributeTypeMultiOption:
		return v.validateMultiOption(ctx, attr, value)
	case catalogue.AttributeTypeOption:
		valid, err := v.validOptions(ctx, attr)
		if err != nil {
			return err
		}
		return validateOption(attr, value, valid)
	case catalogue.AttributeTypeFile, catalogue.AttributeTypeImage:
		return validateFile(attr, value)
	default:
		return invalidType(attr)
	}
	return nil
}

func optionGroupOf(attr *catalogue.ProductAttribute) (int64, error) {
	if attr.OptionGroupID == nil || *attr.OptionGroupID == 0 {
		return 0, catalogue.NewNotFoundError(catalogue.ErrCodeOptionGroupNotFound,
			fmt.Sprintf("attribute %s has no option group", attr.Code))
	}
	return *attr.OptionGroupID, nil
}

// validOptions fetches the option texts of the attribute's group once.
func (v *attributeValidator) validOptions(ctx context.Context, attr *catalogue.ProductAttribute) (map[string]struct{}, error) {
	groupID, err := optionGroupOf(attr)
	if err != nil {
		return nil, err
	}
	options, err := v.options.ListOptions(ctx, groupID)
	if err != nil {
		return nil, err
	}
	valid := make(map[string]struct{}, len(options))
	for _, o := range options {
		valid[o.Option] = struct{}{}
	}
	return valid, nil
}

func validateOption(attr *catalogue.ProductAttribute, value any, valid map[string]struct{}) error {
	option, ok := asOption(value)
	if !ok {
		return invalidValue(attr, typeMessages[catalogue.AttributeTypeOption])
	}
	if !option.Persisted() {
		return invalidValue(attr, "attribute option has not been saved yet")
	}
	_, known := valid[option.Option]
	if !known || (option.GroupID != 0 && option.GroupID != *attr.OptionGroupID) {
		return invalidValue(attr, fmt.Sprintf("%s is not a valid choice for %s", option.Option, attr.Name)).
			WithDetail("option", option.Option)
	}
	return nil
}

func (v *attributeValidator) validateMultiOption(ctx context.Context, attr *catalogue.ProductAttribute, value any) error {
	list, ok := asAnyList(value)
	if !ok {
		return invalidType(attr)
	}
	valid, err := v.validOptions(ctx, attr)
	if err != nil {
		return err
	}
	for _, item := range list {
		if err := validateOption(attr, item, valid); err != nil {
			return err
		}
	}
	return nil
}

// asAnyList flattens the supported multi-option inputs so each element can
// be checked on its own.
func asAnyList(value any) ([]any, bool) {
	return materializeList(value)
}

func (v *attributeValidator) validateEntity(ctx context.Context, attr *catalogue.ProductAttribute, value any) error {
	ref, ok := asEntityRef(value)
	if !ok {
		return invalidType(attr)
	}
	if v.entities == nil {
		return catalogue.NewInternalError("no entity resolver configured", nil)
	}
	if _, err := v.entities.Resolve(ctx, ref); err != nil {
		if catalogue.IsNotFound(err) {
			return invalidValue(attr, fmt.Sprintf("%s does not exist", ref)).WithCause(err)
		}
		return err
	}
	return nil
}

func validateFile(attr *catalogue.ProductAttribute, value any) error {
	if value == nil {
		return nil
	}
	in, ok := asFile(value)
	if !ok {
		return invalidType(attr)
	}
	if attr.Type == catalogue.AttributeTypeImage {
		if ct := in.contentType(); ct != "" && !strings.HasPrefix(ct, "image/") {
			return invalidValue(attr, "must be an image").WithDetail("content_type", ct)
		}
	}
	return nil
}
