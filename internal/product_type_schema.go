package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/catalogue"
	"go.uber.org/zap"
)

const jsonSchemaDialect = "https://json-schema.org/draft/2020-12/schema"

// ProductTypeSchema builds the JSON Schema of the attribute payload accepted
// by SaveValues for a product type. File and image attributes are excluded;
// they are written through SaveValue with a file handle.
func (m *attributeManager) ProductTypeSchema(ctx context.Context, productTypeID int64) (*jsonschema.Schema, error) {
	productType, err := m.stores.Products.GetProductType(ctx, productTypeID)
	if err != nil {
		return nil, err
	}
	attrs, err := m.stores.Attributes.ListAttributes(ctx, productTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attributes of product type %d: %w", productTypeID, err)
	}

	schema := &jsonschema.Schema{
		Schema:               jsonSchemaDialect,
		Title:                productType.Name,
		Type:                 "object",
		Properties:           make(map[string]*jsonschema.Schema, len(attrs)),
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
	for _, attr := range attrs {
		if attr.IsFile() {
			continue
		}
		prop, err := m.attributeSchema(ctx, attr)
		if err != nil {
			return nil, err
		}
		schema.Properties[attr.Code] = prop
		if attr.Required {
			schema.Required = append(schema.Required, attr.Code)
		}
	}
	sort.Strings(schema.Required)
	return schema, nil
}

func (m *attributeManager) attributeSchema(ctx context.Context, attr *catalogue.ProductAttribute) (*jsonschema.Schema, error) {
	prop := &jsonschema.Schema{Title: attr.Name}
	nullable := func(t string) []string {
		if attr.Required {
			return []string{t}
		}
		return []string{t, "null"}
	}

	switch attr.Type {
	case catalogue.AttributeTypeText, catalogue.AttributeTypeRichText:
		prop.Types = nullable("string")
	case catalogue.AttributeTypeInteger:
		prop.Types = nullable("integer")
	case catalogue.AttributeTypeFloat:
		prop.Types = nullable("number")
	case catalogue.AttributeTypeBoolean:
		prop.Types = nullable("boolean")
	case catalogue.AttributeTypeDate:
		prop.Types = nullable("string")
		prop.Format = "date"
	case catalogue.AttributeTypeDateTime:
		prop.Types = nullable("string")
		prop.Format = "date-time"
	case catalogue.AttributeTypeOption, catalogue.AttributeTypeMultiOption:
		enum, err := m.optionEnum(ctx, attr)
		if err != nil {
			return nil, err
		}
		if attr.IsOption() {
			prop.Types = nullable("string")
			if !attr.Required {
				enum = append(enum, nil)
			}
			prop.Enum = enum
		} else {
			prop.Types = nullable("array")
			prop.Items = &jsonschema.Schema{Type: "string", Enum: enum}
			prop.UniqueItems = true
		}
	case catalogue.AttributeTypeEntity:
		prop.Types = nullable("object")
		prop.Properties = map[string]*jsonschema.Schema{
			"type": {Type: "string"},
			"id":   {Type: "integer"},
		}
		prop.Required = []string{"type", "id"}
	default:
		return nil, fmt.Errorf("attribute %s has unsupported type %q", attr.Code, attr.Type)
	}
	return prop, nil
}

func (m *attributeManager) optionEnum(ctx context.Context, attr *catalogue.ProductAttribute) ([]any, error) {
	groupID, err := optionGroupOf(attr)
	if err != nil {
		return nil, err
	}
	options, err := m.stores.Options.ListOptions(ctx, groupID)
	if err != nil {
		return nil, err
	}
	enum := make([]any, 0, len(options)+1)
	for _, o := range options {
		enum = append(enum, o.Option)
	}
	return enum, nil
}

// SaveValues validates a JSON payload keyed by attribute code against the
// product type schema and saves each attribute in code order. JSON null
// clears a value. Each attribute is saved in its own transaction; on error
// the results gathered so far are returned with it.
func (m *attributeManager) SaveValues(ctx context.Context, product *catalogue.Product, payload map[string]any) (map[string]catalogue.SaveResult, error) {
	if product == nil {
		return nil, fmt.Errorf("product cannot be nil")
	}
	start := time.Now()

	schema, err := m.ProductTypeSchema(ctx, product.ProductTypeID)
	if err != nil {
		return nil, err
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, catalogue.NewInternalError("failed to resolve product type schema", err)
	}
	instance, values, err := normalizeJSON(payload)
	if err != nil {
		return nil, catalogue.NewValidationError("payload", err.Error())
	}
	if err := resolved.Validate(instance); err != nil {
		return nil, catalogue.NewValidationError("payload", err.Error()).WithCause(err)
	}

	attrs, err := m.stores.Attributes.ListAttributes(ctx, product.ProductTypeID)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]*catalogue.ProductAttribute, len(attrs))
	for _, attr := range attrs {
		byCode[attr.Code] = attr
	}

	codes := make([]string, 0, len(values))
	for code := range values {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	results := make(map[string]catalogue.SaveResult, len(codes))
	for _, code := range codes {
		attr := byCode[code]
		req, err := decodeJSONValue(attr, values[code])
		if err != nil {
			return results, err
		}
		result, err := m.SaveValue(ctx, attr, product, req)
		if err != nil {
			return results, fmt.Errorf("failed to save %s: %w", code, err)
		}
		results[code] = result
	}
	EmitLatency(ctx, "save_values", time.Since(start).Milliseconds())
	zap.S().Debugw("saved attribute payload", "productID", product.ID, "attributes", len(results))
	return results, nil
}

// normalizeJSON round-trips the payload twice: once into the generic types
// the schema validator understands and once with numbers kept as
// json.Number, so integers beyond 2^53 reach the store intact.
func normalizeJSON(payload map[string]any) (any, map[string]any, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return instance, values, nil
}

// decodeJSONValue turns one schema-valid JSON value into a write request.
func decodeJSONValue(attr *catalogue.ProductAttribute, raw any) (catalogue.WriteRequest, error) {
	if raw == nil {
		return catalogue.Unset(), nil
	}
	switch attr.Type {
	case catalogue.AttributeTypeInteger:
		i, ok := asInteger(raw)
		if !ok {
			return catalogue.WriteRequest{}, invalidType(attr)
		}
		return catalogue.Set(i), nil
	case catalogue.AttributeTypeFloat:
		f, ok := asFloat(raw)
		if !ok {
			return catalogue.WriteRequest{}, invalidType(attr)
		}
		return catalogue.Set(f), nil
	case catalogue.AttributeTypeDate:
		s, _ := raw.(string)
		d, err := catalogue.ParseDate(s)
		if err != nil {
			return catalogue.WriteRequest{}, invalidType(attr).WithCause(err)
		}
		return catalogue.Set(d), nil
	case catalogue.AttributeTypeDateTime:
		s, _ := raw.(string)
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return catalogue.WriteRequest{}, invalidType(attr).WithCause(err)
		}
		return catalogue.Set(t), nil
	case catalogue.AttributeTypeMultiOption:
		items, ok := raw.([]any)
		if !ok {
			return catalogue.WriteRequest{}, invalidType(attr)
		}
		texts := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return catalogue.WriteRequest{}, invalidType(attr)
			}
			texts = append(texts, s)
		}
		return catalogue.Set(texts), nil
	case catalogue.AttributeTypeEntity:
		obj, ok := raw.(map[string]any)
		if !ok {
			return catalogue.WriteRequest{}, invalidType(attr)
		}
		tag, _ := obj["type"].(string)
		id, ok := asInteger(obj["id"])
		if !ok {
			return catalogue.WriteRequest{}, invalidType(attr)
		}
		return catalogue.Set(catalogue.EntityRef{Tag: tag, ID: id}), nil
	}
	return catalogue.Set(raw), nil
}
