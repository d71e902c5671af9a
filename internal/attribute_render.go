package internal

import (
	"context"
	"fmt"
	"html"

	"github.com/lychee-technology/catalogue"
)

// ValueAsText renders the record's value as plain text. Entity values render
// as the display string of the referenced record.
func (m *attributeManager) ValueAsText(ctx context.Context, attr *catalogue.ProductAttribute, record *catalogue.ProductAttributeValue) (string, error) {
	if attr == nil {
		return "", fmt.Errorf("attribute cannot be nil")
	}
	value := slotValue(attr, record)
	if ref, ok := value.(catalogue.EntityValue); ok {
		return m.entityText(ctx, catalogue.EntityRef(ref))
	}
	return catalogue.AsText(value), nil
}

// ValueAsHTML renders the record's value as HTML.
//
// Rich text is returned as stored, without escaping. Callers must sanitize
// rich text before it is saved; this method does not.
func (m *attributeManager) ValueAsHTML(ctx context.Context, attr *catalogue.ProductAttribute, record *catalogue.ProductAttributeValue) (string, error) {
	if attr == nil {
		return "", fmt.Errorf("attribute cannot be nil")
	}
	value := slotValue(attr, record)
	if ref, ok := value.(catalogue.EntityValue); ok {
		text, err := m.entityText(ctx, catalogue.EntityRef(ref))
		if err != nil {
			return "", err
		}
		return html.EscapeString(text), nil
	}
	return catalogue.AsHTML(value), nil
}

// Summary renders "<attribute name>: <value as text>".
func (m *attributeManager) Summary(ctx context.Context, attr *catalogue.ProductAttribute, record *catalogue.ProductAttributeValue) (string, error) {
	text, err := m.ValueAsText(ctx, attr, record)
	if err != nil {
		return "", err
	}
	return attr.Name + ": " + text, nil
}

func (m *attributeManager) entityText(ctx context.Context, ref catalogue.EntityRef) (string, error) {
	if m.entities == nil {
		return ref.String(), nil
	}
	entity, err := m.entities.Resolve(ctx, ref)
	if catalogue.IsNotFound(err) {
		// the referenced record is gone
		return ref.String(), nil
	}
	if err != nil {
		return "", err
	}
	return entity.String(), nil
}
