package internal

import (
	"encoding/json"
	"testing"

	"github.com/lychee-technology/catalogue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defineBookAttributes(tc *testCatalogue) map[string]*catalogue.ProductAttribute {
	attrs := map[string]*catalogue.ProductAttribute{}
	for code, attrType := range map[string]catalogue.AttributeType{
		"author":          catalogue.AttributeTypeText,
		"number_of_pages": catalogue.AttributeTypeInteger,
		"weight":          catalogue.AttributeTypeFloat,
		"in_stock":        catalogue.AttributeTypeBoolean,
		"published":       catalogue.AttributeTypeDate,
		"released_at":     catalogue.AttributeTypeDateTime,
		"language":        catalogue.AttributeTypeOption,
		"languages":       catalogue.AttributeTypeMultiOption,
		"related":         catalogue.AttributeTypeEntity,
		"cover":           catalogue.AttributeTypeImage,
	} {
		attrs[code] = tc.define(code, attrType)
	}
	return attrs
}

func TestProductTypeSchema(t *testing.T) {
	tc := newTestCatalogue(t)
	defineBookAttributes(tc)
	isbn := &catalogue.ProductAttribute{Name: "ISBN", Code: "isbn", Type: catalogue.AttributeTypeText,
		Required: true, ProductTypeID: int64Ptr(tc.productType.ID)}
	_, err := tc.manager.DefineAttribute(tc.ctx, isbn)
	require.NoError(t, err)

	schema, err := tc.manager.ProductTypeSchema(tc.ctx, tc.productType.ID)
	require.NoError(t, err)

	assert.Equal(t, "Books", schema.Title)
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"isbn"}, schema.Required)
	assert.NotContains(t, schema.Properties, "cover")
	require.Contains(t, schema.Properties, "number_of_pages")

	assert.Equal(t, []string{"integer", "null"}, schema.Properties["number_of_pages"].Types)
	assert.Equal(t, []string{"string"}, schema.Properties["isbn"].Types)
	assert.Equal(t, "date", schema.Properties["published"].Format)
	assert.Equal(t, "date-time", schema.Properties["released_at"].Format)
	assert.Equal(t, []any{"English", "French", "German", nil}, schema.Properties["language"].Enum)

	languages := schema.Properties["languages"]
	require.NotNil(t, languages.Items)
	assert.Equal(t, []any{"English", "French", "German"}, languages.Items.Enum)
	assert.True(t, languages.UniqueItems)

	assert.Equal(t, []string{"type", "id"}, schema.Properties["related"].Required)
}

func TestProductTypeSchemaUnknownType(t *testing.T) {
	tc := newTestCatalogue(t)
	_, err := tc.manager.ProductTypeSchema(tc.ctx, 4040)
	assert.True(t, catalogue.IsNotFound(err))
}

func TestSaveValues(t *testing.T) {
	tc := newTestCatalogue(t)
	attrs := defineBookAttributes(tc)

	payload := map[string]any{
		"author":          nil,
		"number_of_pages": 412,
		"weight":          0.5,
		"in_stock":        false,
		"published":       "1965-08-01",
		"released_at":     "2021-10-22T09:00:00Z",
		"language":        "French",
		"languages":       []string{"English", "German"},
		"related":         map[string]any{"type": "product_type", "id": tc.productType.ID},
	}
	results, err := tc.manager.SaveValues(tc.ctx, tc.product, payload)
	require.NoError(t, err)

	assert.Equal(t, catalogue.SaveResultNoop, results["author"])
	for _, code := range []string{"number_of_pages", "weight", "in_stock", "published", "released_at", "language", "languages", "related"} {
		assert.Equal(t, catalogue.SaveResultCreated, results[code], code)
	}

	assert.Equal(t, catalogue.IntegerValue(412), tc.stored(attrs["number_of_pages"]))
	assert.Equal(t, catalogue.BooleanValue(false), tc.stored(attrs["in_stock"]))
	assert.Equal(t, catalogue.DateValue(catalogue.Date{Year: 1965, Month: 8, Day: 1}), tc.stored(attrs["published"]))
	assert.Equal(t, catalogue.EntityValue(tc.productType.EntityRef()), tc.stored(attrs["related"]))
	language := tc.stored(attrs["language"]).(catalogue.OptionValue)
	assert.Equal(t, tc.french.ID, language.ID)

	// null clears a stored value
	results, err = tc.manager.SaveValues(tc.ctx, tc.product, map[string]any{"number_of_pages": nil})
	require.NoError(t, err)
	assert.Equal(t, catalogue.SaveResultDeleted, results["number_of_pages"])
}

func TestSaveValuesKeepsLargeIntegers(t *testing.T) {
	tc := newTestCatalogue(t)
	isbn := tc.define("isbn_number", catalogue.AttributeTypeInteger)

	_, err := tc.manager.SaveValues(tc.ctx, tc.product, map[string]any{"isbn_number": json.Number("9007199254740993")})
	require.NoError(t, err)
	assert.Equal(t, catalogue.IntegerValue(9007199254740993), tc.stored(isbn))

	_, err = tc.manager.SaveValues(tc.ctx, tc.product, map[string]any{"isbn_number": int64(9223372036854775807)})
	require.NoError(t, err)
	assert.Equal(t, catalogue.IntegerValue(9223372036854775807), tc.stored(isbn))
}

func TestSaveValuesRejectsInvalidPayloads(t *testing.T) {
	tc := newTestCatalogue(t)
	defineBookAttributes(tc)

	payloads := map[string]map[string]any{
		"unknown attribute": {"colour": "red"},
		"wrong type":        {"number_of_pages": "many"},
		"fractional":        {"number_of_pages": 1.5},
		"unknown option":    {"language": "Klingon"},
		"repeated options":  {"languages": []string{"English", "English"}},
		"entity without id": {"related": map[string]any{"type": "product"}},
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			_, err := tc.manager.SaveValues(tc.ctx, tc.product, payload)
			require.Error(t, err)
			assert.True(t, catalogue.IsValidation(err))
		})
	}
	assert.Zero(t, tc.store.ValueCount())
}

func TestSaveValuesRequiredAttribute(t *testing.T) {
	tc := newTestCatalogue(t)
	_, err := tc.manager.DefineAttribute(tc.ctx, &catalogue.ProductAttribute{Name: "ISBN", Code: "isbn",
		Type: catalogue.AttributeTypeText, Required: true, ProductTypeID: int64Ptr(tc.productType.ID)})
	require.NoError(t, err)

	_, err = tc.manager.SaveValues(tc.ctx, tc.product, nil)
	require.Error(t, err)
	assert.True(t, catalogue.IsValidation(err))

	results, err := tc.manager.SaveValues(tc.ctx, tc.product, map[string]any{"isbn": "9780441013593"})
	require.NoError(t, err)
	assert.Equal(t, catalogue.SaveResultCreated, results["isbn"])
}
