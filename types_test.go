package catalogue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// AttributeType Tests
// =============================================================================

func TestParseAttributeType(t *testing.T) {
	for _, attrType := range AttributeTypes() {
		parsed, err := ParseAttributeType(string(attrType))
		require.NoError(t, err)
		assert.Equal(t, attrType, parsed)
	}

	parsed, err := ParseAttributeType(" Multi_Option ")
	require.NoError(t, err)
	assert.Equal(t, AttributeTypeMultiOption, parsed)

	_, err = ParseAttributeType("colour")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestAttributeTypes(t *testing.T) {
	types := AttributeTypes()
	assert.Len(t, types, 12)
	types[0] = "mutated"
	assert.Equal(t, AttributeTypeText, AttributeTypes()[0])
}

func TestAttributeTypeLabel(t *testing.T) {
	tests := map[AttributeType]string{
		AttributeTypeText:        "Text",
		AttributeTypeBoolean:     "True / False",
		AttributeTypeRichText:    "Rich Text",
		AttributeTypeDateTime:    "Datetime",
		AttributeTypeMultiOption: "Multi Option",
		AttributeTypeEntity:      "Entity",
	}
	for attrType, want := range tests {
		assert.Equal(t, want, attrType.Label())
	}
}

func TestProductAttributeKinds(t *testing.T) {
	option := ProductAttribute{Type: AttributeTypeOption}
	multi := ProductAttribute{Type: AttributeTypeMultiOption}
	image := ProductAttribute{Type: AttributeTypeImage}

	assert.True(t, option.UsesOptionGroup())
	assert.True(t, multi.UsesOptionGroup())
	assert.True(t, multi.IsMultiOption())
	assert.False(t, image.UsesOptionGroup())
	assert.True(t, image.IsFile())
}

// =============================================================================
// Record Tests
// =============================================================================

func TestEntityRef(t *testing.T) {
	product := Product{ID: 2, Name: "Dune"}
	assert.Equal(t, EntityRef{Tag: EntityTypeProduct, ID: 2}, product.EntityRef())
	assert.Equal(t, "product:2", product.EntityRef().String())
	assert.Equal(t, "Product (id:2): Dune", product.String())
	assert.True(t, EntityRef{}.IsZero())
	assert.Equal(t, EntityTypeCategory, Category{ID: 1}.EntityRef().Tag)
}

func TestEntityValue(t *testing.T) {
	var v Value = EntityValue(EntityRef{Tag: EntityTypeProduct, ID: 2})
	assert.Equal(t, AttributeTypeEntity, v.Type())

	data, err := json.Marshal(EntityRef{Tag: EntityTypeProduct, ID: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"product","id":2}`, string(data))

	var ref EntityRef
	require.NoError(t, json.Unmarshal([]byte(`{"type":"category","id":5}`), &ref))
	assert.Equal(t, EntityRef{Tag: EntityTypeCategory, ID: 5}, ref)
}

func TestProductAttributeValuePersisted(t *testing.T) {
	var missing *ProductAttributeValue
	assert.False(t, missing.Persisted())
	assert.False(t, (&ProductAttributeValue{}).Persisted())
	assert.True(t, (&ProductAttributeValue{ID: 1}).Persisted())
}

func TestProductAttribute_JSON(t *testing.T) {
	groupID := int64(3)
	attr := ProductAttribute{ID: 10, Name: "Language", Code: "language", Type: AttributeTypeOption, OptionGroupID: &groupID}

	data, err := json.Marshal(attr)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"option"`)
	assert.Contains(t, string(data), `"optionGroupId":3`)
	assert.NotContains(t, string(data), "productTypeId")
}

// =============================================================================
// Date Tests
// =============================================================================

func TestDate(t *testing.T) {
	d, err := ParseDate("1965-08-01")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 1965, Month: time.August, Day: 1}, d)
	assert.Equal(t, "1965-08-01", d.String())
	assert.Equal(t, time.Date(1965, time.August, 1, 0, 0, 0, 0, time.UTC), d.Time())
	assert.True(t, Date{}.IsZero())

	_, err = ParseDate("01/08/1965")
	assert.Error(t, err)

	local := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	assert.Equal(t, Date{Year: 2024, Month: time.March, Day: 9}, DateOf(local))
}
