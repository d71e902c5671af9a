package internal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lychee-technology/catalogue"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

// countingValueStore counts the writes reaching the wrapped store.
type countingValueStore struct {
	catalogue.ValueStore
	creates, updates, deletes int
}

func (c *countingValueStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx catalogue.ValueTx) error) error {
	return c.ValueStore.WithinTx(ctx, func(ctx context.Context, tx catalogue.ValueTx) error {
		return fn(ctx, &countingTx{ValueTx: tx, parent: c})
	})
}

func (c *countingValueStore) writes() int { return c.creates + c.updates + c.deletes }

type countingTx struct {
	catalogue.ValueTx
	parent *countingValueStore
}

func (t *countingTx) CreateValue(ctx context.Context, attr *catalogue.ProductAttribute, v *catalogue.ProductAttributeValue) error {
	t.parent.creates++
	return t.ValueTx.CreateValue(ctx, attr, v)
}

func (t *countingTx) UpdateValue(ctx context.Context, attr *catalogue.ProductAttribute, v *catalogue.ProductAttributeValue) error {
	t.parent.updates++
	return t.ValueTx.UpdateValue(ctx, attr, v)
}

func (t *countingTx) DeleteValue(ctx context.Context, v *catalogue.ProductAttributeValue) error {
	t.parent.deletes++
	return t.ValueTx.DeleteValue(ctx, v)
}

// testCatalogue is a manager wired to in-memory stores with a Books product
// type, a Language option group and one product.
type testCatalogue struct {
	t        *testing.T
	ctx      context.Context
	store    *MemoryStore
	values   *countingValueStore
	files    *MemoryFileStore
	registry *EntityRegistry
	manager  catalogue.AttributeManager

	productType *catalogue.ProductType
	product     *catalogue.Product
	group       *catalogue.AttributeOptionGroup
	english     *catalogue.AttributeOption
	french      *catalogue.AttributeOption
	german      *catalogue.AttributeOption
}

func newTestCatalogue(t *testing.T) *testCatalogue {
	t.Helper()
	ctx := context.Background()
	store := NewMemoryStore()
	registry := NewEntityRegistry()
	require.NoError(t, store.RegisterEntities(registry))

	values := &countingValueStore{ValueStore: store}
	stores := store.Stores()
	stores.Values = values

	files := NewMemoryFileStore("https://cdn.example.com")
	cfg := catalogue.DefaultConfig()
	cfg.Transaction.RetryDelay = 0

	manager, err := NewAttributeManager(stores, files, registry, cfg)
	require.NoError(t, err)

	tc := &testCatalogue{t: t, ctx: ctx, store: store, values: values, files: files, registry: registry, manager: manager}

	tc.productType = &catalogue.ProductType{Name: "Books", Slug: "books", RequiresShipping: true, TrackStock: true}
	require.NoError(t, store.CreateProductType(ctx, tc.productType))

	tc.product = &catalogue.Product{Name: "Dune", UPC: "9780441013593", ProductTypeID: tc.productType.ID}
	require.NoError(t, store.CreateProduct(ctx, tc.product))

	tc.group, err = store.CreateGroup(ctx, "Language")
	require.NoError(t, err)
	tc.english = tc.addOption("English")
	tc.french = tc.addOption("French")
	tc.german = tc.addOption("German")
	return tc
}

func (tc *testCatalogue) addOption(text string) *catalogue.AttributeOption {
	tc.t.Helper()
	o, err := tc.store.AddOption(tc.ctx, tc.group.ID, text)
	require.NoError(tc.t, err)
	return o
}

// define creates an attribute of the given type on the Books product type.
func (tc *testCatalogue) define(code string, attrType catalogue.AttributeType) *catalogue.ProductAttribute {
	tc.t.Helper()
	attr := &catalogue.ProductAttribute{
		Name:          strings.ReplaceAll(code, "_", " "),
		Code:          code,
		Type:          attrType,
		ProductTypeID: int64Ptr(tc.productType.ID),
	}
	if attr.UsesOptionGroup() {
		attr.OptionGroupID = int64Ptr(tc.group.ID)
	}
	defined, err := tc.manager.DefineAttribute(tc.ctx, attr)
	require.NoError(tc.t, err)
	return defined
}

func (tc *testCatalogue) save(attr *catalogue.ProductAttribute, req catalogue.WriteRequest) catalogue.SaveResult {
	tc.t.Helper()
	result, err := tc.manager.SaveValue(tc.ctx, attr, tc.product, req)
	require.NoError(tc.t, err)
	return result
}

// stored returns the stored value of attr, or nil when there is no row.
func (tc *testCatalogue) stored(attr *catalogue.ProductAttribute) catalogue.Value {
	tc.t.Helper()
	record, err := tc.manager.GetValue(tc.ctx, attr, tc.product)
	if catalogue.IsNotFound(err) {
		return nil
	}
	require.NoError(tc.t, err)
	return record.Value
}

var sampleTime = time.Date(2024, time.March, 9, 14, 30, 0, 0, time.UTC)
