package internal

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/catalogue"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var valueColumns = []string{
	"id", "attribute_id", "product_id",
	"value_text", "value_integer", "value_boolean", "value_float", "value_richtext",
	"value_date", "value_datetime", "value_file", "value_image",
	"value_option_id", "group_id", "option", "value_entity_type", "value_entity_id",
	"created_at", "updated_at",
}

func ptr[T any](v T) *T { return &v }

// valueRowValues returns a row with every slot NULL.
func valueRowValues(id, attributeID, productID int64) []any {
	row := make([]any, len(valueColumns))
	row[0], row[1], row[2] = id, attributeID, productID
	row[17], row[18] = sampleTime, sampleTime
	return row
}

func newMockValueStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresValueStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewPostgresValueStore(mock, catalogue.DefaultTableNames(), catalogue.DefaultConfig().Transaction)
	require.NoError(t, err)
	store.nowFunc = func() time.Time { return sampleTime }
	return mock, store
}

func nilSlots(n int) []any { return make([]any, n) }

func TestNewPostgresValueStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresValueStore(nil, catalogue.DefaultTableNames(), catalogue.TransactionConfig{})
	require.Error(t, err)

	_, err = NewPostgresValueStore(mock, catalogue.TableNames{}, catalogue.TransactionConfig{})
	require.Error(t, err)

	_, err = NewPostgresValueStore(mock, catalogue.DefaultTableNames(), catalogue.TransactionConfig{IsolationLevel: "SNAPSHOT"})
	require.Error(t, err)
}

func TestPostgresValueStoreGetValue(t *testing.T) {
	mock, store := newMockValueStore(t)
	ctx := context.Background()
	attr := &catalogue.ProductAttribute{ID: 10, Code: "author", Type: catalogue.AttributeTypeText}

	row := valueRowValues(7, 10, 2)
	row[3] = ptr("Frank Herbert")
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE v.attribute_id = $1 AND v.product_id = $2`) + `\s+FOR UPDATE OF v`).
		WithArgs(int64(10), int64(2)).
		WillReturnRows(pgxmock.NewRows(valueColumns).AddRow(row...))
	mock.ExpectCommit()
	mock.ExpectRollback()

	var record *catalogue.ProductAttributeValue
	err := store.WithinTx(ctx, func(ctx context.Context, tx catalogue.ValueTx) error {
		var err error
		record, err = tx.GetValue(ctx, attr, 2)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), record.ID)
	assert.Equal(t, catalogue.TextValue("Frank Herbert"), record.Value)
	assert.Equal(t, sampleTime, record.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresValueStoreGetValueNotFound(t *testing.T) {
	mock, store := newMockValueStore(t)
	attr := &catalogue.ProductAttribute{ID: 10, Code: "author", Type: catalogue.AttributeTypeText}

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`FOR UPDATE OF v`).
		WithArgs(int64(10), int64(2)).
		WillReturnRows(pgxmock.NewRows(valueColumns))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx catalogue.ValueTx) error {
		_, err := tx.GetValue(ctx, attr, 2)
		return err
	})
	require.Error(t, err)
	assert.Equal(t, catalogue.ErrCodeValueNotFound, catalogue.ErrorCode(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresValueStoreGetMultiOptionValue(t *testing.T) {
	mock, store := newMockValueStore(t)
	attr := &catalogue.ProductAttribute{ID: 11, Code: "languages", Type: catalogue.AttributeTypeMultiOption}

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`FOR UPDATE OF v`).
		WithArgs(int64(11), int64(2)).
		WillReturnRows(pgxmock.NewRows(valueColumns).AddRow(valueRowValues(8, 11, 2)...))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "catalogue_product_attribute_value_multi_option" m JOIN "catalogue_attribute_option" o`)).
		WithArgs([]int64{8}).
		WillReturnRows(pgxmock.NewRows([]string{"value_id", "id", "group_id", "option"}).
			AddRow(int64(8), int64(4), int64(3), "English").
			AddRow(int64(8), int64(6), int64(3), "German"))
	mock.ExpectCommit()
	mock.ExpectRollback()

	var record *catalogue.ProductAttributeValue
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx catalogue.ValueTx) error {
		var err error
		record, err = tx.GetValue(ctx, attr, 2)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, catalogue.MultiOptionValue{
		{ID: 4, GroupID: 3, Option: "English"},
		{ID: 6, GroupID: 3, Option: "German"},
	}, record.Value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresValueStoreCreateValue(t *testing.T) {
	mock, store := newMockValueStore(t)
	attr := &catalogue.ProductAttribute{ID: 10, Code: "number_of_pages", Type: catalogue.AttributeTypeInteger}
	value := &catalogue.ProductAttributeValue{ProductID: 2, Value: catalogue.IntegerValue(412)}

	args := append([]any{int64(10), int64(2), nil, int64(412)}, nilSlots(10)...)
	args = append(args, sampleTime, sampleTime)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`^INSERT INTO "catalogue_product_attribute_value" \(`).
		WithArgs(args...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx catalogue.ValueTx) error {
		return tx.CreateValue(ctx, attr, value)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), value.ID)
	assert.Equal(t, int64(10), value.AttributeID)
	assert.Equal(t, sampleTime, value.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresValueStoreCreateDuplicate(t *testing.T) {
	mock, store := newMockValueStore(t)
	attr := &catalogue.ProductAttribute{ID: 10, Code: "author", Type: catalogue.AttributeTypeText}
	value := &catalogue.ProductAttributeValue{ProductID: 2, Value: catalogue.TextValue("Frank Herbert")}

	args := append([]any{int64(10), int64(2), "Frank Herbert"}, nilSlots(11)...)
	args = append(args, sampleTime, sampleTime)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`^INSERT INTO "catalogue_product_attribute_value" \(`).
		WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx catalogue.ValueTx) error {
		return tx.CreateValue(ctx, attr, value)
	})
	require.Error(t, err)
	assert.True(t, catalogue.IsConstraintViolation(err))
	assert.Equal(t, catalogue.ErrCodeDuplicateValue, catalogue.ErrorCode(err))
	assert.True(t, isRetryableTxError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveValueRetriesConcurrentInsert(t *testing.T) {
	mock, store := newMockValueStore(t)
	tc := newTestCatalogue(t)
	author := tc.define("author", catalogue.AttributeTypeText)

	stores := tc.store.Stores()
	stores.Values = store
	cfg := catalogue.DefaultConfig()
	cfg.Transaction.RetryDelay = 0
	manager, err := NewAttributeManager(stores, nil, tc.registry, cfg)
	require.NoError(t, err)

	lookup := regexp.QuoteMeta(`WHERE v.attribute_id = $1 AND v.product_id = $2`) + `\s+FOR UPDATE OF v`
	args := append([]any{author.ID, tc.product.ID, "Frank Herbert"}, nilSlots(11)...)
	args = append(args, sampleTime, sampleTime)

	// another writer inserts the same row between our read and our insert
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(lookup).
		WithArgs(author.ID, tc.product.ID).
		WillReturnRows(pgxmock.NewRows(valueColumns))
	mock.ExpectQuery(`^INSERT INTO "catalogue_product_attribute_value" \(`).
		WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
	mock.ExpectRollback()

	row := valueRowValues(7, author.ID, tc.product.ID)
	row[3] = ptr("Frank Herbert")
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(lookup).
		WithArgs(author.ID, tc.product.ID).
		WillReturnRows(pgxmock.NewRows(valueColumns).AddRow(row...))
	mock.ExpectCommit()
	mock.ExpectRollback()

	result, err := manager.SaveValue(tc.ctx, author, tc.product, catalogue.Set("Frank Herbert"))
	require.NoError(t, err)
	assert.Equal(t, catalogue.SaveResultNoop, result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresValueStoreCreateMultiOption(t *testing.T) {
	mock, store := newMockValueStore(t)
	attr := &catalogue.ProductAttribute{ID: 11, Code: "languages", Type: catalogue.AttributeTypeMultiOption}
	value := &catalogue.ProductAttributeValue{ProductID: 2, Value: catalogue.MultiOptionValue{
		{ID: 6, GroupID: 3, Option: "German"},
		{ID: 4, GroupID: 3, Option: "English"},
	}}

	args := append([]any{int64(11), int64(2)}, nilSlots(12)...)
	args = append(args, sampleTime, sampleTime)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`^INSERT INTO "catalogue_product_attribute_value" \(`).
		WithArgs(args...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(8)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "catalogue_product_attribute_value_multi_option" (value_id, option_id)`)).
		WithArgs(int64(8), []int64{4, 6}).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx catalogue.ValueTx) error {
		return tx.CreateValue(ctx, attr, value)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresValueStoreUpdateMultiOption(t *testing.T) {
	mock, store := newMockValueStore(t)
	attr := &catalogue.ProductAttribute{ID: 11, Code: "languages", Type: catalogue.AttributeTypeMultiOption}
	value := &catalogue.ProductAttributeValue{ID: 8, ProductID: 2, Value: catalogue.MultiOptionValue{
		{ID: 5, GroupID: 3, Option: "French"},
	}}

	args := append(nilSlots(12), sampleTime, int64(8))
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec(`^UPDATE "catalogue_product_attribute_value" SET`).
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "catalogue_product_attribute_value_multi_option" WHERE value_id = $1`)).
		WithArgs(int64(8)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`INSERT INTO "catalogue_product_attribute_value_multi_option"`).
		WithArgs(int64(8), []int64{5}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx catalogue.ValueTx) error {
		return tx.UpdateValue(ctx, attr, value)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresValueStoreUpdateScalarNullsOtherSlots(t *testing.T) {
	mock, store := newMockValueStore(t)
	attr := &catalogue.ProductAttribute{ID: 12, Code: "related", Type: catalogue.AttributeTypeEntity}
	value := &catalogue.ProductAttributeValue{ID: 9, ProductID: 2,
		Value: catalogue.EntityValue(catalogue.EntityRef{Tag: "product", ID: 3})}

	args := append(nilSlots(10), "product", int64(3), sampleTime, int64(9))
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec(`^UPDATE "catalogue_product_attribute_value" SET`).
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx catalogue.ValueTx) error {
		return tx.UpdateValue(ctx, attr, value)
	})
	require.Error(t, err)
	assert.Equal(t, catalogue.ErrCodeValueNotFound, catalogue.ErrorCode(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresValueStoreDeleteValue(t *testing.T) {
	mock, store := newMockValueStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "catalogue_product_attribute_value" WHERE id = $1`)).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx catalogue.ValueTx) error {
		return tx.DeleteValue(ctx, &catalogue.ProductAttributeValue{ID: 7})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresValueStoreRollsBackOnError(t *testing.T) {
	mock, store := newMockValueStore(t)
	boom := errors.New("boom")

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx catalogue.ValueTx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresValueStoreSerializationFailureIsRetryable(t *testing.T) {
	mock, store := newMockValueStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: pgSerializationFailure})
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx catalogue.ValueTx) error {
		return nil
	})
	require.Error(t, err)
	assert.True(t, isRetryableTxError(err))
}

func TestPostgresValueStoreListProductValues(t *testing.T) {
	mock, store := newMockValueStore(t)

	columns := append(append([]string{}, valueColumns...), "type")
	text := append(valueRowValues(7, 10, 2), "text")
	text[3] = ptr("Frank Herbert")
	cover := append(valueRowValues(8, 13, 2), "image")
	cover[11] = []byte(`{"key":"covers/dune.png","name":"dune.png","contentType":"image/png","size":3}`)
	languages := append(valueRowValues(9, 11, 2), "multi_option")
	option := append(valueRowValues(10, 14, 2), "option")
	option[12], option[13], option[14] = ptr(int64(5)), ptr(int64(3)), ptr("French")

	mock.ExpectQuery(`(?s)^SELECT .+ FROM "catalogue_product_attribute_value" v\s+JOIN "catalogue_product_attribute" a`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(text...).AddRow(cover...).AddRow(languages...).AddRow(option...))
	mock.ExpectQuery(`FROM "catalogue_product_attribute_value_multi_option" m`).
		WithArgs([]int64{9}).
		WillReturnRows(pgxmock.NewRows([]string{"value_id", "id", "group_id", "option"}).
			AddRow(int64(9), int64(4), int64(3), "English"))

	records, err := store.ListProductValues(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, catalogue.TextValue("Frank Herbert"), records[0].Value)
	image, ok := records[1].Value.(catalogue.ImageValue)
	require.True(t, ok)
	assert.Equal(t, "covers/dune.png", image.Key)
	assert.Equal(t, catalogue.MultiOptionValue{{ID: 4, GroupID: 3, Option: "English"}}, records[2].Value)
	assert.Equal(t, catalogue.OptionValue(catalogue.AttributeOption{ID: 5, GroupID: 3, Option: "French"}), records[3].Value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotArgs(t *testing.T) {
	args, err := slotArgs(catalogue.BooleanValue(false))
	require.NoError(t, err)
	assert.Len(t, args, 12)
	assert.Equal(t, false, args[2])

	args, err = slotArgs(catalogue.DateValue(catalogue.Date{Year: 1965, Month: 8, Day: 1}))
	require.NoError(t, err)
	assert.Equal(t, time.Date(1965, time.August, 1, 0, 0, 0, 0, time.UTC), args[5])

	args, err = slotArgs(catalogue.FileValue(catalogue.StoredFile{Key: "manuals/a.pdf"}))
	require.NoError(t, err)
	assert.Contains(t, args[7], `"key":"manuals/a.pdf"`)

	args, err = slotArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, nilSlots(12), args)
}
