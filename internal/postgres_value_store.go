package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/catalogue"
	"go.uber.org/zap"
)

// PostgresValueStore stores attribute values in one row per
// (attribute, product) with a column per slot. Only the slot matching the
// attribute type is written; every other slot is set to NULL.
type PostgresValueStore struct {
	pool    pgPool
	tables  catalogue.TableNames
	txOpts  pgx.TxOptions
	nowFunc func() time.Time
}

func NewPostgresValueStore(pool pgPool, tables catalogue.TableNames, txConfig catalogue.TransactionConfig) (*PostgresValueStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	if tables.Values == "" || tables.ValueMultiOptions == "" || tables.Options == "" || tables.Attributes == "" {
		return nil, fmt.Errorf("value, multi option, option and attribute table names are required")
	}
	opts, err := txOptions(txConfig)
	if err != nil {
		return nil, err
	}
	return &PostgresValueStore{pool: pool, tables: tables, txOpts: opts, nowFunc: time.Now}, nil
}

func (s *PostgresValueStore) now() time.Time {
	if s.nowFunc == nil {
		return time.Now().UTC()
	}
	return s.nowFunc().UTC()
}

func (s *PostgresValueStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx catalogue.ValueTx) error) error {
	tx, err := s.pool.BeginTx(ctx, s.txOpts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	if err := fn(ctx, &pgValueTx{store: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const valueSelectColumns = `v.id, v.attribute_id, v.product_id,
	v.value_text, v.value_integer, v.value_boolean, v.value_float, v.value_richtext,
	v.value_date, v.value_datetime, v.value_file, v.value_image,
	v.value_option_id, o.group_id, o.option, v.value_entity_type, v.value_entity_id,
	v.created_at, v.updated_at`

// valueRow is one scanned value row. Every slot is nullable.
type valueRow struct {
	id, attributeID, productID int64

	text, richtext     *string
	integer            *int64
	boolean            *bool
	float              *float64
	date, datetime     *time.Time
	file, image        []byte
	optionID           *int64
	optionGroupID      *int64
	optionText         *string
	entityType         *string
	entityID           *int64
	createdAt, updated time.Time
}

func (r *valueRow) targets() []any {
	return []any{
		&r.id, &r.attributeID, &r.productID,
		&r.text, &r.integer, &r.boolean, &r.float, &r.richtext,
		&r.date, &r.datetime, &r.file, &r.image,
		&r.optionID, &r.optionGroupID, &r.optionText, &r.entityType, &r.entityID,
		&r.createdAt, &r.updated,
	}
}

// decode reads the slot named by t. A NULL slot decodes to nil.
func (r *valueRow) decode(t catalogue.AttributeType) (catalogue.Value, error) {
	switch t {
	case catalogue.AttributeTypeText:
		if r.text != nil {
			return catalogue.TextValue(*r.text), nil
		}
	case catalogue.AttributeTypeRichText:
		if r.richtext != nil {
			return catalogue.RichTextValue(*r.richtext), nil
		}
	case catalogue.AttributeTypeInteger:
		if r.integer != nil {
			return catalogue.IntegerValue(*r.integer), nil
		}
	case catalogue.AttributeTypeBoolean:
		if r.boolean != nil {
			return catalogue.BooleanValue(*r.boolean), nil
		}
	case catalogue.AttributeTypeFloat:
		if r.float != nil {
			return catalogue.FloatValue(*r.float), nil
		}
	case catalogue.AttributeTypeDate:
		if r.date != nil {
			return catalogue.DateValue(catalogue.DateOf(*r.date)), nil
		}
	case catalogue.AttributeTypeDateTime:
		if r.datetime != nil {
			return catalogue.DateTimeValue(*r.datetime), nil
		}
	case catalogue.AttributeTypeFile, catalogue.AttributeTypeImage:
		raw := r.file
		if t == catalogue.AttributeTypeImage {
			raw = r.image
		}
		if len(raw) == 0 {
			return nil, nil
		}
		var stored catalogue.StoredFile
		if err := json.Unmarshal(raw, &stored); err != nil {
			return nil, fmt.Errorf("decode stored file of value %d: %w", r.id, err)
		}
		return fileValueFor(t, stored), nil
	case catalogue.AttributeTypeOption:
		if r.optionID != nil && r.optionText != nil {
			opt := catalogue.AttributeOption{ID: *r.optionID, Option: *r.optionText}
			if r.optionGroupID != nil {
				opt.GroupID = *r.optionGroupID
			}
			return catalogue.OptionValue(opt), nil
		}
	case catalogue.AttributeTypeEntity:
		if r.entityType != nil && r.entityID != nil {
			return catalogue.EntityValue(catalogue.EntityRef{Tag: *r.entityType, ID: *r.entityID}), nil
		}
	case catalogue.AttributeTypeMultiOption:
		// filled from the association table
		return catalogue.MultiOptionValue{}, nil
	}
	return nil, nil
}

func (r *valueRow) record(value catalogue.Value) *catalogue.ProductAttributeValue {
	return &catalogue.ProductAttributeValue{
		ID:          r.id,
		AttributeID: r.attributeID,
		ProductID:   r.productID,
		Value:       value,
		Auditable:   catalogue.Auditable{CreatedAt: r.createdAt, UpdatedAt: r.updated},
	}
}

// slotArgs returns the twelve slot column arguments for v: value_text
// through value_entity_id, NULL except for v's own slot.
func slotArgs(v catalogue.Value) ([]any, error) {
	args := make([]any, 12)
	switch tv := v.(type) {
	case catalogue.TextValue:
		args[0] = string(tv)
	case catalogue.IntegerValue:
		args[1] = int64(tv)
	case catalogue.BooleanValue:
		args[2] = bool(tv)
	case catalogue.FloatValue:
		args[3] = float64(tv)
	case catalogue.RichTextValue:
		args[4] = string(tv)
	case catalogue.DateValue:
		args[5] = catalogue.Date(tv).Time()
	case catalogue.DateTimeValue:
		args[6] = tv.Time()
	case catalogue.FileValue:
		data, err := json.Marshal(catalogue.StoredFile(tv))
		if err != nil {
			return nil, err
		}
		args[7] = string(data)
	case catalogue.ImageValue:
		data, err := json.Marshal(catalogue.StoredFile(tv))
		if err != nil {
			return nil, err
		}
		args[8] = string(data)
	case catalogue.OptionValue:
		args[9] = tv.ID
	case catalogue.EntityValue:
		args[10] = tv.Tag
		args[11] = tv.ID
	case catalogue.MultiOptionValue, nil:
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
	return args, nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadMultiOptions fills the multi option values of records from the
// association table in one query.
func (s *PostgresValueStore) loadMultiOptions(ctx context.Context, q rowQuerier, records []*catalogue.ProductAttributeValue) error {
	byID := make(map[int64]*catalogue.ProductAttributeValue)
	ids := make([]int64, 0)
	for _, r := range records {
		if _, ok := r.Value.(catalogue.MultiOptionValue); ok {
			byID[r.ID] = r
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`SELECT m.value_id, o.id, o.group_id, o.option
		FROM %s m JOIN %s o ON o.id = m.option_id
		WHERE m.value_id = ANY($1)
		ORDER BY m.value_id, o.id`,
		sanitizeIdentifier(s.tables.ValueMultiOptions), sanitizeIdentifier(s.tables.Options))
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("query multi options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			valueID int64
			opt     catalogue.AttributeOption
		)
		if err := rows.Scan(&valueID, &opt.ID, &opt.GroupID, &opt.Option); err != nil {
			return fmt.Errorf("scan multi option: %w", err)
		}
		record := byID[valueID]
		record.Value = append(record.Value.(catalogue.MultiOptionValue), opt)
	}
	return rows.Err()
}

// ListProductValues returns the product's values, each decoded by its
// attribute's type, ordered by value id.
func (s *PostgresValueStore) ListProductValues(ctx context.Context, productID int64) ([]*catalogue.ProductAttributeValue, error) {
	query := fmt.Sprintf(`SELECT %s, a.type
		FROM %s v
		JOIN %s a ON a.id = v.attribute_id
		LEFT JOIN %s o ON o.id = v.value_option_id
		WHERE v.product_id = $1
		ORDER BY v.id`,
		valueSelectColumns,
		sanitizeIdentifier(s.tables.Values),
		sanitizeIdentifier(s.tables.Attributes),
		sanitizeIdentifier(s.tables.Options))

	rows, err := s.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("query product values: %w", err)
	}
	defer rows.Close()

	records := make([]*catalogue.ProductAttributeValue, 0)
	for rows.Next() {
		var (
			row      valueRow
			attrType string
		)
		if err := rows.Scan(append(row.targets(), &attrType)...); err != nil {
			return nil, fmt.Errorf("scan product value: %w", err)
		}
		value, err := row.decode(catalogue.AttributeType(attrType))
		if err != nil {
			return nil, err
		}
		records = append(records, row.record(value))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product values: %w", err)
	}
	rows.Close()

	if err := s.loadMultiOptions(ctx, s.pool, records); err != nil {
		return nil, err
	}
	zap.S().Debugw("listed product values", "productID", productID, "count", len(records))
	return records, nil
}

type pgValueTx struct {
	store *PostgresValueStore
	tx    pgx.Tx
}

func (t *pgValueTx) GetValue(ctx context.Context, attr *catalogue.ProductAttribute, productID int64) (*catalogue.ProductAttributeValue, error) {
	s := t.store
	query := fmt.Sprintf(`SELECT %s
		FROM %s v
		LEFT JOIN %s o ON o.id = v.value_option_id
		WHERE v.attribute_id = $1 AND v.product_id = $2
		FOR UPDATE OF v`,
		valueSelectColumns,
		sanitizeIdentifier(s.tables.Values),
		sanitizeIdentifier(s.tables.Options))

	var row valueRow
	if err := t.tx.QueryRow(ctx, query, attr.ID, productID).Scan(row.targets()...); err != nil {
		return nil, notFoundOr(err, catalogue.NewNotFoundError(catalogue.ErrCodeValueNotFound,
			fmt.Sprintf("no value for attribute %d on product %d", attr.ID, productID)))
	}
	value, err := row.decode(attr.Type)
	if err != nil {
		return nil, err
	}
	record := row.record(value)
	if err := s.loadMultiOptions(ctx, t.tx, []*catalogue.ProductAttributeValue{record}); err != nil {
		return nil, err
	}
	return record, nil
}

func (t *pgValueTx) CreateValue(ctx context.Context, attr *catalogue.ProductAttribute, value *catalogue.ProductAttributeValue) error {
	s := t.store
	slots, err := slotArgs(value.Value)
	if err != nil {
		return err
	}
	now := s.now()
	query := fmt.Sprintf(`INSERT INTO %s (attribute_id, product_id,
		value_text, value_integer, value_boolean, value_float, value_richtext,
		value_date, value_datetime, value_file, value_image,
		value_option_id, value_entity_type, value_entity_id,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`, sanitizeIdentifier(s.tables.Values))

	args := make([]any, 0, 16)
	args = append(args, attr.ID, value.ProductID)
	args = append(args, slots...)
	args = append(args, now, now)

	if err := t.tx.QueryRow(ctx, query, args...).Scan(&value.ID); err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return catalogue.NewDuplicateValueError(attr.ID, value.ProductID).WithCause(err)
		}
		return constraintError(err, catalogue.ErrCodeConstraintFailed,
			fmt.Sprintf("value for attribute %d references a missing record", attr.ID))
	}
	value.AttributeID = attr.ID
	value.CreatedAt = now
	value.UpdatedAt = now
	return t.replaceMultiOptions(ctx, value, false)
}

func (t *pgValueTx) UpdateValue(ctx context.Context, attr *catalogue.ProductAttribute, value *catalogue.ProductAttributeValue) error {
	s := t.store
	slots, err := slotArgs(value.Value)
	if err != nil {
		return err
	}
	now := s.now()
	query := fmt.Sprintf(`UPDATE %s SET
		value_text = $1, value_integer = $2, value_boolean = $3, value_float = $4, value_richtext = $5,
		value_date = $6, value_datetime = $7, value_file = $8, value_image = $9,
		value_option_id = $10, value_entity_type = $11, value_entity_id = $12,
		updated_at = $13
		WHERE id = $14`, sanitizeIdentifier(s.tables.Values))

	args := append(slots, now, value.ID)
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return constraintError(err, catalogue.ErrCodeConstraintFailed,
			fmt.Sprintf("value for attribute %d references a missing record", attr.ID))
	}
	if tag.RowsAffected() == 0 {
		return catalogue.NewNotFoundError(catalogue.ErrCodeValueNotFound, fmt.Sprintf("value %d not found", value.ID))
	}
	value.UpdatedAt = now
	return t.replaceMultiOptions(ctx, value, attr.IsMultiOption())
}

// replaceMultiOptions writes the option set of a multi option value.
func (t *pgValueTx) replaceMultiOptions(ctx context.Context, value *catalogue.ProductAttributeValue, clear bool) error {
	s := t.store
	table := sanitizeIdentifier(s.tables.ValueMultiOptions)
	if clear {
		if _, err := t.tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE value_id = $1`, table), value.ID); err != nil {
			return fmt.Errorf("clear multi options: %w", err)
		}
	}
	options, ok := value.Value.(catalogue.MultiOptionValue)
	if !ok || len(options) == 0 {
		return nil
	}
	ids := options.OptionIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	query := fmt.Sprintf(`INSERT INTO %s (value_id, option_id) SELECT $1, unnest($2::bigint[])`, table)
	if _, err := t.tx.Exec(ctx, query, value.ID, ids); err != nil {
		return constraintError(err, catalogue.ErrCodeConstraintFailed,
			fmt.Sprintf("value %d references a missing option", value.ID))
	}
	return nil
}

func (t *pgValueTx) DeleteValue(ctx context.Context, value *catalogue.ProductAttributeValue) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, sanitizeIdentifier(t.store.tables.Values))
	tag, err := t.tx.Exec(ctx, query, value.ID)
	if err != nil {
		return fmt.Errorf("delete value %d: %w", value.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalogue.NewNotFoundError(catalogue.ErrCodeValueNotFound, fmt.Sprintf("value %d not found", value.ID))
	}
	return nil
}
