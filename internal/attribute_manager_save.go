package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/lychee-technology/catalogue"
	"go.uber.org/zap"
)

// writePlan is a write request normalized for one attribute type. action is
// WriteUnset only for file attributes, where it leaves the row untouched.
type writePlan struct {
	action   catalogue.WriteAction
	value    catalogue.Value
	uploaded *catalogue.StoredFile
}

// SaveValue creates, updates or deletes the value row of attr for product.
// The read-check-write runs inside one store transaction and is retried on
// serialization failures and duplicate row races.
func (m *attributeManager) SaveValue(ctx context.Context, attr *catalogue.ProductAttribute, product *catalogue.Product, req catalogue.WriteRequest) (catalogue.SaveResult, error) {
	if attr == nil || product == nil {
		return catalogue.SaveResultNoop, fmt.Errorf("attribute and product are required")
	}
	start := time.Now()

	plan, err := m.planWrite(ctx, attr, req)
	if err != nil {
		return catalogue.SaveResultNoop, err
	}
	if plan.action == catalogue.WriteUnset {
		EmitValueWrite(ctx, attr.Type, catalogue.SaveResultNoop)
		return catalogue.SaveResultNoop, nil
	}

	var (
		result   catalogue.SaveResult
		obsolete []string
	)
	err = m.withRetry(ctx, func(ctx context.Context) error {
		obsolete = obsolete[:0]
		return m.stores.Values.WithinTx(ctx, func(ctx context.Context, tx catalogue.ValueTx) error {
			r, replaced, err := applyWrite(ctx, tx, attr, product.ID, plan)
			if err != nil {
				return err
			}
			result = r
			if replaced != "" {
				obsolete = append(obsolete, replaced)
			}
			return nil
		})
	})
	if err != nil {
		if plan.uploaded != nil {
			m.deleteFileQuietly(ctx, plan.uploaded.Key)
		}
		return catalogue.SaveResultNoop, err
	}
	for _, key := range obsolete {
		m.deleteFileQuietly(ctx, key)
	}

	EmitValueWrite(ctx, attr.Type, result)
	EmitLatency(ctx, "save_value", time.Since(start).Milliseconds())
	zap.S().Debugw("saved attribute value", "attribute", attr.Code, "productID", product.ID, "action", req.Action, "result", result)
	return result, nil
}

func (m *attributeManager) planWrite(ctx context.Context, attr *catalogue.ProductAttribute, req catalogue.WriteRequest) (*writePlan, error) {
	switch {
	case attr.IsFile():
		return m.planFileWrite(ctx, attr, req)
	case attr.IsMultiOption():
		return m.planMultiOptionWrite(ctx, attr, req)
	default:
		return m.planScalarWrite(ctx, attr, req)
	}
}

func (m *attributeManager) planScalarWrite(ctx context.Context, attr *catalogue.ProductAttribute, req catalogue.WriteRequest) (*writePlan, error) {
	if req.IsBlank() {
		return &writePlan{action: catalogue.WriteDelete}, nil
	}
	raw, err := m.resolveOptions(ctx, attr, req.Value)
	if err != nil {
		return nil, err
	}
	if err := m.validator.Validate(ctx, attr, raw); err != nil {
		return nil, err
	}
	value, err := toValue(attr, raw)
	if err != nil {
		return nil, err
	}
	return &writePlan{action: catalogue.WriteSet, value: value}, nil
}

func (m *attributeManager) planMultiOptionWrite(ctx context.Context, attr *catalogue.ProductAttribute, req catalogue.WriteRequest) (*writePlan, error) {
	if req.IsBlank() {
		return &writePlan{action: catalogue.WriteDelete}, nil
	}
	raw, err := m.resolveOptions(ctx, attr, req.Value)
	if err != nil {
		return nil, err
	}
	if list, ok := asAnyList(raw); ok && len(list) == 0 {
		return &writePlan{action: catalogue.WriteDelete}, nil
	}
	if err := m.validator.Validate(ctx, attr, raw); err != nil {
		return nil, err
	}
	value, err := toValue(attr, raw)
	if err != nil {
		return nil, err
	}
	return &writePlan{action: catalogue.WriteSet, value: value}, nil
}

// planFileWrite uploads new files before the transaction starts so retries
// never upload twice.
func (m *attributeManager) planFileWrite(ctx context.Context, attr *catalogue.ProductAttribute, req catalogue.WriteRequest) (*writePlan, error) {
	switch req.Action {
	case catalogue.WriteUnset:
		return &writePlan{action: catalogue.WriteUnset}, nil
	case catalogue.WriteDelete:
		return &writePlan{action: catalogue.WriteDelete}, nil
	}
	if req.IsBlank() {
		return &writePlan{action: catalogue.WriteUnset}, nil
	}
	if err := validateFile(attr, req.Value); err != nil {
		return nil, err
	}
	in, _ := asFile(req.Value)
	if in.stored != nil {
		return &writePlan{action: catalogue.WriteSet, value: fileValueFor(attr.Type, *in.stored)}, nil
	}
	if m.files == nil {
		return nil, catalogue.NewCatalogueError(catalogue.ErrorTypeStorage, catalogue.ErrCodeFileStoreFailed,
			"no file store configured")
	}
	key := NewObjectKey(m.keyPrefix, attr.Code, in.handle.Name)
	stored, err := m.files.Save(ctx, key, *in.handle)
	if err != nil {
		return nil, fmt.Errorf("failed to store file for %s: %w", attr.Code, err)
	}
	return &writePlan{action: catalogue.WriteSet, value: fileValueFor(attr.Type, stored), uploaded: &stored}, nil
}

// applyWrite runs the get-or-create state machine inside a transaction. It
// returns the key of a stored file made obsolete by the write, if any.
func applyWrite(ctx context.Context, tx catalogue.ValueTx, attr *catalogue.ProductAttribute, productID int64, plan *writePlan) (catalogue.SaveResult, string, error) {
	existing, err := tx.GetValue(ctx, attr, productID)
	if err != nil {
		if !catalogue.IsNotFound(err) {
			return catalogue.SaveResultNoop, "", err
		}
		existing = nil
	}

	switch plan.action {
	case catalogue.WriteDelete:
		if existing == nil {
			return catalogue.SaveResultNoop, "", nil
		}
		if err := tx.DeleteValue(ctx, existing); err != nil {
			return catalogue.SaveResultNoop, "", err
		}
		return catalogue.SaveResultDeleted, obsoleteFileKey(attr, existing, nil), nil

	case catalogue.WriteSet:
		if existing == nil {
			record := &catalogue.ProductAttributeValue{
				AttributeID: attr.ID,
				ProductID:   productID,
				Value:       plan.value,
			}
			if err := tx.CreateValue(ctx, attr, record); err != nil {
				return catalogue.SaveResultNoop, "", err
			}
			return catalogue.SaveResultCreated, "", nil
		}
		current := slotValue(attr, existing)
		if catalogue.ValuesEqual(current, plan.value) {
			return catalogue.SaveResultNoop, "", nil
		}
		replaced := obsoleteFileKey(attr, existing, plan.value)
		existing.Value = plan.value
		if err := tx.UpdateValue(ctx, attr, existing); err != nil {
			return catalogue.SaveResultNoop, "", err
		}
		return catalogue.SaveResultUpdated, replaced, nil
	}
	return catalogue.SaveResultNoop, "", nil
}

func obsoleteFileKey(attr *catalogue.ProductAttribute, existing *catalogue.ProductAttributeValue, next catalogue.Value) string {
	if !attr.IsFile() {
		return ""
	}
	old, ok := storedFileOf(slotValue(attr, existing))
	if !ok || old.Key == "" {
		return ""
	}
	if nf, ok := storedFileOf(next); ok && nf.Key == old.Key {
		return ""
	}
	return old.Key
}

func (m *attributeManager) deleteFileQuietly(ctx context.Context, key string) {
	if m.files == nil || key == "" {
		return
	}
	if err := m.files.Delete(ctx, key); err != nil {
		EmitFileStoreError(ctx, "delete")
		zap.S().Warnw("failed to delete stored file", "key", key, "error", err)
	}
}

func isRetryableTxError(err error) bool {
	switch pgErrorCode(err) {
	case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
		return true
	}
	return catalogue.ErrorCode(err) == catalogue.ErrCodeDuplicateValue
}

func (m *attributeManager) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	maxRetries := m.tx.MaxRetryAttempts
	if maxRetries < 0 {
		maxRetries = 0
	}
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || !isRetryableTxError(err) {
			return err
		}
		if attempt >= maxRetries {
			return fmt.Errorf("value transaction failed after %d attempts: %w", attempt+1, err)
		}
		EmitTxRetry(ctx, attempt+1)
		zap.S().Debugw("retrying value transaction", "attempt", attempt+1, "error", err)
		delay := m.tx.RetryDelay * time.Duration(attempt+1)
		if delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// DeleteProduct deletes the product, its child products and their attribute
// values, then removes the files those values referenced. File removal is
// best effort.
func (m *attributeManager) DeleteProduct(ctx context.Context, productID int64) error {
	start := time.Now()
	values, err := m.productTreeValues(ctx, productID)
	if err != nil {
		return err
	}
	if err := m.stores.Products.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	for _, v := range values {
		if file, ok := storedFileOf(v.Value); ok {
			m.deleteFileQuietly(ctx, file.Key)
		}
	}
	EmitLatency(ctx, "delete_product", time.Since(start).Milliseconds())
	zap.S().Debugw("deleted product", "productID", productID, "values", len(values))
	return nil
}

// productTreeValues collects the values of a product and all of its
// descendants.
func (m *attributeManager) productTreeValues(ctx context.Context, productID int64) ([]*catalogue.ProductAttributeValue, error) {
	var out []*catalogue.ProductAttributeValue
	pending := []int64{productID}
	for len(pending) > 0 {
		id := pending[0]
		pending = pending[1:]
		values, err := m.stores.Values.ListProductValues(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list values of product %d: %w", id, err)
		}
		out = append(out, values...)
		children, err := m.stores.Products.ChildProductIDs(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list children of product %d: %w", id, err)
		}
		pending = append(pending, children...)
	}
	return out, nil
}
