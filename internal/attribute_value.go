package internal

import (
	"encoding/json"
	"iter"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/lychee-technology/catalogue"
)

// typeMessages holds the validation message reported when a raw value
// cannot be used for an attribute type.
var typeMessages = map[catalogue.AttributeType]string{
	catalogue.AttributeTypeText:        "must be a string",
	catalogue.AttributeTypeRichText:    "must be a string",
	catalogue.AttributeTypeFloat:       "must be a float",
	catalogue.AttributeTypeInteger:     "must be an integer",
	catalogue.AttributeTypeDate:        "must be a date or datetime",
	catalogue.AttributeTypeDateTime:    "must be a datetime",
	catalogue.AttributeTypeBoolean:     "must be a boolean",
	catalogue.AttributeTypeEntity:      "must be an entity reference",
	catalogue.AttributeTypeOption:      "must be an attribute option",
	catalogue.AttributeTypeMultiOption: "must be a list of attribute options",
	catalogue.AttributeTypeFile:        "must be a file",
	catalogue.AttributeTypeImage:       "must be a file",
}

func invalidValue(attr *catalogue.ProductAttribute, message string) *catalogue.CatalogueError {
	err := catalogue.NewValidationError(attr.Code, message)
	err.Code = catalogue.ErrCodeInvalidValue
	return err
}

func invalidType(attr *catalogue.ProductAttribute) *catalogue.CatalogueError {
	if msg, ok := typeMessages[attr.Type]; ok {
		return invalidValue(attr, msg)
	}
	return invalidValue(attr, "unknown attribute type "+strconv.Quote(string(attr.Type)))
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case *string:
		if s == nil {
			return "", false
		}
		return *s, true
	case catalogue.TextValue:
		return string(s), true
	case catalogue.RichTextValue:
		return string(s), true
	}
	return "", false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case catalogue.FloatValue:
		return float64(n), true
	case catalogue.IntegerValue:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	if i, ok := asInteger(v); ok {
		return float64(i), true
	}
	return 0, false
}

func integralFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func asInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float64:
		return integralFloat(n)
	case float32:
		return integralFloat(float64(n))
	case catalogue.IntegerValue:
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return integralFloat(f)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case catalogue.BooleanValue:
		return bool(b), true
	}
	return false, false
}

func asDate(v any) (catalogue.Date, bool) {
	switch d := v.(type) {
	case catalogue.Date:
		return d, true
	case catalogue.DateValue:
		return catalogue.Date(d), true
	case time.Time:
		return catalogue.DateOf(d), true
	case *time.Time:
		if d == nil {
			return catalogue.Date{}, false
		}
		return catalogue.DateOf(*d), true
	case catalogue.DateTimeValue:
		return catalogue.DateOf(d.Time()), true
	}
	return catalogue.Date{}, false
}

func asDateTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case catalogue.DateTimeValue:
		return t.Time(), true
	}
	return time.Time{}, false
}

func asEntityRef(v any) (catalogue.EntityRef, bool) {
	switch e := v.(type) {
	case catalogue.EntityRef:
		return e, !e.IsZero()
	case *catalogue.EntityRef:
		if e == nil {
			return catalogue.EntityRef{}, false
		}
		return *e, !e.IsZero()
	case catalogue.EntityValue:
		ref := catalogue.EntityRef(e)
		return ref, !ref.IsZero()
	case catalogue.Entity:
		ref := e.EntityRef()
		return ref, !ref.IsZero()
	}
	return catalogue.EntityRef{}, false
}

func asOption(v any) (catalogue.AttributeOption, bool) {
	switch o := v.(type) {
	case catalogue.AttributeOption:
		return o, true
	case *catalogue.AttributeOption:
		if o == nil {
			return catalogue.AttributeOption{}, false
		}
		return *o, true
	case catalogue.OptionValue:
		return catalogue.AttributeOption(o), true
	}
	return catalogue.AttributeOption{}, false
}

// asOptionList accepts any slice or iterator whose elements are options.
func asOptionList(v any) ([]catalogue.AttributeOption, bool) {
	switch list := v.(type) {
	case catalogue.MultiOptionValue:
		return []catalogue.AttributeOption(list), true
	case []catalogue.AttributeOption:
		return list, true
	case []*catalogue.AttributeOption:
		out := make([]catalogue.AttributeOption, 0, len(list))
		for _, o := range list {
			if o == nil {
				return nil, false
			}
			out = append(out, *o)
		}
		return out, true
	case []catalogue.OptionValue:
		out := make([]catalogue.AttributeOption, 0, len(list))
		for _, o := range list {
			out = append(out, catalogue.AttributeOption(o))
		}
		return out, true
	}
	items, ok := materializeList(v)
	if !ok {
		return nil, false
	}
	out := make([]catalogue.AttributeOption, 0, len(items))
	for _, item := range items {
		o, ok := asOption(item)
		if !ok {
			return nil, false
		}
		out = append(out, o)
	}
	return out, true
}

// materializeList collects slices, arrays and iter.Seq inputs into []any.
// Iterators are consumed once.
func materializeList(v any) ([]any, bool) {
	switch seq := v.(type) {
	case nil:
		return nil, false
	case []any:
		return seq, true
	case iter.Seq[catalogue.AttributeOption]:
		return collectSeq(seq), true
	case iter.Seq[*catalogue.AttributeOption]:
		return collectSeq(seq), true
	case iter.Seq[string]:
		return collectSeq(seq), true
	case iter.Seq[any]:
		return collectSeq(seq), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func collectSeq[T any](seq iter.Seq[T]) []any {
	out := make([]any, 0)
	for item := range seq {
		out = append(out, item)
	}
	return out
}

// fileInput is either a new upload or a file that is already stored.
type fileInput struct {
	handle *catalogue.FileHandle
	stored *catalogue.StoredFile
}

func (f fileInput) contentType() string {
	if f.handle != nil {
		return f.handle.ContentType
	}
	if f.stored != nil {
		return f.stored.ContentType
	}
	return ""
}

func asFile(v any) (fileInput, bool) {
	switch f := v.(type) {
	case catalogue.FileHandle:
		return fileInput{handle: &f}, f.Body != nil
	case *catalogue.FileHandle:
		if f == nil || f.Body == nil {
			return fileInput{}, false
		}
		return fileInput{handle: f}, true
	case catalogue.StoredFile:
		return fileInput{stored: &f}, f.Key != ""
	case *catalogue.StoredFile:
		if f == nil || f.Key == "" {
			return fileInput{}, false
		}
		return fileInput{stored: f}, true
	case catalogue.FileValue:
		sf := catalogue.StoredFile(f)
		return fileInput{stored: &sf}, sf.Key != ""
	case catalogue.ImageValue:
		sf := catalogue.StoredFile(f)
		return fileInput{stored: &sf}, sf.Key != ""
	}
	return fileInput{}, false
}

func fileValueFor(t catalogue.AttributeType, file catalogue.StoredFile) catalogue.Value {
	if t == catalogue.AttributeTypeImage {
		return catalogue.ImageValue(file)
	}
	return catalogue.FileValue(file)
}

func storedFileOf(v catalogue.Value) (catalogue.StoredFile, bool) {
	switch f := v.(type) {
	case catalogue.FileValue:
		return catalogue.StoredFile(f), true
	case catalogue.ImageValue:
		return catalogue.StoredFile(f), true
	}
	return catalogue.StoredFile{}, false
}

// uniqueOptions drops repeated option ids, keeping the first occurrence.
func uniqueOptions(options []catalogue.AttributeOption) catalogue.MultiOptionValue {
	seen := make(map[int64]struct{}, len(options))
	out := make(catalogue.MultiOptionValue, 0, len(options))
	for _, o := range options {
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		out = append(out, o)
	}
	return out
}

// toValue converts a raw value, already resolved and validated, into the
// slot named by the attribute's type.
func toValue(attr *catalogue.ProductAttribute, raw any) (catalogue.Value, error) {
	var (
		value catalogue.Value
		ok    bool
	)
	switch attr.Type {
	case catalogue.AttributeTypeText:
		var s string
		s, ok = asString(raw)
		value = catalogue.TextValue(s)
	case catalogue.AttributeTypeRichText:
		var s string
		s, ok = asString(raw)
		value = catalogue.RichTextValue(s)
	case catalogue.AttributeTypeInteger:
		var i int64
		i, ok = asInteger(raw)
		value = catalogue.IntegerValue(i)
	case catalogue.AttributeTypeFloat:
		var f float64
		f, ok = asFloat(raw)
		value = catalogue.FloatValue(f)
	case catalogue.AttributeTypeBoolean:
		var b bool
		b, ok = asBool(raw)
		value = catalogue.BooleanValue(b)
	case catalogue.AttributeTypeDate:
		var d catalogue.Date
		d, ok = asDate(raw)
		value = catalogue.DateValue(d)
	case catalogue.AttributeTypeDateTime:
		var t time.Time
		t, ok = asDateTime(raw)
		value = catalogue.DateTimeValue(t)
	case catalogue.AttributeTypeEntity:
		var ref catalogue.EntityRef
		ref, ok = asEntityRef(raw)
		value = catalogue.EntityValue(ref)
	case catalogue.AttributeTypeOption:
		var o catalogue.AttributeOption
		o, ok = asOption(raw)
		value = catalogue.OptionValue(o)
	case catalogue.AttributeTypeMultiOption:
		var list []catalogue.AttributeOption
		list, ok = asOptionList(raw)
		value = uniqueOptions(list)
	case catalogue.AttributeTypeFile, catalogue.AttributeTypeImage:
		var in fileInput
		in, ok = asFile(raw)
		if ok {
			if in.stored != nil {
				value = fileValueFor(attr.Type, *in.stored)
			} else {
				value = fileValueFor(attr.Type, catalogue.StoredFile{
					Name:        in.handle.Name,
					ContentType: in.handle.ContentType,
					Size:        in.handle.Size,
				})
			}
		}
	}
	if !ok {
		return nil, invalidType(attr)
	}
	return value, nil
}

// slotValue returns the record's value when it sits in the slot named by
// the attribute's declared type. Any other slot is stale and reads as nil.
func slotValue(attr *catalogue.ProductAttribute, record *catalogue.ProductAttributeValue) catalogue.Value {
	if record == nil || record.Value == nil {
		return nil
	}
	if record.Value.Type() != attr.Type {
		return nil
	}
	return record.Value
}

func cloneValue(v catalogue.Value) catalogue.Value {
	if list, ok := v.(catalogue.MultiOptionValue); ok {
		out := make(catalogue.MultiOptionValue, len(list))
		copy(out, list)
		return out
	}
	return v
}

func cloneRecord(record *catalogue.ProductAttributeValue) *catalogue.ProductAttributeValue {
	if record == nil {
		return nil
	}
	out := *record
	out.Value = cloneValue(record.Value)
	return &out
}
