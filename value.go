package catalogue

import (
	"html"
	"strconv"
	"strings"
	"time"

	xhtml "golang.org/x/net/html"
)

// Value is the typed content of a ProductAttributeValue. Exactly one
// concrete type exists per attribute type; the attribute's declared type
// decides which one is active.
type Value interface {
	Type() AttributeType
	isValue()
}

type (
	TextValue        string
	RichTextValue    string
	IntegerValue     int64
	BooleanValue     bool
	FloatValue       float64
	DateValue        Date
	DateTimeValue    time.Time
	OptionValue      AttributeOption
	MultiOptionValue []AttributeOption
	FileValue        StoredFile
	ImageValue       StoredFile
	EntityValue      EntityRef
)

func (TextValue) Type() AttributeType        { return AttributeTypeText }
func (RichTextValue) Type() AttributeType    { return AttributeTypeRichText }
func (IntegerValue) Type() AttributeType     { return AttributeTypeInteger }
func (BooleanValue) Type() AttributeType     { return AttributeTypeBoolean }
func (FloatValue) Type() AttributeType       { return AttributeTypeFloat }
func (DateValue) Type() AttributeType        { return AttributeTypeDate }
func (DateTimeValue) Type() AttributeType    { return AttributeTypeDateTime }
func (OptionValue) Type() AttributeType      { return AttributeTypeOption }
func (MultiOptionValue) Type() AttributeType { return AttributeTypeMultiOption }
func (FileValue) Type() AttributeType        { return AttributeTypeFile }
func (ImageValue) Type() AttributeType       { return AttributeTypeImage }
func (EntityValue) Type() AttributeType      { return AttributeTypeEntity }

func (TextValue) isValue()        {}
func (RichTextValue) isValue()    {}
func (IntegerValue) isValue()     {}
func (BooleanValue) isValue()     {}
func (FloatValue) isValue()       {}
func (DateValue) isValue()        {}
func (DateTimeValue) isValue()    {}
func (OptionValue) isValue()      {}
func (MultiOptionValue) isValue() {}
func (FileValue) isValue()        {}
func (ImageValue) isValue()       {}
func (EntityValue) isValue()      {}

// Time returns the wrapped time.
func (v DateTimeValue) Time() time.Time { return time.Time(v) }

// OptionIDs returns the ids of the selected options.
func (v MultiOptionValue) OptionIDs() []int64 {
	ids := make([]int64, 0, len(v))
	for _, opt := range v {
		ids = append(ids, opt.ID)
	}
	return ids
}

// ValuesEqual compares two values of the same slot. Multi-option values are
// compared as sets of option ids.
func ValuesEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}
	switch av := a.(type) {
	case DateTimeValue:
		return av.Time().Equal(b.(DateTimeValue).Time())
	case OptionValue:
		return av.ID == b.(OptionValue).ID
	case MultiOptionValue:
		bv := b.(MultiOptionValue)
		if len(av) != len(bv) {
			return false
		}
		seen := make(map[int64]int, len(av))
		for _, opt := range av {
			seen[opt.ID]++
		}
		for _, opt := range bv {
			if seen[opt.ID] == 0 {
				return false
			}
			seen[opt.ID]--
		}
		return true
	case FileValue:
		return av.Key == b.(FileValue).Key
	case ImageValue:
		return av.Key == b.(ImageValue).Key
	default:
		return a == b
	}
}

// AsText renders a value as plain text. Rich text has its markup removed and
// multi-option values are joined with ", ".
func AsText(v Value) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case TextValue:
		return string(tv)
	case RichTextValue:
		return StripTags(string(tv))
	case IntegerValue:
		return strconv.FormatInt(int64(tv), 10)
	case BooleanValue:
		return strconv.FormatBool(bool(tv))
	case FloatValue:
		return strconv.FormatFloat(float64(tv), 'g', -1, 64)
	case DateValue:
		return Date(tv).String()
	case DateTimeValue:
		return tv.Time().Format(time.RFC3339)
	case OptionValue:
		return tv.Option
	case MultiOptionValue:
		texts := make([]string, 0, len(tv))
		for _, opt := range tv {
			texts = append(texts, opt.Option)
		}
		return strings.Join(texts, ", ")
	case FileValue:
		return tv.Name
	case ImageValue:
		return tv.Name
	case EntityValue:
		return EntityRef(tv).String()
	default:
		return ""
	}
}

// AsHTML renders a value as HTML. Rich text is returned verbatim and is NOT
// escaped: callers must only store sanitized markup in rich text attributes.
// Every other type renders as escaped AsText.
func AsHTML(v Value) string {
	if rt, ok := v.(RichTextValue); ok {
		return string(rt)
	}
	return html.EscapeString(AsText(v))
}

// StripTags removes markup from s and keeps the text content.
func StripTags(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}
	z := xhtml.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return b.String()
		case xhtml.TextToken:
			b.Write(z.Text())
		}
	}
}

// WriteAction is the intent of a write request.
type WriteAction int

const (
	// WriteUnset means no value was supplied. For file attributes it leaves
	// the stored file untouched; for every other type it clears the value.
	WriteUnset WriteAction = iota
	// WriteDelete explicitly removes the stored value.
	WriteDelete
	// WriteSet assigns Value.
	WriteSet
)

func (a WriteAction) String() string {
	switch a {
	case WriteUnset:
		return "unset"
	case WriteDelete:
		return "delete"
	case WriteSet:
		return "set"
	default:
		return "unknown"
	}
}

// WriteRequest is the input to SaveValue. Using an explicit action keeps
// false and 0 apart from "no value".
type WriteRequest struct {
	Action WriteAction
	Value  any
}

func Unset() WriteRequest { return WriteRequest{Action: WriteUnset} }

func Delete() WriteRequest { return WriteRequest{Action: WriteDelete} }

// Set builds a request assigning v. A nil v is the same as Unset.
func Set(v any) WriteRequest {
	if v == nil {
		return Unset()
	}
	return WriteRequest{Action: WriteSet, Value: v}
}

// IsBlank reports whether the request carries no usable scalar value: it is
// unset, or sets nil or the empty string.
func (r WriteRequest) IsBlank() bool {
	if r.Action != WriteSet || r.Value == nil {
		return true
	}
	switch v := r.Value.(type) {
	case string:
		return v == ""
	case TextValue:
		return v == ""
	case RichTextValue:
		return v == ""
	}
	return false
}
