package catalogue

import (
	"regexp"
	"sort"
)

var codePattern = regexp.MustCompile(`^[A-Za-z_][0-9A-Za-z_]*$`)

// ReservedIdentifiers is a denylist of attribute codes.
type ReservedIdentifiers map[string]struct{}

// NewReservedIdentifiers builds a denylist from the given words.
func NewReservedIdentifiers(words ...string) ReservedIdentifiers {
	r := make(ReservedIdentifiers, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		r[w] = struct{}{}
	}
	return r
}

// Contains reports whether code is reserved.
func (r ReservedIdentifiers) Contains(code string) bool {
	_, ok := r[code]
	return ok
}

// Words returns the reserved words sorted.
func (r ReservedIdentifiers) Words() []string {
	words := make([]string, 0, len(r))
	for w := range r {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// goKeywords and pythonKeywords form the default denylist.
var goKeywords = []string{
	"break", "case", "chan", "const", "continue", "default", "defer", "else",
	"fallthrough", "for", "func", "go", "goto", "if", "import", "interface",
	"map", "package", "range", "return", "select", "struct", "switch", "type", "var",
}

var pythonKeywords = []string{
	"False", "None", "True", "and", "as", "assert", "async", "await", "break",
	"class", "continue", "def", "del", "elif", "else", "except", "finally", "for",
	"from", "global", "if", "import", "in", "is", "lambda", "nonlocal", "not",
	"or", "pass", "raise", "return", "try", "while", "with", "yield",
}

// DefaultReservedIdentifiers returns the Go and Python keyword lists.
func DefaultReservedIdentifiers() []string {
	out := make([]string, 0, len(goKeywords)+len(pythonKeywords))
	out = append(out, goKeywords...)
	out = append(out, pythonKeywords...)
	return out
}

// ValidateCode checks an attribute code against the identifier pattern and
// the reserved words.
func ValidateCode(code string, reserved ReservedIdentifiers) error {
	if !codePattern.MatchString(code) {
		err := NewValidationError("code",
			"code can only contain the letters a-z, A-Z, digits, and underscores, and can't start with a digit")
		err.Code = ErrCodeInvalidCode
		return err
	}
	if reserved.Contains(code) {
		err := NewValidationError("code", "this field is invalid as its value is forbidden").
			WithDetail("code", code)
		err.Code = ErrCodeInvalidCode
		return err
	}
	return nil
}
