package internal

import (
	"encoding/base32"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Stored files live under <prefix>/<attribute code>/<id>/<file name>, where
// id is a time-ordered UUID in a lower-case base32 alphabet.
const keyAlphabet = "abcdefghijklmnopqrstuvwxyz156789"

var keyEncoding = base32.NewEncoding(keyAlphabet).WithPadding(base32.NoPadding)

func encodeKeyID(id uuid.UUID) string {
	return keyEncoding.EncodeToString(id[:])
}

// NewObjectKey returns a fresh object key for a file uploaded to an attribute.
func NewObjectKey(prefix, attributeCode, fileName string) string {
	return objectKey(prefix, attributeCode, uuid.Must(uuid.NewV7()), fileName)
}

func objectKey(prefix, attributeCode string, id uuid.UUID, fileName string) string {
	parts := make([]string, 0, 4)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, attributeCode, encodeKeyID(id), cleanFileName(fileName))
	return strings.Join(parts, "/")
}

func cleanFileName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, base)
	if base == "" || base == "." || base == "/" || base == ".." {
		return "file"
	}
	return base
}
