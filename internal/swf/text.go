package swf

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"necroverse/internal/bitio"
)

// UTF8Version is the first container version whose strings are UTF-8.
// Earlier versions store Windows-1252.
const UTF8Version = 6

// DecodeString converts raw container string bytes for the given version.
// Invalid UTF-8 in a newer container is decoded as Windows-1252 instead of
// being replaced.
func DecodeString(b []byte, version uint8) string {
	if version >= UTF8Version && utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// EncodeString is the inverse of DecodeString for fixtures.
func EncodeString(s string, version uint8) []byte {
	if version >= UTF8Version {
		return []byte(s)
	}
	out, err := charmap.Windows1252.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}

func readString(r *bitio.Reader, version uint8) (string, error) {
	b, err := r.CString()
	if err != nil {
		return "", err
	}
	return DecodeString(b, version), nil
}
