package todo

import (
	"strings"
	"unicode/utf8"
)

// MaxNameLength matches the varchar(255) name columns
const MaxNameLength = 255

// NullCharacterMessage is reported for text containing U+0000, which
// PostgreSQL text columns cannot store.
const NullCharacterMessage = "null characters are not allowed"

// cleanName trims name and checks it is present, non-blank, storable and
// short enough
func cleanName(name *string) (string, error) {
	if name == nil {
		return "", invalid("name", "this field is required")
	}

	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return "", invalid("name", "this field may not be blank")
	}
	if strings.ContainsRune(trimmed, 0) {
		return "", invalid("name", NullCharacterMessage)
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return "", invalid("name", "ensure this field has no more than 255 characters")
	}
	return trimmed, nil
}
