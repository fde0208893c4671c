// Package validators holds argument validators shared by commands and
// argument tables.
package validators

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agilira/go-errors"
)

const (
	ErrCodeInvalidTag      = "AZCHAIN_INVALID_TAG"
	ErrCodeWeakPassword    = "AZCHAIN_WEAK_PASSWORD"
	MinPasswordLength      = 12
	MaxPasswordLength      = 123
	requiredPasswordGroups = 3
)

// ParseTags turns "key=value" items into a map. The split is on the first
// '=', so values may contain '='. A bare "key" maps to "". A single empty
// item means "no tags". Later duplicates win.
func ParseTags(items []string) (map[string]string, error) {
	tags := make(map[string]string, len(items))
	if len(items) == 1 && items[0] == "" {
		return tags, nil
	}

	for _, item := range items {
		key, value, _ := strings.Cut(item, "=")
		if key == "" {
			return nil, errors.New(ErrCodeInvalidTag,
				fmt.Sprintf("invalid tag %q: expected key[=value] with a non-empty key", item)).
				WithContext("tag", item)
		}
		tags[key] = value
	}
	return tags, nil
}

// ValidatePassword checks length and that at least three of the four
// character groups (lowercase, uppercase, digit, special) are present.
func ValidatePassword(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return errors.New(ErrCodeWeakPassword,
			fmt.Sprintf("password must be between %d and %d characters long (got %d)", MinPasswordLength, MaxPasswordLength, n)).
			WithContext("length", n)
	}

	var lower, upper, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsSpace(r):
			special = true
		}
	}

	var missing []string
	for _, g := range []struct {
		name    string
		present bool
	}{
		{"a lowercase letter", lower},
		{"an uppercase letter", upper},
		{"a digit", digit},
		{"a special character", special},
	} {
		if !g.present {
			missing = append(missing, g.name)
		}
	}

	if 4-len(missing) < requiredPasswordGroups {
		return errors.New(ErrCodeWeakPassword,
			fmt.Sprintf("password must contain at least %d of: lowercase, uppercase, digit, special; missing %s",
				requiredPasswordGroups, strings.Join(missing, ", "))).
			WithContext("missing", strings.Join(missing, ","))
	}
	return nil
}
