// Package ident derives the stable record identifier from a client name.
package ident

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/starford/axanet/internal/apperr"
)

// MaxNameLen is the longest accepted display name, in runes.
const MaxNameLen = 200

// Normalize maps a display name to its identifier: NFC, lower case, letters,
// digits, '-' and '_' kept, whitespace runs folded into a single '_'.
// Everything else is dropped.
func Normalize(name string) (string, error) {
	if utf8.RuneCountInString(name) > MaxNameLen {
		return "", fmt.Errorf("%w: name longer than %d characters", apperr.ErrValidation, MaxNameLen)
	}

	var b strings.Builder
	for _, r := range norm.NFC.String(strings.ToLower(name)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	id := strings.Join(strings.Fields(b.String()), "_")
	if id == "" {
		return "", fmt.Errorf("%w: name %q has no usable characters", apperr.ErrValidation, name)
	}
	return id, nil
}

// Valid reports whether id is already in normalized form. Anything that
// passes is safe to use as a file name stem.
func Valid(id string) bool {
	got, err := Normalize(id)
	return err == nil && got == id
}
