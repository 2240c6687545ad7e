package security

import (
	"strings"
	"unicode/utf8"
)

// PasswordSymbols are the special characters a strong password may use.
const PasswordSymbols = "@$!%*?&"

const (
	// MinPasswordLen counts characters.
	MinPasswordLen = 8
	// MaxPasswordLen counts bytes; bcrypt refuses anything longer.
	MaxPasswordLen = 72
)

// StrongPassword reports whether s has at least one letter, one digit and
// one symbol from PasswordSymbols. Length is checked separately.
func StrongPassword(s string) bool {
	var letter, digit, symbol bool

	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}

	return letter && digit && symbol
}

// PasswordProblem returns a user-facing reason p is rejected, or "" if it is
// acceptable.
func PasswordProblem(p string) string {
	switch {
	case utf8.RuneCountInString(p) < MinPasswordLen:
		return "Password must be at least 8 characters"
	case len(p) > MaxPasswordLen:
		return "Password must be at most 72 bytes"
	case !StrongPassword(p):
		return "Password must contain a letter, a digit and one of " + PasswordSymbols
	}
	return ""
}
