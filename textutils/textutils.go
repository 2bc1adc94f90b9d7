// Package textutils provides named constants for common ASCII characters
// and short strings, so call sites read as intent rather than rune/byte
// literals.
package textutils

const (
	// AUpperChar is the rune 'A'.
	AUpperChar = 'A'
	// ZUpperChar is the rune 'Z'.
	ZUpperChar = 'Z'
	// ALowerChar is the rune 'a'.
	ALowerChar = 'a'
	// ZLowerChar is the rune 'z'.
	ZLowerChar = 'z'

	// ForwardSlashChar is the rune '/'.
	ForwardSlashChar = '/'
	// BackSlashChar is the rune '\\'.
	BackSlashChar = '\\'
	// ColonChar is the rune ':'.
	ColonChar = ':'
	// EqualChar is the rune '='.
	EqualChar = '='
	// DollarChar is the rune '$'.
	DollarChar = '$'
	// HashChar is the rune '#'.
	HashChar = '#'
	// OpenBraceChar is the rune '{'.
	OpenBraceChar = '{'
	// CloseBraceChar is the rune '}'.
	CloseBraceChar = '}'

	// EmptyStr is the empty string.
	EmptyStr = ""
	// WhiteSpaceStr is a single space.
	WhiteSpaceStr = " "
	// ForwardSlashStr is "/".
	ForwardSlashStr = "/"
	// BackSlashStr is "\\".
	BackSlashStr = "\\"
	// ColonStr is ":".
	ColonStr = ":"
	// SemiColonStr is ";".
	SemiColonStr = ";"
	// PeriodStr is ".".
	PeriodStr = "."
	// EqualStr is "=".
	EqualStr = "="
	// OpenBraceStr is "{".
	OpenBraceStr = "{"
	// CloseBraceStr is "}".
	CloseBraceStr = "}"
	// NewLineString is "\n".
	NewLineString = "\n"
)
