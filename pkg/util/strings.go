package util

import "strings"

// NormalizeSymbol upper-cases an instrument id and trims whitespace.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
