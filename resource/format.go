package resource

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UpperCamelCase converts snake_case to UpperCamelCase: "order_bot" becomes
// "OrderBot". Letters after the first of each word keep their case.
func UpperCamelCase(s string) string {
	// Casers keep state between calls and are not safe for concurrent use.
	title := cases.Title(language.Und, cases.NoLower)

	var b strings.Builder
	b.Grow(len(s))
	for _, word := range strings.Fields(strings.ReplaceAll(s, "_", " ")) {
		b.WriteString(title.String(word))
	}
	return b.String()
}

// LowerCamelCase converts snake_case to lowerCamelCase: "order_bot" becomes
// "orderBot".
func LowerCamelCase(s string) string {
	upper := UpperCamelCase(s)
	_, size := utf8.DecodeRuneInString(upper)
	return cases.Lower(language.Und).String(upper[:size]) + upper[size:]
}

// OnlyNumbers strips everything except the ASCII digits from s.
func OnlyNumbers(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
