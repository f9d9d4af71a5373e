package types

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatBytes renders a byte count with grouped digits for diagnostic
// dumps, e.g. 1,073,741,824 B (262,144 pages).
func FormatBytes(n uint64) string {
	return printer.Sprintf("%d B (%d pages)", n, n/PageSize)
}

// FormatCount renders a plain count with grouped digits.
func FormatCount(n uint64) string {
	return printer.Sprintf("%d", n)
}
