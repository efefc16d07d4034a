package domain

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var enPrinter = message.NewPrinter(language.English)

// FormatAmount renders v with thousands separators and two decimals, e.g.
// 87000 -> "87,000.00".
func FormatAmount(v float64) string {
	return enPrinter.Sprintf("%.2f", v)
}
