package format

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var en = message.NewPrinter(language.English)

func Numberify(value int64) string {
	return en.Sprintf("%d", value)
}

// Percentify renders part of whole, "n/a" when whole is not positive.
func Percentify(part, whole int64) string {
	if whole <= 0 {
		return "n/a"
	}
	return en.Sprintf("%.1f%%", float64(part)*100/float64(whole))
}
