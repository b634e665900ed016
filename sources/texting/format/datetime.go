package format

import (
	"time"
)

func Ageify(now, createdAt time.Time) string {
	age := now.Sub(createdAt)

	days := int(age.Hours() / 24)

	if days <= 0 {
		return "today"
	}

	if days < 7 {
		return Pluralify(days, "day", "days") + " ago"
	}

	weeks := days / 7
	if weeks < 5 {
		return Pluralify(weeks, "week", "weeks") + " ago"
	}

	months := days / 30
	if months < 12 {
		return Pluralify(max(months, 1), "month", "months") + " ago"
	}

	years := days / 365
	return Pluralify(max(years, 1), "year", "years") + " ago"
}
