package tokens

import (
	"time"

	"colabai/sources/persistence/entities"
)

// MonthKey formats t as the "YYYY-MM" reset marker of the month it falls in within loc.
func MonthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(entities.MonthLayout)
}

// MonthStart returns midnight of the first day of t's month in loc.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// ResetIfStale rolls the monthly counter over when the ledger was last reset in another month.
// It reports whether the ledger was changed.
func ResetIfStale(ledger *entities.TokenLedger, month string, now time.Time) bool {
	if ledger.LastResetDate == month {
		return false
	}

	ledger.MonthlyTokensUsed = 0
	ledger.LastResetDate = month
	ledger.UpdatedAt = now
	return true
}

// AvailableTokens may be negative once usage has been recorded past the allowance.
func AvailableTokens(ledger *entities.TokenLedger) int64 {
	return ledger.MonthlyLimit + ledger.PurchasedTokens - ledger.MonthlyTokensUsed
}
