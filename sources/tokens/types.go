package tokens

import (
	"colabai/sources/persistence/entities"

	"github.com/google/uuid"
)

const (
	ReasonLimitExceeded  = "Monthly token limit exceeded"
	ReasonNotInitialized = "Token tracking not initialized"
)

type LimitStatus struct {
	HasTokens       bool   `json:"has_tokens"`
	AvailableTokens int64  `json:"available_tokens"`
	MonthlyLimit    int64  `json:"monthly_limit"`
	MonthlyUsed     int64  `json:"monthly_used"`
	TotalUsed       int64  `json:"total_used"`
	PurchasedTokens int64  `json:"purchased_tokens"`
	Reason          string `json:"reason,omitempty"`
	NeedsReset      bool   `json:"needs_reset"`
}

type UsageInput struct {
	UserID       uuid.UUID
	ChatID       uuid.UUID
	Command      string
	TokensUsed   int64
	InputTokens  *int64
	OutputTokens *int64
}

type UsageOutcome struct {
	TotalUsed       int64 `json:"total_used"`
	MonthlyUsed     int64 `json:"monthly_used"`
	RemainingTokens int64 `json:"remaining_tokens"`
}

type PurchaseInput struct {
	TokensAdded     int64
	AmountPaid      int64
	PaymentProvider string
	PaymentID       string
}

type PurchaseOutcome struct {
	NewBalance     int64 `json:"new_balance"`
	TotalAvailable int64 `json:"total_available"`
}

type Stats struct {
	TotalTokensUsed   int64                      `json:"total_tokens_used"`
	MonthlyTokensUsed int64                      `json:"monthly_tokens_used"`
	MonthlyLimit      int64                      `json:"monthly_limit"`
	PurchasedTokens   int64                      `json:"purchased_tokens"`
	AvailableTokens   int64                      `json:"available_tokens"`
	LastResetDate     string                     `json:"last_reset_date"`
	RecentUsage       []*entities.UsageRecord    `json:"recent_usage"`
	MonthlyPurchases  []*entities.PurchaseRecord `json:"monthly_purchases"`
}
