package entities

import (
	"time"

	"github.com/google/uuid"
)

type (
	TokenLedger struct {
		ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
		UserID            uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
		TotalTokensUsed   int64     `gorm:"not null" json:"total_tokens_used"`
		MonthlyTokensUsed int64     `gorm:"not null" json:"monthly_tokens_used"`
		MonthlyLimit      int64     `gorm:"not null" json:"monthly_limit"`
		PurchasedTokens   int64     `gorm:"not null" json:"purchased_tokens"`
		LastResetDate     string    `gorm:"size:7;not null" json:"last_reset_date"`
		CreatedAt         time.Time `gorm:"not null;autoCreateTime:false" json:"created_at"`
		UpdatedAt         time.Time `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
	}

	UsageRecord struct {
		ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
		UserID       uuid.UUID `gorm:"type:uuid;not null;index:idx_usage_user_time,priority:1" json:"user_id"`
		ChatID       uuid.UUID `gorm:"type:uuid;not null;index" json:"chat_id"`
		Command      string    `gorm:"size:64;not null" json:"command"`
		TokensUsed   int64     `gorm:"not null" json:"tokens_used"`
		InputTokens  *int64    `json:"input_tokens,omitempty"`
		OutputTokens *int64    `json:"output_tokens,omitempty"`
		Cost         *int64    `json:"cost,omitempty"`
		Timestamp    time.Time `gorm:"column:recorded_at;not null;index:idx_usage_user_time,priority:2,sort:desc" json:"timestamp"`
	}

	PurchaseRecord struct {
		ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
		UserID          uuid.UUID `gorm:"type:uuid;not null;index:idx_purchase_user_time,priority:1" json:"user_id"`
		TokensAdded     int64     `gorm:"not null" json:"tokens_added"`
		AmountPaid      int64     `gorm:"not null" json:"amount_paid"`
		PaymentProvider string    `gorm:"size:64;not null" json:"payment_provider"`
		PaymentID       string    `gorm:"size:255;not null;index" json:"payment_id"`
		Timestamp       time.Time `gorm:"column:purchased_at;not null;index:idx_purchase_user_time,priority:2" json:"timestamp"`
	}

	Session struct {
		ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
		Token     string    `gorm:"size:255;uniqueIndex;not null" json:"-"`
		UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
		ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
		CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	}
)

func (TokenLedger) TableName() string    { return "colab_token_ledgers" }
func (UsageRecord) TableName() string    { return "colab_token_usage" }
func (PurchaseRecord) TableName() string { return "colab_token_purchases" }
func (Session) TableName() string        { return "colab_sessions" }

// All lists every entity managed by migrations.
func All() []any {
	return []any{&TokenLedger{}, &UsageRecord{}, &PurchaseRecord{}, &Session{}}
}
