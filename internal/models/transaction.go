package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Transaction type constants. Amount is always stored positive; the type
// carries the direction.
const (
	TxTypeEarn  = "EARN"
	TxTypeSpend = "SPEND"
)

// Transaction is an immutable ledger entry. Rows are never updated or
// deleted; the transactions table is the audit trail for all coin movement.
type Transaction struct {
	ID             int       `json:"id" db:"id"`
	TransactionID  string    `json:"transaction_id" db:"transaction_id"`
	GuildID        string    `json:"guild_id" db:"guild_id"`
	AccountID      string    `json:"account_id" db:"account_id"`
	Type           string    `json:"type" db:"type"` // EARN or SPEND
	Amount         int64     `json:"amount" db:"amount"`
	Fee            int64     `json:"fee" db:"fee"` // 0 unless a sale
	BeforeBalance  int64     `json:"before_balance" db:"before_balance"`
	AfterBalance   int64     `json:"after_balance" db:"after_balance"`
	Metadata       Metadata  `json:"metadata" db:"metadata"`
	IdempotencyKey *string   `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// IdempotencyRecord maps (operation_kind, idempotency_key) to the transaction
// it produced, so retried requests replay the original result instead of
// applying a second effect.
type IdempotencyRecord struct {
	ID             int       `json:"id" db:"id"`
	OperationKind  string    `json:"operation_kind" db:"operation_kind"`
	IdempotencyKey string    `json:"idempotency_key" db:"idempotency_key"`
	TransactionID  string    `json:"transaction_id" db:"transaction_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Metadata type for JSONB fields
type Metadata map[string]any

// Value implements driver.Valuer for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Metadata
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}
