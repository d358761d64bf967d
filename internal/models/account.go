package models

import (
	"time"
)

// Account is a guild member's identity inside the economy. Accounts are
// provisioned lazily on first reference and never deleted.
type Account struct {
	AccountID   string    `json:"account_id" db:"account_id"`
	GuildID     string    `json:"guild_id" db:"guild_id"`
	DisplayName string    `json:"display_name,omitempty" db:"display_name"`
	Frozen      bool      `json:"frozen" db:"frozen"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Wallet holds an account's spendable coins. One wallet per account, same
// lifetime; it has no identity of its own.
type Wallet struct {
	AccountID      string     `json:"account_id" db:"account_id"`
	GuildID        string     `json:"guild_id" db:"guild_id"`
	Balance        int64      `json:"wallet_balance" db:"balance"`
	EscrowBalance  int64      `json:"escrow_balance" db:"escrow_balance"`
	LastClaimAt    *time.Time `json:"last_claim_at" db:"last_claim_at"`
	CoinsSentToday int64      `json:"coins_sent_today" db:"coins_sent_today"`
	LastSendReset  string     `json:"last_send_reset" db:"last_send_reset"` // ISO date of last daily-limit reset
	Version        int        `json:"version" db:"version"`                 // for optimistic locking
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
