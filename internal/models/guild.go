package models

import "time"

// GuildSettings is per-guild economy configuration. The engine reads it as
// input; it is owned by guild administrators, not by the engine.
type GuildSettings struct {
	GuildID          string    `json:"guild_id" db:"guild_id"`
	FeeRate          float64   `json:"fee_rate" db:"fee_rate" validate:"gte=0,lte=1"` // fraction, e.g. 0.08
	DailyClaimAmount int64     `json:"daily_claim_amount" db:"daily_claim_amount" validate:"gte=0"`
	DailySendLimit   int64     `json:"daily_send_limit" db:"daily_send_limit" validate:"gte=0"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}
