package services

import (
	"context"
	"database/sql"
	"log"
)

// AccountService covers administrative account operations and read-side
// queries that span accounts.
type AccountService struct {
	db *sql.DB
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{db: db}
}

// LeaderboardEntry is one row of the guild leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName,omitempty"`
	Balance     int64  `json:"walletBalance"`
}

// SetFrozen toggles the frozen flag. Frozen accounts reject every balance
// mutation until unfrozen; existing state is untouched.
func (s *AccountService) SetFrozen(ctx context.Context, guildID, accountID string, frozen bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET frozen = $1
		WHERE guild_id = $2 AND account_id = $3`,
		frozen, guildID, accountID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrAccountNotFound
	}

	log.Printf("[ACCOUNT] Account %s/%s frozen=%v", guildID, accountID, frozen)
	return nil
}

// SetDisplayName records the member's current display name for leaderboard
// rendering.
func (s *AccountService) SetDisplayName(ctx context.Context, guildID, accountID, displayName string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET display_name = $1
		WHERE guild_id = $2 AND account_id = $3`,
		displayName, guildID, accountID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Leaderboard returns the guild's richest wallets. Limit is capped at 20.
func (s *AccountService) Leaderboard(ctx context.Context, guildID string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 20 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT w.account_id, COALESCE(a.display_name, ''), w.balance
		FROM wallets w
		JOIN accounts a ON a.guild_id = w.guild_id AND a.account_id = w.account_id
		WHERE w.guild_id = $1
		ORDER BY w.balance DESC, w.account_id ASC
		LIMIT $2`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	for rows.Next() {
		entry := LeaderboardEntry{Rank: len(entries) + 1}
		if err := rows.Scan(&entry.AccountID, &entry.DisplayName, &entry.Balance); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
