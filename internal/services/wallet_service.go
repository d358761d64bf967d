package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/guildmarket/backend/internal/models"
)

// ClaimWindow is the rolling wall-clock cooldown between daily claims.
// The boundary is exclusive: a claim exactly at lastClaimAt + 24h succeeds.
const ClaimWindow = 24 * time.Hour

// WalletService implements atomic credit/debit operations on member wallets:
// earn rewards, spending, the daily claim and peer transfers.
type WalletService struct {
	db        *sql.DB
	ledger    *LedgerService
	guard     *IdempotencyGuard
	config    *GuildConfigService
	publisher *EventPublisher
}

func NewWalletService(db *sql.DB, ledger *LedgerService, config *GuildConfigService, publisher *EventPublisher) *WalletService {
	return &WalletService{
		db:        db,
		ledger:    ledger,
		guard:     NewIdempotencyGuard(),
		config:    config,
		publisher: publisher,
	}
}

// EarnResult reports the outcome of an earn call. Reused is true when the
// idempotency key matched an earlier call and no new effect was applied.
type EarnResult struct {
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
	Balance       int64  `json:"walletBalance"`
	Reused        bool   `json:"reused"`
}

// ClaimResult reports a successful daily claim.
type ClaimResult struct {
	TransactionID  string    `json:"transactionId"`
	Amount         int64     `json:"amount"`
	Balance        int64     `json:"walletBalance"`
	NextEligibleAt time.Time `json:"nextEligibleAt"`
}

// TransferResult reports a peer transfer. Reused mirrors EarnResult.
type TransferResult struct {
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
	Reused        bool   `json:"reused"`
}

// Earn credits a wallet. With an idempotency key, at most one effect is
// applied no matter how many times the request is retried; duplicates replay
// the original transaction.
func (s *WalletService) Earn(ctx context.Context, guildID, accountID string, amount int64, reason, idempotencyKey string) (*EarnResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var result *EarnResult
	err := s.ledger.RunAtomic(ctx, func(tx *sql.Tx) error {
		if idempotencyKey != "" {
			txID, found, err := s.guard.RecallTx(tx, OpKindEarn, idempotencyKey)
			if err != nil {
				return err
			}
			if found {
				entry, err := s.ledger.FetchTransactionTx(tx, txID)
				if err != nil {
					return err
				}
				result = &EarnResult{
					TransactionID: entry.TransactionID,
					Amount:        entry.Amount,
					Balance:       entry.AfterBalance,
					Reused:        true,
				}
				return nil
			}
		}

		meta := MutationMeta{Reason: reason}
		if idempotencyKey != "" {
			meta.IdempotencyKey = &idempotencyKey
		}

		entry, err := s.ledger.ApplyMutationTx(tx, guildID, accountID, models.TxTypeEarn, amount, meta)
		if err != nil {
			return err
		}

		if idempotencyKey != "" {
			if err := s.guard.RecordTx(tx, OpKindEarn, idempotencyKey, entry.TransactionID); err != nil {
				return err
			}
		}

		result = &EarnResult{
			TransactionID: entry.TransactionID,
			Amount:        entry.Amount,
			Balance:       entry.AfterBalance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Reused {
		s.publisher.Publish(ctx, TransactionCommittedEvent{
			TransactionID: result.TransactionID,
			Type:          models.TxTypeEarn,
			GuildID:       guildID,
			ActorID:       accountID,
			Amount:        amount,
			CreatedAt:     time.Now().UTC(),
		})
	}
	return result, nil
}

// Spend debits a wallet. Idempotency is the composing layer's concern; the
// marketplace wraps spends inside its own atomic unit.
func (s *WalletService) Spend(ctx context.Context, guildID, accountID string, amount int64, reason string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var entry *models.Transaction
	err := s.ledger.RunAtomic(ctx, func(tx *sql.Tx) error {
		var err error
		entry, err = s.ledger.ApplyMutationTx(tx, guildID, accountID, models.TxTypeSpend, amount, MutationMeta{Reason: reason})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, TransactionCommittedEvent{
		TransactionID: entry.TransactionID,
		Type:          entry.Type,
		GuildID:       guildID,
		ActorID:       accountID,
		Amount:        entry.Amount,
		CreatedAt:     entry.CreatedAt,
	})
	return entry, nil
}

// ClaimDaily credits the guild's configured daily amount at most once per
// rolling 24-hour window. Updating last_claim_at and crediting the wallet
// commit together; a cooldown rejection mutates nothing.
func (s *WalletService) ClaimDaily(ctx context.Context, guildID, accountID string) (*ClaimResult, error) {
	settings, err := s.config.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	var result *ClaimResult
	err = s.ledger.RunAtomic(ctx, func(tx *sql.Tx) error {
		if err := s.ledger.ensureWalletTx(tx, guildID, accountID); err != nil {
			return err
		}

		var lastClaim sql.NullTime
		if err := tx.QueryRow(`
			SELECT last_claim_at FROM wallets
			WHERE guild_id = $1 AND account_id = $2
			FOR UPDATE`, guildID, accountID).Scan(&lastClaim); err != nil {
			return err
		}

		now := time.Now().UTC()
		if lastClaim.Valid && now.Sub(lastClaim.Time) < ClaimWindow {
			return &CooldownError{NextEligibleAt: lastClaim.Time.Add(ClaimWindow)}
		}

		if _, err := tx.Exec(`
			UPDATE wallets SET last_claim_at = $1, updated_at = $1
			WHERE guild_id = $2 AND account_id = $3`, now, guildID, accountID); err != nil {
			return err
		}

		entry, err := s.ledger.ApplyMutationTx(tx, guildID, accountID, models.TxTypeEarn, settings.DailyClaimAmount, MutationMeta{Reason: "daily_claim"})
		if err != nil {
			return err
		}

		result = &ClaimResult{
			TransactionID:  entry.TransactionID,
			Amount:         entry.Amount,
			Balance:        entry.AfterBalance,
			NextEligibleAt: now.Add(ClaimWindow),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, TransactionCommittedEvent{
		TransactionID: result.TransactionID,
		Type:          models.TxTypeEarn,
		GuildID:       guildID,
		ActorID:       accountID,
		Amount:        result.Amount,
		CreatedAt:     time.Now().UTC(),
	})
	return result, nil
}

// Transfer sends coins to another member, subject to the guild's daily send
// limit. Both wallet movements and the sender's daily counter update commit
// as one atomic unit.
func (s *WalletService) Transfer(ctx context.Context, guildID, fromAccountID, toAccountID string, amount int64, idempotencyKey string) (*TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromAccountID == toAccountID {
		return nil, ErrSelfTransfer
	}

	settings, err := s.config.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	var result *TransferResult
	var debitEntry, creditEntry *models.Transaction
	err = s.ledger.RunAtomic(ctx, func(tx *sql.Tx) error {
		if idempotencyKey != "" {
			txID, found, err := s.guard.RecallTx(tx, OpKindTransfer, idempotencyKey)
			if err != nil {
				return err
			}
			if found {
				entry, err := s.ledger.FetchTransactionTx(tx, txID)
				if err != nil {
					return err
				}
				result = &TransferResult{TransactionID: entry.TransactionID, Amount: entry.Amount, Reused: true}
				return nil
			}
		}

		if err := s.ledger.ensureWalletTx(tx, guildID, fromAccountID); err != nil {
			return err
		}

		var coinsSentToday int64
		var lastSendReset string
		if err := tx.QueryRow(`
			SELECT coins_sent_today, last_send_reset FROM wallets
			WHERE guild_id = $1 AND account_id = $2
			FOR UPDATE`, guildID, fromAccountID).Scan(&coinsSentToday, &lastSendReset); err != nil {
			return err
		}

		today := time.Now().UTC().Format("2006-01-02")
		if lastSendReset != today {
			coinsSentToday = 0
		}
		if coinsSentToday+amount > settings.DailySendLimit {
			return ErrDailySendLimit
		}

		debitMeta := MutationMeta{Reason: "transfer_out", Extra: models.Metadata{"to_account": toAccountID}}
		if idempotencyKey != "" {
			debitMeta.IdempotencyKey = &idempotencyKey
		}
		creditMeta := MutationMeta{Reason: "transfer_in", Extra: models.Metadata{"from_account": fromAccountID}}

		var err error
		debitEntry, creditEntry, err = s.ledger.TransferTx(tx, guildID, fromAccountID, toAccountID, amount, amount, debitMeta, creditMeta)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`
			UPDATE wallets SET coins_sent_today = $1, last_send_reset = $2
			WHERE guild_id = $3 AND account_id = $4`,
			coinsSentToday+amount, today, guildID, fromAccountID); err != nil {
			return err
		}

		if idempotencyKey != "" {
			if err := s.guard.RecordTx(tx, OpKindTransfer, idempotencyKey, debitEntry.TransactionID); err != nil {
				return err
			}
		}

		result = &TransferResult{TransactionID: debitEntry.TransactionID, Amount: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Reused {
		for _, entry := range []*models.Transaction{debitEntry, creditEntry} {
			s.publisher.Publish(ctx, TransactionCommittedEvent{
				TransactionID: entry.TransactionID,
				Type:          entry.Type,
				GuildID:       guildID,
				ActorID:       entry.AccountID,
				Amount:        entry.Amount,
				CreatedAt:     entry.CreatedAt,
			})
		}
	}
	return result, nil
}

// GetWallet returns current wallet state for an account.
func (s *WalletService) GetWallet(ctx context.Context, guildID, accountID string) (*models.Wallet, error) {
	wallet := &models.Wallet{GuildID: guildID, AccountID: accountID}
	var lastClaim sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT balance, escrow_balance, last_claim_at FROM wallets
		WHERE guild_id = $1 AND account_id = $2`, guildID, accountID).Scan(
		&wallet.Balance, &wallet.EscrowBalance, &lastClaim)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastClaim.Valid {
		wallet.LastClaimAt = &lastClaim.Time
	}
	return wallet, nil
}

// GetTransactions returns an account's most recent ledger entries, newest
// first.
func (s *WalletService) GetTransactions(ctx context.Context, guildID, accountID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, guild_id, account_id, type, amount, fee, before_balance, after_balance, created_at
		FROM transactions
		WHERE guild_id = $1 AND account_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, guildID, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var entry models.Transaction
		if err := rows.Scan(
			&entry.TransactionID, &entry.GuildID, &entry.AccountID, &entry.Type,
			&entry.Amount, &entry.Fee, &entry.BeforeBalance, &entry.AfterBalance, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, entry)
	}
	return transactions, rows.Err()
}
