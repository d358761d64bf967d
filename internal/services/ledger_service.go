package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/guildmarket/backend/internal/audit"
	"github.com/guildmarket/backend/internal/models"
)

// LedgerService is the substrate every other service builds on: durable
// wallet state plus an append-only transaction log. All mutations run inside
// an explicit atomic unit (RunAtomic) and serialize per wallet through row
// locks, so no caller ever observes an intermediate state.
type LedgerService struct {
	db    *sql.DB
	audit *audit.AuditLogger
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:    db,
		audit: audit.NewAuditLogger(),
	}
}

// MutationMeta carries the context attached to a single ledger mutation.
type MutationMeta struct {
	Reason         string
	Fee            int64
	IdempotencyKey *string
	Extra          models.Metadata
}

type walletState struct {
	Balance       int64
	EscrowBalance int64
	Version       int
	Frozen        bool
}

// RunAtomic executes fn inside one database transaction. Any error aborts
// the whole unit; commit makes every write visible at once. This is the
// atomic-unit boundary for single mutations, transfers and order fulfillment
// alike.
func (s *LedgerService) RunAtomic(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin atomic unit: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// ApplyMutationTx credits or debits one wallet and appends the matching
// ledger row. The wallet row is locked FOR UPDATE for the remainder of the
// enclosing transaction; accounts are provisioned lazily on first reference.
func (s *LedgerService) ApplyMutationTx(tx *sql.Tx, guildID, accountID, txType string, amount int64, meta MutationMeta) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if err := s.ensureWalletTx(tx, guildID, accountID); err != nil {
		return nil, err
	}

	state, err := s.lockWalletTx(tx, guildID, accountID)
	if err != nil {
		return nil, err
	}

	if state.Frozen {
		return nil, ErrAccountFrozen
	}

	before := state.Balance
	var after int64
	switch txType {
	case models.TxTypeEarn:
		after = before + amount
	case models.TxTypeSpend:
		after = before - amount
	default:
		return nil, fmt.Errorf("unknown transaction type %q", txType)
	}

	if after < 0 {
		return nil, ErrInsufficientFunds
	}

	if err := s.updateWalletBalanceTx(tx, guildID, accountID, after, state.Version); err != nil {
		return nil, err
	}

	entry := &models.Transaction{
		TransactionID:  uuid.NewString(),
		GuildID:        guildID,
		AccountID:      accountID,
		Type:           txType,
		Amount:         amount,
		Fee:            meta.Fee,
		BeforeBalance:  before,
		AfterBalance:   after,
		Metadata:       buildMetadata(meta),
		IdempotencyKey: meta.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.appendTransactionTx(tx, entry); err != nil {
		return nil, err
	}

	s.audit.LogMutation(entry.TransactionID, guildID, accountID, txType, amount)
	return entry, nil
}

// TransferTx moves coins between two wallets inside one atomic unit: the
// debit and credit commit together or not at all. Wallet locks are acquired
// in account-id order so concurrent opposite-direction transfers cannot
// deadlock.
func (s *LedgerService) TransferTx(tx *sql.Tx, guildID, fromAccountID, toAccountID string, debitAmount, creditAmount int64, debitMeta, creditMeta MutationMeta) (*models.Transaction, *models.Transaction, error) {
	firstLock, secondLock := fromAccountID, toAccountID
	if fromAccountID > toAccountID {
		firstLock, secondLock = toAccountID, fromAccountID
	}

	for _, accountID := range []string{firstLock, secondLock} {
		if err := s.ensureWalletTx(tx, guildID, accountID); err != nil {
			return nil, nil, err
		}
		if _, err := s.lockWalletTx(tx, guildID, accountID); err != nil {
			return nil, nil, err
		}
	}

	debitTx, err := s.ApplyMutationTx(tx, guildID, fromAccountID, models.TxTypeSpend, debitAmount, debitMeta)
	if err != nil {
		s.audit.LogError("", guildID, fromAccountID, err)
		return nil, nil, err
	}

	creditTx, err := s.ApplyMutationTx(tx, guildID, toAccountID, models.TxTypeEarn, creditAmount, creditMeta)
	if err != nil {
		s.audit.LogError(debitTx.TransactionID, guildID, toAccountID, err)
		return nil, nil, err
	}

	s.audit.LogTransfer(debitTx.TransactionID, guildID, fromAccountID, toAccountID, debitAmount, "SUCCESS")
	return debitTx, creditTx, nil
}

// FetchTransactionTx loads a previously committed ledger entry, used to
// replay results for duplicate idempotency keys.
func (s *LedgerService) FetchTransactionTx(tx *sql.Tx, transactionID string) (*models.Transaction, error) {
	entry := &models.Transaction{}
	err := tx.QueryRow(`
		SELECT transaction_id, guild_id, account_id, type, amount, fee, before_balance, after_balance, created_at
		FROM transactions
		WHERE transaction_id = $1`, transactionID).Scan(
		&entry.TransactionID, &entry.GuildID, &entry.AccountID, &entry.Type,
		&entry.Amount, &entry.Fee, &entry.BeforeBalance, &entry.AfterBalance, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *LedgerService) ensureWalletTx(tx *sql.Tx, guildID, accountID string) error {
	if _, err := tx.Exec(`
		INSERT INTO accounts (guild_id, account_id, frozen, created_at)
		VALUES ($1, $2, FALSE, $3)
		ON CONFLICT (guild_id, account_id) DO NOTHING`,
		guildID, accountID, time.Now()); err != nil {
		return err
	}

	_, err := tx.Exec(`
		INSERT INTO wallets (guild_id, account_id, balance, escrow_balance, coins_sent_today, last_send_reset, version, updated_at)
		VALUES ($1, $2, 0, 0, 0, $3, 1, $4)
		ON CONFLICT (guild_id, account_id) DO NOTHING`,
		guildID, accountID, time.Now().UTC().Format("2006-01-02"), time.Now())
	return err
}

func (s *LedgerService) lockWalletTx(tx *sql.Tx, guildID, accountID string) (*walletState, error) {
	var state walletState
	err := tx.QueryRow(`
		SELECT w.balance, w.escrow_balance, w.version, a.frozen
		FROM wallets w
		JOIN accounts a ON a.guild_id = w.guild_id AND a.account_id = w.account_id
		WHERE w.guild_id = $1 AND w.account_id = $2
		FOR UPDATE OF w`, guildID, accountID).Scan(
		&state.Balance, &state.EscrowBalance, &state.Version, &state.Frozen)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *LedgerService) updateWalletBalanceTx(tx *sql.Tx, guildID, accountID string, newBalance int64, version int) error {
	result, err := tx.Exec(`
		UPDATE wallets
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE guild_id = $3 AND account_id = $4 AND version = $5`,
		newBalance, time.Now(), guildID, accountID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %s", accountID)
	}

	return nil
}

func (s *LedgerService) appendTransactionTx(tx *sql.Tx, entry *models.Transaction) error {
	_, err := tx.Exec(`
		INSERT INTO transactions
		(transaction_id, guild_id, account_id, type, amount, fee, before_balance, after_balance, metadata, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.TransactionID, entry.GuildID, entry.AccountID, entry.Type, entry.Amount,
		entry.Fee, entry.BeforeBalance, entry.AfterBalance, entry.Metadata,
		entry.IdempotencyKey, entry.CreatedAt)
	return err
}

func buildMetadata(meta MutationMeta) models.Metadata {
	md := models.Metadata{}
	for k, v := range meta.Extra {
		md[k] = v
	}
	if meta.Reason != "" {
		md["reason"] = meta.Reason
	}
	return md
}
