package services

import (
	"database/sql"
	"time"
)

// Operation kinds scoping idempotency keys. Identical keys under different
// kinds never collide.
const (
	OpKindEarn     = "earn"
	OpKindTransfer = "transfer"
)

// IdempotencyGuard deduplicates externally retried mutating requests.
// The record insert rides the same database transaction as the guarded
// mutation, so "applied" and "remembered" commit together.
type IdempotencyGuard struct{}

func NewIdempotencyGuard() *IdempotencyGuard {
	return &IdempotencyGuard{}
}

// RecallTx looks up a previously applied operation. Returns the transaction
// id it produced and whether a record was found.
func (g *IdempotencyGuard) RecallTx(tx *sql.Tx, operationKind, key string) (string, bool, error) {
	var transactionID string
	err := tx.QueryRow(`
		SELECT transaction_id FROM idempotency_records
		WHERE operation_kind = $1 AND idempotency_key = $2`,
		operationKind, key).Scan(&transactionID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return transactionID, true, nil
}

// RecordTx persists the (kind, key) -> transaction mapping inside the same
// atomic unit as the mutation it guards.
func (g *IdempotencyGuard) RecordTx(tx *sql.Tx, operationKind, key, transactionID string) error {
	_, err := tx.Exec(`
		INSERT INTO idempotency_records (operation_kind, idempotency_key, transaction_id, created_at)
		VALUES ($1, $2, $3, $4)`,
		operationKind, key, transactionID, time.Now())
	return err
}
