package services

import (
	"context"
	"database/sql"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guildmarket/backend/internal/audit"
	"github.com/guildmarket/backend/internal/models"
)

// MarketService owns the listing lifecycle and order fulfillment. An order
// composes the buyer debit, seller credit, fee computation, quantity
// decrement and order row into one atomic unit; any failure rolls the whole
// call back.
type MarketService struct {
	db        *sql.DB
	ledger    *LedgerService
	config    *GuildConfigService
	publisher *EventPublisher
	audit     *audit.AuditLogger
}

func NewMarketService(db *sql.DB, ledger *LedgerService, config *GuildConfigService, publisher *EventPublisher) *MarketService {
	return &MarketService{
		db:        db,
		ledger:    ledger,
		config:    config,
		publisher: publisher,
		audit:     audit.NewAuditLogger(),
	}
}

// OrderResult reports a fulfilled order.
type OrderResult struct {
	OrderID        string `json:"orderId"`
	ListingID      string `json:"listingId"`
	Total          int64  `json:"total"`
	Fee            int64  `json:"fee"`
	SellerProceeds int64  `json:"sellerProceeds"`
	ListingStatus  string `json:"listingStatus"`
}

// ComputeFee reproduces the platform fee rule exactly: the fractional rate
// is rounded to a whole percent first, then applied with integer division.
// floor(total * round(feeRate*100) / 100).
func ComputeFee(total int64, feeRate float64) int64 {
	feePercent := int64(math.Round(feeRate * 100))
	return total * feePercent / 100
}

// CreateListing puts an item up for sale.
func (s *MarketService) CreateListing(ctx context.Context, guildID, sellerID, title string, unitPrice, qty int64) (*models.Listing, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrInvalidTitle
	}
	if unitPrice < 0 {
		return nil, ErrInvalidPrice
	}
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	listing := &models.Listing{
		ListingID:    uuid.NewString(),
		GuildID:      guildID,
		SellerID:     sellerID,
		Title:        strings.TrimSpace(title),
		UnitPrice:    unitPrice,
		RemainingQty: qty,
		Status:       models.ListingStatusActive,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listings (listing_id, guild_id, seller_id, title, unit_price, remaining_qty, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		listing.ListingID, listing.GuildID, listing.SellerID, listing.Title,
		listing.UnitPrice, listing.RemainingQty, listing.Status, listing.CreatedAt, listing.UpdatedAt)
	if err != nil {
		return nil, err
	}

	log.Printf("[MARKET] Listing %s created by %s: %q x%d @ %d", listing.ListingID, sellerID, listing.Title, qty, unitPrice)
	return listing, nil
}

// CancelListing moves an Active listing to the terminal Cancelled state.
// Only the seller may cancel; Sold and Cancelled listings stay as they are.
func (s *MarketService) CancelListing(ctx context.Context, guildID, listingID, callerID string) error {
	return s.ledger.RunAtomic(ctx, func(tx *sql.Tx) error {
		var sellerID, status string
		err := tx.QueryRow(`
			SELECT seller_id, status FROM listings
			WHERE guild_id = $1 AND listing_id = $2
			FOR UPDATE`, guildID, listingID).Scan(&sellerID, &status)
		if err == sql.ErrNoRows {
			return ErrListingUnavailable
		}
		if err != nil {
			return err
		}
		if sellerID != callerID {
			return ErrNotListingOwner
		}
		if status != models.ListingStatusActive {
			return ErrListingUnavailable
		}

		_, err = tx.Exec(`
			UPDATE listings SET status = $1, updated_at = $2
			WHERE guild_id = $3 AND listing_id = $4`,
			models.ListingStatusCancelled, time.Now(), guildID, listingID)
		return err
	})
}

// PlaceOrder fulfills a purchase against an Active listing. The listing row
// is locked for the duration of the atomic unit, so two concurrent orders
// for the last unit serialize and exactly one succeeds.
func (s *MarketService) PlaceOrder(ctx context.Context, guildID, listingID, buyerID string, qty int64) (*OrderResult, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	settings, err := s.config.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	var result *OrderResult
	var debitEntry, creditEntry *models.Transaction
	err = s.ledger.RunAtomic(ctx, func(tx *sql.Tx) error {
		var sellerID, status string
		var unitPrice, remainingQty int64
		err := tx.QueryRow(`
			SELECT seller_id, unit_price, remaining_qty, status FROM listings
			WHERE guild_id = $1 AND listing_id = $2
			FOR UPDATE`, guildID, listingID).Scan(&sellerID, &unitPrice, &remainingQty, &status)
		if err == sql.ErrNoRows {
			return ErrListingUnavailable
		}
		if err != nil {
			return err
		}
		if status != models.ListingStatusActive {
			return ErrListingUnavailable
		}
		if remainingQty < qty {
			return ErrInsufficientQuantity
		}

		total := unitPrice * qty
		fee := ComputeFee(total, settings.FeeRate)
		sellerProceeds := total - fee

		debitMeta := MutationMeta{Reason: "market_purchase", Extra: models.Metadata{"listing_id": listingID}}
		creditMeta := MutationMeta{Reason: "market_sale", Fee: fee, Extra: models.Metadata{"listing_id": listingID}}

		debitEntry, creditEntry, err = s.ledger.TransferTx(tx, guildID, buyerID, sellerID, total, sellerProceeds, debitMeta, creditMeta)
		if err != nil {
			return err
		}

		newQty := remainingQty - qty
		newStatus := status
		if newQty == 0 {
			newStatus = models.ListingStatusSold
		}
		if _, err := tx.Exec(`
			UPDATE listings SET remaining_qty = $1, status = $2, updated_at = $3
			WHERE guild_id = $4 AND listing_id = $5`,
			newQty, newStatus, time.Now(), guildID, listingID); err != nil {
			return err
		}

		orderID := uuid.NewString()
		if _, err := tx.Exec(`
			INSERT INTO orders (order_id, listing_id, guild_id, buyer_id, qty, unit_price, fee, total, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			orderID, listingID, guildID, buyerID, qty, unitPrice, fee, total,
			models.OrderStatusFulfilled, time.Now()); err != nil {
			return err
		}

		result = &OrderResult{
			OrderID:        orderID,
			ListingID:      listingID,
			Total:          total,
			Fee:            fee,
			SellerProceeds: sellerProceeds,
			ListingStatus:  newStatus,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogOperation(debitEntry.TransactionID, guildID, buyerID, "ORDER_FULFILLED", result.OrderID)
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
	return result, nil
}

// GetListing fetches one listing.
func (s *MarketService) GetListing(ctx context.Context, guildID, listingID string) (*models.Listing, error) {
	listing := &models.Listing{}
	err := s.db.QueryRowContext(ctx, `
		SELECT listing_id, guild_id, seller_id, title, unit_price, remaining_qty, status, created_at, updated_at
		FROM listings
		WHERE guild_id = $1 AND listing_id = $2`, guildID, listingID).Scan(
		&listing.ListingID, &listing.GuildID, &listing.SellerID, &listing.Title,
		&listing.UnitPrice, &listing.RemainingQty, &listing.Status, &listing.CreatedAt, &listing.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrListingUnavailable
	}
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// ListActiveListings returns the guild's open listings, newest first.
func (s *MarketService) ListActiveListings(ctx context.Context, guildID string, limit int) ([]models.Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT listing_id, guild_id, seller_id, title, unit_price, remaining_qty, status, created_at, updated_at
		FROM listings
		WHERE guild_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT $3`, guildID, models.ListingStatusActive, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		var listing models.Listing
		if err := rows.Scan(
			&listing.ListingID, &listing.GuildID, &listing.SellerID, &listing.Title,
			&listing.UnitPrice, &listing.RemainingQty, &listing.Status, &listing.CreatedAt, &listing.UpdatedAt,
		); err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}
