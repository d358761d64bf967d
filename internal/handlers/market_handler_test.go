package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/guildmarket/backend/internal/models"
	"github.com/guildmarket/backend/internal/services"
	"github.com/stretchr/testify/assert"
)

func newMarketRouterForTest(t *testing.T) (*chi.Mux, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	ledger := services.NewLedgerService(db)
	config := services.NewGuildConfigService(db, nil)
	publisher := services.NewEventPublisher(nil)
	handler := NewMarketHandler(services.NewMarketService(db, ledger, config, publisher))

	r := chi.NewRouter()
	r.Use(testIdentity("guild1", "buyer1"))
	r.Post("/listings", handler.CreateListing)
	r.Get("/listings", handler.ListListings)
	r.Get("/listings/{listingID}", handler.GetListing)
	r.Delete("/listings/{listingID}", handler.CancelListing)
	r.Post("/orders", handler.PlaceOrder)
	return r, mock, db
}

func TestMarketHandler_CreateListing(t *testing.T) {
	router, mock, db := newMarketRouterForTest(t)
	defer db.Close()

	t.Run("creates a listing", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO listings").
			WillReturnResult(sqlmock.NewResult(1, 1))

		body := `{"sellerId":"seller1","title":"Iron Sword","unitPrice":100,"qty":3}`
		req := httptest.NewRequest("POST", "/listings", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var listing models.Listing
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
		assert.Equal(t, "Iron Sword", listing.Title)
		assert.Equal(t, models.ListingStatusActive, listing.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing title fails validation", func(t *testing.T) {
		body := `{"sellerId":"seller1","unitPrice":100,"qty":3}`
		req := httptest.NewRequest("POST", "/listings", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMarketHandler_PlaceOrder(t *testing.T) {
	router, mock, db := newMarketRouterForTest(t)
	defer db.Close()

	t.Run("missing listing maps to 409", func(t *testing.T) {
		mock.ExpectQuery("SELECT fee_rate, daily_claim_amount, daily_send_limit").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT seller_id, unit_price, remaining_qty, status FROM listings").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		body := `{"listingId":"nope","qty":1}`
		req := httptest.NewRequest("POST", "/orders", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("broke buyer maps to 402", func(t *testing.T) {
		mock.ExpectQuery("SELECT fee_rate, daily_claim_amount, daily_send_limit").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT seller_id, unit_price, remaining_qty, status FROM listings").
			WillReturnRows(sqlmock.NewRows([]string{"seller_id", "unit_price", "remaining_qty", "status"}).
				AddRow("seller1", 100, 1, models.ListingStatusActive))

		// both wallets provisioned and locked, then the debit comes up short
		for _, account := range []string{"buyer1", "seller1", "buyer1"} {
			mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec("INSERT INTO wallets").WillReturnResult(sqlmock.NewResult(0, 1))
			balance := int64(0)
			if account == "buyer1" {
				balance = 50
			}
			mock.ExpectQuery("SELECT w.balance, w.escrow_balance, w.version, a.frozen").
				WithArgs("guild1", account).
				WillReturnRows(sqlmock.NewRows([]string{"balance", "escrow_balance", "version", "frozen"}).
					AddRow(balance, 0, 1, false))
		}
		mock.ExpectRollback()

		body := `{"listingId":"listing-1","qty":1}`
		req := httptest.NewRequest("POST", "/orders", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		body := `{"listingId":"listing-1","qty":0}`
		req := httptest.NewRequest("POST", "/orders", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMarketHandler_ListListings(t *testing.T) {
	router, mock, db := newMarketRouterForTest(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT listing_id, guild_id, seller_id, title").
		WithArgs("guild1", models.ListingStatusActive, 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"listing_id", "guild_id", "seller_id", "title",
			"unit_price", "remaining_qty", "status", "created_at", "updated_at",
		}).AddRow("listing-1", "guild1", "seller1", "Iron Sword", 100, 3, models.ListingStatusActive, now, now))

	req := httptest.NewRequest("GET", "/listings", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["count"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
