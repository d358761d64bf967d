package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/guildmarket/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestGuildConfigService_Get(t *testing.T) {
	t.Run("unknown guild falls back to defaults", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewGuildConfigService(db, nil)

		mock.ExpectQuery("SELECT fee_rate, daily_claim_amount, daily_send_limit").
			WithArgs("new-guild").
			WillReturnError(sql.ErrNoRows)

		settings, err := service.Get(context.Background(), "new-guild")
		assert.NoError(t, err)
		assert.Equal(t, 0.08, settings.FeeRate)
		assert.Equal(t, int64(100), settings.DailyClaimAmount)
		assert.Equal(t, int64(100), settings.DailySendLimit)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("customized guild reads its stored row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewGuildConfigService(db, nil)

		mock.ExpectQuery("SELECT fee_rate, daily_claim_amount, daily_send_limit").
			WithArgs(testGuild).
			WillReturnRows(sqlmock.NewRows([]string{"fee_rate", "daily_claim_amount", "daily_send_limit", "updated_at"}).
				AddRow(0.05, 250, 1000, time.Now()))

		settings, err := service.Get(context.Background(), testGuild)
		assert.NoError(t, err)
		assert.Equal(t, 0.05, settings.FeeRate)
		assert.Equal(t, int64(250), settings.DailyClaimAmount)
		assert.Equal(t, int64(1000), settings.DailySendLimit)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cache hit skips the database", func(t *testing.T) {
		db, sqlMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		service := NewGuildConfigService(db, redisClient)

		cached, err := json.Marshal(&models.GuildSettings{
			GuildID:          testGuild,
			FeeRate:          0.1,
			DailyClaimAmount: 500,
			DailySendLimit:   2000,
		})
		assert.NoError(t, err)
		redisMock.ExpectGet("guildmarket:settings:" + testGuild).SetVal(string(cached))

		settings, err := service.Get(context.Background(), testGuild)
		assert.NoError(t, err)
		assert.Equal(t, 0.1, settings.FeeRate)
		assert.Equal(t, int64(500), settings.DailyClaimAmount)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

func TestGuildConfigService_Update(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewGuildConfigService(db, redisClient)

	sqlMock.ExpectExec("INSERT INTO guild_settings").
		WithArgs(testGuild, 0.12, int64(300), int64(500), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	redisMock.ExpectDel("guildmarket:settings:" + testGuild).SetVal(1)

	err = service.Update(context.Background(), &models.GuildSettings{
		GuildID:          testGuild,
		FeeRate:          0.12,
		DailyClaimAmount: 300,
		DailySendLimit:   500,
	})
	assert.NoError(t, err)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}
