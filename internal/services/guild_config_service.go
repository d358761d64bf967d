package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/guildmarket/backend/internal/models"
	"github.com/spf13/viper"
)

const settingsCacheTTL = 30 * time.Second

// GuildConfigService reads per-guild economy configuration (fee rate, daily
// claim amount, daily send limit). The engine treats settings as read-only
// input; guild admins own them. Reads go through a short-lived Redis cache
// when Redis is available.
type GuildConfigService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewGuildConfigService(db *sql.DB, redisClient *redis.Client) *GuildConfigService {
	viper.SetDefault("economy.fee_rate", 0.08)
	viper.SetDefault("economy.daily_claim_amount", 100)
	viper.SetDefault("economy.daily_send_limit", 100)

	return &GuildConfigService{
		db:    db,
		redis: redisClient,
	}
}

// Get returns the settings for a guild, falling back to configured defaults
// for guilds that never customized anything.
func (s *GuildConfigService) Get(ctx context.Context, guildID string) (*models.GuildSettings, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, settingsCacheKey(guildID)).Result(); err == nil {
			var settings models.GuildSettings
			if err := json.Unmarshal([]byte(cached), &settings); err == nil {
				return &settings, nil
			}
		}
	}

	settings := &models.GuildSettings{GuildID: guildID}
	err := s.db.QueryRowContext(ctx, `
		SELECT fee_rate, daily_claim_amount, daily_send_limit, updated_at
		FROM guild_settings
		WHERE guild_id = $1`, guildID).Scan(
		&settings.FeeRate, &settings.DailyClaimAmount, &settings.DailySendLimit, &settings.UpdatedAt)

	if err == sql.ErrNoRows {
		settings.FeeRate = viper.GetFloat64("economy.fee_rate")
		settings.DailyClaimAmount = viper.GetInt64("economy.daily_claim_amount")
		settings.DailySendLimit = viper.GetInt64("economy.daily_send_limit")
	} else if err != nil {
		return nil, err
	}

	s.cache(ctx, settings)
	return settings, nil
}

// Update upserts a guild's settings and invalidates the cache entry.
func (s *GuildConfigService) Update(ctx context.Context, settings *models.GuildSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, fee_rate, daily_claim_amount, daily_send_limit, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id) DO UPDATE
		SET fee_rate = EXCLUDED.fee_rate,
		    daily_claim_amount = EXCLUDED.daily_claim_amount,
		    daily_send_limit = EXCLUDED.daily_send_limit,
		    updated_at = EXCLUDED.updated_at`,
		settings.GuildID, settings.FeeRate, settings.DailyClaimAmount, settings.DailySendLimit, time.Now())
	if err != nil {
		return err
	}

	if s.redis != nil {
		if err := s.redis.Del(ctx, settingsCacheKey(settings.GuildID)).Err(); err != nil {
			log.Printf("[CONFIG] Failed to invalidate settings cache for guild %s: %v", settings.GuildID, err)
		}
	}
	return nil
}

func (s *GuildConfigService) cache(ctx context.Context, settings *models.GuildSettings) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, settingsCacheKey(settings.GuildID), data, settingsCacheTTL).Err(); err != nil {
		log.Printf("[CONFIG] Failed to cache settings for guild %s: %v", settings.GuildID, err)
	}
}

func settingsCacheKey(guildID string) string {
	return "guildmarket:settings:" + guildID
}
