package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ecoxlabs/growthworker/internal/models"
)

// ConfigRepository provides access to the singleton engine configuration
// document. Absent a stored row, Get falls back to built-in defaults so a
// fresh deployment can run before the dashboard ever saves settings.
type ConfigRepository struct {
	db *sql.DB
}

func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Get returns the current global configuration.
func (r *ConfigRepository) Get(ctx context.Context) (models.EngineConfig, error) {
	query := `
		SELECT target_usernames, follow_batch_size, unfollow_batch_size,
		       batch_delay_seconds, follow_delay_seconds, unfollow_delay_seconds,
		       page_limit, unfollow_whitelist, claim_hour_utc, claim_minute_utc,
		       enable_discovery, discovery_rate, max_discovery_queue, list_target_type
		FROM engine_config
		WHERE id = 1
	`

	var cfg models.EngineConfig
	var targets, whitelist pq.StringArray
	var listType string

	err := r.db.QueryRowContext(ctx, query).Scan(
		&targets,
		&cfg.FollowBatchSize,
		&cfg.UnfollowBatchSize,
		&cfg.BatchDelaySeconds,
		&cfg.FollowDelaySeconds,
		&cfg.UnfollowDelaySeconds,
		&cfg.PageLimit,
		&whitelist,
		&cfg.ClaimHourUTC,
		&cfg.ClaimMinuteUTC,
		&cfg.EnableDiscovery,
		&cfg.DiscoveryRate,
		&cfg.MaxDiscoveryQueue,
		&listType,
	)
	if err == sql.ErrNoRows {
		return models.DefaultEngineConfig(), nil
	}
	if err != nil {
		return models.EngineConfig{}, fmt.Errorf("failed to load engine config: %w", err)
	}

	cfg.TargetUsernames = []string(targets)
	cfg.UnfollowWhitelist = []string(whitelist)
	cfg.ListTargetType = models.ListTargetType(listType)
	return cfg, nil
}

// Save upserts the global configuration document.
func (r *ConfigRepository) Save(ctx context.Context, cfg models.EngineConfig) error {
	query := `
		INSERT INTO engine_config
		(id, target_usernames, follow_batch_size, unfollow_batch_size,
		 batch_delay_seconds, follow_delay_seconds, unfollow_delay_seconds,
		 page_limit, unfollow_whitelist, claim_hour_utc, claim_minute_utc,
		 enable_discovery, discovery_rate, max_discovery_queue, list_target_type)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id)
		DO UPDATE SET
			target_usernames = EXCLUDED.target_usernames,
			follow_batch_size = EXCLUDED.follow_batch_size,
			unfollow_batch_size = EXCLUDED.unfollow_batch_size,
			batch_delay_seconds = EXCLUDED.batch_delay_seconds,
			follow_delay_seconds = EXCLUDED.follow_delay_seconds,
			unfollow_delay_seconds = EXCLUDED.unfollow_delay_seconds,
			page_limit = EXCLUDED.page_limit,
			unfollow_whitelist = EXCLUDED.unfollow_whitelist,
			claim_hour_utc = EXCLUDED.claim_hour_utc,
			claim_minute_utc = EXCLUDED.claim_minute_utc,
			enable_discovery = EXCLUDED.enable_discovery,
			discovery_rate = EXCLUDED.discovery_rate,
			max_discovery_queue = EXCLUDED.max_discovery_queue,
			list_target_type = EXCLUDED.list_target_type,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		pq.Array(cfg.TargetUsernames),
		cfg.FollowBatchSize,
		cfg.UnfollowBatchSize,
		cfg.BatchDelaySeconds,
		cfg.FollowDelaySeconds,
		cfg.UnfollowDelaySeconds,
		cfg.PageLimit,
		pq.Array(cfg.UnfollowWhitelist),
		cfg.ClaimHourUTC,
		cfg.ClaimMinuteUTC,
		cfg.EnableDiscovery,
		cfg.DiscoveryRate,
		cfg.MaxDiscoveryQueue,
		string(cfg.ListTargetType),
	)
	if err != nil {
		return fmt.Errorf("failed to save engine config: %w", err)
	}
	return nil
}
