package engine

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/ecoxlabs/growthworker/internal/ecox"
	"github.com/ecoxlabs/growthworker/internal/models"
)

// selectiveUnfollow reverses every follow recorded this run. Entries whose
// unfollow call fails stay in the history so a later pass can retry them.
func (l *accountLoop) selectiveUnfollow(ctx context.Context) {
	cfg := l.cfg.Snapshot()
	history := l.rt.UnreversedHistory()
	if len(history) == 0 {
		l.logger.Info("selective unfollow: nothing to reverse")
		return
	}
	l.logger.Info("selective unfollow starting", "count", len(history))

	batchCount := 0
	for _, rec := range history {
		if ctx.Err() != nil {
			l.logger.Warn("selective unfollow interrupted", "remaining", l.rt.HistoryLen())
			return
		}
		if !l.waitWhilePaused(ctx) {
			return
		}

		res := l.api.Unfollow(ctx, l.acct, rec.UID)
		if res.OK() {
			l.rt.MarkReversed(rec.UID)
			l.metrics.RecordUnfollow(l.acct.Name, true)
			l.logger.Info("unfollowed user", "username", rec.Username)
		} else {
			l.metrics.RecordUnfollow(l.acct.Name, false)
			l.logger.Error("failed to unfollow user",
				"username", rec.Username, "error", res.Err.String())
		}

		if !sleepCtx(ctx, cfg.UnfollowDelay()) {
			return
		}

		batchCount++
		if batchCount >= cfg.UnfollowBatchSize {
			l.logger.Info("unfollow batch complete, cooling down", "delay", cfg.BatchDelay())
			if !sleepCtx(ctx, cfg.BatchDelay()) {
				return
			}
			batchCount = 0
		}
	}

	reversed := l.rt.CompactHistory()
	l.logger.Info("selective unfollow finished",
		"reversed", reversed, "remaining", l.rt.HistoryLen())
}

// RunStandardUnfollowPass walks the account's own following list and
// unfollows everyone not on the whitelist. This is the bulk cleanup path
// and runs to completion or first unrecoverable fetch failure.
func (m *Manager) RunStandardUnfollowPass(ctx context.Context, account *models.Account) error {
	cfg := m.cfg.Snapshot()
	logger := m.logger.With("account", account.Name)
	logger.Info("standard unfollow pass starting")

	offset := 1
	batchCount := 0
	unfollowed := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		page := m.api.FetchUserList(ctx, account, ecox.ListQuery{
			Offset: offset, Limit: cfg.PageLimit, Type: models.ListFollowing,
		})
		if !page.OK() {
			return fmt.Errorf("fetching following list at offset %d: %s", offset, page.Err.String())
		}
		if len(page.Users) == 0 {
			logger.Info("standard unfollow pass finished", "unfollowed", unfollowed)
			return nil
		}

		for _, entry := range page.Users {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			uid := entry.User.UID
			username := entry.User.Username
			if uid == "" {
				continue
			}
			if cfg.Whitelisted(username) {
				logger.Warn("skipping whitelisted user", "username", username)
				continue
			}

			res := m.api.Unfollow(ctx, account, uid)
			if res.OK() {
				unfollowed++
				m.metrics.RecordUnfollow(account.Name, true)
				logger.Info("unfollowed user", "username", username, "total", unfollowed)
			} else {
				m.metrics.RecordUnfollow(account.Name, false)
				logger.Error("failed to unfollow user",
					"username", username, "error", res.Err.String())
			}

			if !sleepCtx(ctx, cfg.UnfollowDelay()) {
				return ctx.Err()
			}

			batchCount++
			if batchCount >= cfg.UnfollowBatchSize {
				unfollowBatchCooldown(ctx, logger, cfg)
				batchCount = 0
			}
		}
		offset++
	}
}

func unfollowBatchCooldown(ctx context.Context, logger *slog.Logger, cfg models.EngineConfig) {
	logger.Info("unfollow batch complete, cooling down", "delay", cfg.BatchDelay())
	sleepCtx(ctx, cfg.BatchDelay())
}
