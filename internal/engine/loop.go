package engine

import (
	"context"
	"math/rand"
	"time"

	"log/slog"

	"golang.org/x/time/rate"

	"github.com/ecoxlabs/growthworker/internal/ecox"
	"github.com/ecoxlabs/growthworker/internal/metrics"
	"github.com/ecoxlabs/growthworker/internal/models"
)

// accountLoop bundles everything one account's background run needs. The
// account document is read-only for the duration of a run; live tunables
// come from the config holder, snapshot per read.
type accountLoop struct {
	api     API
	store   AccountStore
	cfg     *ConfigHolder
	metrics *metrics.Collector
	logger  *slog.Logger
	timings timings
	now     func() time.Time

	acct    *models.Account
	rt      *Runtime
	limiter *rate.Limiter
}

func newAccountLoop(m *Manager, account *models.Account, rt *Runtime, logger *slog.Logger) *accountLoop {
	return &accountLoop{
		api:     m.api,
		store:   m.accounts,
		cfg:     m.cfg,
		metrics: m.metrics,
		logger:  logger,
		timings: m.timings,
		now:     time.Now,
		acct:    account,
		rt:      rt,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

// run drives the follow & discovery state machine until the goal terminal
// path fires or the context is canceled by external deactivation.
func (l *accountLoop) run(ctx context.Context) {
	enableGoal := l.acct.GoalEnabled()
	targetFollowBacks := 0

	if enableGoal {
		l.logger.Info("starting follow-back goal loop", "follower_target", l.acct.FollowerTarget)

		if l.rt.InitialFollowers() == 0 {
			res := l.api.FetchFollowerCount(ctx, l.acct)
			if res.OK() {
				l.rt.SetInitialFollowers(res.Followers)
				if err := l.store.SetInitialFollowers(ctx, l.acct.ID, res.Followers); err != nil {
					l.logger.Error("failed to persist initial follower count", "error", err)
				}
				l.logger.Info("captured initial follower count", "initial_followers", res.Followers)
			} else {
				// An unreachable baseline must not stall the account
				// forever: fall through to the standard loop for this run.
				l.logger.Error("failed to fetch initial follower count, disabling goal for this run",
					"error", res.Err.String())
				enableGoal = false
			}
		} else {
			l.logger.Info("resuming follow-back goal loop", "initial_followers", l.rt.InitialFollowers())
		}

		if enableGoal {
			targetFollowBacks = l.acct.FollowerTarget - l.rt.InitialFollowers()
			l.logger.Info("goal computed", "target_follow_backs", targetFollowBacks)

			if l.rt.InitialFollowers() > 0 && targetFollowBacks <= 0 {
				l.logger.Warn("goal already met before starting, unfollowing and stopping",
					"initial_followers", l.rt.InitialFollowers(), "follower_target", l.acct.FollowerTarget)
				l.completeGoal(ctx)
				return
			}
		}
	} else {
		l.logger.Info("starting continuous follow & discover loop")
	}

	seeds := l.seedTargets(l.cfg.Snapshot())

	for {
		if ctx.Err() != nil {
			l.logger.Info("follow & discover loop stopped")
			return
		}

		if l.rt.IsPaused() {
			l.logger.Warn("paused, sleeping", "interval", l.timings.pausePoll)
			sleepCtx(ctx, l.timings.pausePoll)
			continue
		}

		if enableGoal && l.rt.NetFollowBacks() >= targetFollowBacks {
			l.logger.Info("follow-back goal achieved",
				"net_follow_backs", l.rt.NetFollowBacks(), "target", targetFollowBacks)
			l.completeGoal(ctx)
			return
		}

		target, ok := popTarget(&seeds)
		if !ok {
			target, ok = l.rt.PopDiscovered()
		}
		if !ok {
			l.logger.Warn("target queue empty, backing off", "sleep", l.timings.emptyQueueSleep)
			if !sleepCtx(ctx, l.timings.emptyQueueSleep) {
				return
			}
			seeds = l.seedTargets(l.cfg.Snapshot())
			continue
		}

		if err := l.processTarget(ctx, target, enableGoal, targetFollowBacks); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Error("error processing target, moving on",
				"target", target, "error", err, "backoff", l.timings.errorBackoff)
			if !sleepCtx(ctx, l.timings.errorBackoff) {
				return
			}
		}
	}
}

// processTarget pages through one target's relationship list, following
// unseen users. A page fetch failure retries the same page after a backoff;
// an empty page means the target is exhausted.
func (l *accountLoop) processTarget(ctx context.Context, target string, enableGoal bool, targetFollowBacks int) error {
	listType := l.resolveListType(l.cfg.Snapshot())
	l.logger.Info("processing target", "target", target, "list_type", listType)

	probe := l.api.FetchUserList(ctx, l.acct, ecox.ListQuery{
		Username: target, Offset: 1, Limit: 1, Type: listType,
	})
	if !probe.OK() {
		l.logger.Error("could not get info for target, skipping",
			"target", target, "error", probe.Err.String())
		return nil
	}
	l.logger.Info("target list size", "target", target, "total", probe.Total)

	offset := 1
	batchCount := 0

	for {
		if ctx.Err() != nil {
			return nil
		}
		if l.rt.IsPaused() {
			l.logger.Warn("paused for claim")
			if !sleepCtx(ctx, l.timings.pausePoll) {
				return nil
			}
			continue
		}
		if enableGoal && l.rt.NetFollowBacks() >= targetFollowBacks {
			l.logger.Info("follow-back goal achieved",
				"net_follow_backs", l.rt.NetFollowBacks(), "target", targetFollowBacks)
			l.completeGoal(ctx)
			return nil
		}

		cfg := l.cfg.Snapshot()
		page := l.api.FetchUserList(ctx, l.acct, ecox.ListQuery{
			Username: target, Offset: offset, Limit: cfg.PageLimit, Type: listType,
		})
		if !page.OK() {
			l.logger.Error("failed to fetch page, retrying",
				"target", target, "offset", offset, "error", page.Err.String(),
				"backoff", l.timings.errorBackoff)
			if !sleepCtx(ctx, l.timings.errorBackoff) {
				return nil
			}
			continue
		}
		if len(page.Users) == 0 {
			l.logger.Info("finished with target", "target", target)
			return nil
		}

		for _, entry := range page.Users {
			if ctx.Err() != nil {
				return nil
			}
			if !l.waitWhilePaused(ctx) {
				return nil
			}

			uid := entry.User.UID
			username := entry.User.Username
			if username == "" {
				username = "N/A"
			}

			if uid == "" {
				continue
			}
			if entry.IsFollowing {
				l.logger.Debug("skip: already following", "username", username)
				continue
			}
			if !l.rt.MarkProcessed(uid) {
				l.logger.Debug("skip: already processed this run", "username", username)
				continue
			}

			res := l.api.Follow(ctx, l.acct, uid)
			if res.OK() {
				l.rt.RecordFollow(uid, username)
				l.metrics.RecordFollow(l.acct.Name, true)
				l.logger.Info("followed user",
					"username", username, "follows_this_run", l.rt.FollowCount())
				l.maybeDiscover(username)
			} else {
				l.metrics.RecordFollow(l.acct.Name, false)
				l.logger.Error("failed to follow user",
					"username", username, "error", res.Err.String())
			}

			// Inter-action pacing: the primary rate-limit protection for
			// the remote account. The limit tracks live config.
			cfg = l.cfg.Snapshot()
			l.limiter.SetLimit(delayLimit(followDelayFor(l.acct, cfg)))
			if err := l.limiter.Wait(ctx); err != nil {
				return nil
			}

			batchCount++
			if batchCount >= followBatchFor(l.acct, cfg) {
				// Goal check before the cooldown so satisfaction is
				// detected promptly, not only between targets.
				if enableGoal && l.checkGoal(ctx, targetFollowBacks) {
					l.completeGoal(ctx)
					return nil
				}
				l.logger.Info("batch complete, cooling down",
					"batch_size", followBatchFor(l.acct, cfg), "delay", cfg.BatchDelay())
				if !sleepCtx(ctx, cfg.BatchDelay()) {
					return nil
				}
				batchCount = 0
			}
		}
		offset++
	}
}

// maybeDiscover probabilistically enqueues a just-followed username as a
// future target, bounded by the configured queue capacity.
func (l *accountLoop) maybeDiscover(username string) {
	cfg := l.cfg.Snapshot()
	if !cfg.EnableDiscovery {
		return
	}
	if rand.Float64() >= cfg.DiscoveryRate {
		return
	}
	for _, seed := range cfg.TargetUsernames {
		if seed == username {
			return
		}
	}
	if l.rt.PushDiscovered(username, cfg.MaxDiscoveryQueue) {
		l.logger.Info("discovered new target",
			"username", username, "queue_size", l.rt.DiscoveredLen())
	}
}

// waitWhilePaused blocks while the claim-induced pause is set. Returns false
// when the context is canceled.
func (l *accountLoop) waitWhilePaused(ctx context.Context) bool {
	for l.rt.IsPaused() {
		l.logger.Warn("paused, waiting", "interval", l.timings.pausePoll)
		if !sleepCtx(ctx, l.timings.pausePoll) {
			return false
		}
	}
	return ctx.Err() == nil
}

// seedTargets builds the explicit seed queue: the account's own list when
// present, otherwise the global default.
func (l *accountLoop) seedTargets(cfg models.EngineConfig) []string {
	if len(l.acct.TargetUsernames) > 0 {
		return append([]string(nil), l.acct.TargetUsernames...)
	}
	return append([]string(nil), cfg.TargetUsernames...)
}

func (l *accountLoop) resolveListType(cfg models.EngineConfig) models.ListTargetType {
	switch cfg.ListTargetType {
	case models.ListFollowing:
		return models.ListFollowing
	case models.ListBoth:
		if rand.Intn(2) == 0 {
			return models.ListFollower
		}
		return models.ListFollowing
	default:
		return models.ListFollower
	}
}

func popTarget(queue *[]string) (string, bool) {
	if len(*queue) == 0 {
		return "", false
	}
	target := (*queue)[0]
	*queue = (*queue)[1:]
	return target, true
}

func followBatchFor(account *models.Account, cfg models.EngineConfig) int {
	if account.FollowBatchSize != nil && *account.FollowBatchSize > 0 {
		return *account.FollowBatchSize
	}
	return cfg.FollowBatchSize
}

func followDelayFor(account *models.Account, cfg models.EngineConfig) time.Duration {
	if account.FollowDelaySeconds != nil && *account.FollowDelaySeconds > 0 {
		return time.Duration(*account.FollowDelaySeconds) * time.Second
	}
	return cfg.FollowDelay()
}

func delayLimit(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}
