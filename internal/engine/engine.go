// Package engine implements the multi-account growth automation core: one
// follow-and-discovery loop plus one daily claim scheduler per active
// account, driven by change notifications from the external store.
package engine

import (
	"context"
	"time"

	"github.com/ecoxlabs/growthworker/internal/ecox"
	"github.com/ecoxlabs/growthworker/internal/models"
)

// API is the remote growth-platform client surface the engine drives. All
// operations resolve to uniform result shapes and never return Go errors.
type API interface {
	FetchFollowerCount(ctx context.Context, account *models.Account) ecox.CountResult
	FetchUserList(ctx context.Context, account *models.Account, q ecox.ListQuery) ecox.ListResult
	Follow(ctx context.Context, account *models.Account, uid string) ecox.Result
	Unfollow(ctx context.Context, account *models.Account, uid string) ecox.Result
	ClaimGreen(ctx context.Context, account *models.Account) ecox.ClaimResult
}

// AccountStore is the bounded store surface the engine consumes: whole-document
// reads plus writes limited to {status, active, initial_followers,
// net_follow_backs}.
type AccountStore interface {
	List(ctx context.Context) ([]models.Account, error)
	Get(ctx context.Context, id string) (*models.Account, error)
	UpdateStatus(ctx context.Context, id string, status models.Status, active bool) error
	SetInitialFollowers(ctx context.Context, id string, count int) error
	SetNetFollowBacks(ctx context.Context, id string, count int) error
}

// ConfigStore reads the global configuration document.
type ConfigStore interface {
	Get(ctx context.Context) (models.EngineConfig, error)
}

// timings collects the engine's fixed backoff intervals. They are constants
// in production; tests shrink them.
type timings struct {
	pausePoll       time.Duration
	errorBackoff    time.Duration
	emptyQueueSleep time.Duration
}

func defaultTimings() timings {
	return timings{
		pausePoll:       10 * time.Second,
		errorBackoff:    60 * time.Second,
		emptyQueueSleep: 10 * time.Minute,
	}
}

// sleepCtx sleeps for d unless ctx is canceled first. Returns false on
// cancellation so callers can unwind promptly.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
