package engine

import (
	"context"

	"github.com/ecoxlabs/growthworker/internal/models"
)

// checkGoal refreshes the live follower count and reports whether the net
// gain since the captured baseline meets the target. A failed fetch never
// satisfies the goal.
func (l *accountLoop) checkGoal(ctx context.Context, targetFollowBacks int) bool {
	res := l.api.FetchFollowerCount(ctx, l.acct)
	if !res.OK() {
		l.logger.Error("failed to check follower count", "error", res.Err.String())
		return false
	}

	netGained := res.Followers - l.rt.InitialFollowers()
	l.rt.SetNetFollowBacks(netGained)
	if err := l.store.SetNetFollowBacks(ctx, l.acct.ID, netGained); err != nil {
		l.logger.Error("failed to persist net follow-backs", "error", err)
	}

	l.logger.Info("goal progress",
		"current_followers", res.Followers,
		"net_gained", netGained,
		"target_follow_backs", targetFollowBacks)
	return netGained >= targetFollowBacks
}

// completeGoal runs the terminal sequence: selectively unfollow everyone
// followed this run, mark the account done and inactive, and release the
// runtime so the manager will not restart it.
func (l *accountLoop) completeGoal(ctx context.Context) {
	l.logger.Info("goal complete, starting selective unfollow",
		"followed_this_run", l.rt.HistoryLen())

	l.selectiveUnfollow(ctx)

	if err := l.store.UpdateStatus(ctx, l.acct.ID, models.StatusDone, false); err != nil {
		l.logger.Error("failed to mark account done", "error", err)
	} else {
		l.logger.Info("account marked done and deactivated")
	}

	l.rt.stop()
}
