package engine

import (
	"context"
	"time"

	"github.com/ecoxlabs/growthworker/internal/ecox"
	"github.com/ecoxlabs/growthworker/internal/models"
)

// nextClaimTime computes the next daily claim instant strictly after now.
// The 5 second buffer avoids firing marginally before the server-side
// reward window opens.
func nextClaimTime(now time.Time, hour, minute int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 5, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func claimTimeFor(account *models.Account, cfg models.EngineConfig) (hour, minute int) {
	hour, minute = cfg.ClaimHourUTC, cfg.ClaimMinuteUTC
	if account.ClaimHourUTC != nil {
		hour = *account.ClaimHourUTC
	}
	if account.ClaimMinuteUTC != nil {
		minute = *account.ClaimMinuteUTC
	}
	return hour, minute
}

// runClaimScheduler fires the daily reward claim. The wake time is
// recomputed from the clock after every claim so drift or a config change
// never accumulates.
func (l *accountLoop) runClaimScheduler(ctx context.Context) {
	for {
		hour, minute := claimTimeFor(l.acct, l.cfg.Snapshot())
		next := nextClaimTime(l.now(), hour, minute)
		l.logger.Info("next daily claim scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(l.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		l.rt.SetPaused(true)
		l.logger.Warn("pausing follow activity for daily claim")
		l.claimOnce(ctx)
		l.rt.SetPaused(false)
		l.logger.Info("resuming follow activity after daily claim")
	}
}

// claimOnce performs one claim attempt and classifies the result. A remote
// rejection that says the reward was already taken is expected when a run
// restarts mid-day and is not an error.
func (l *accountLoop) claimOnce(ctx context.Context) {
	res := l.api.ClaimGreen(ctx, l.acct)
	switch {
	case res.OK():
		l.metrics.RecordClaim(l.acct.Name, "success")
		l.logger.Info("daily claim succeeded", "message", res.Message)
	case res.Err.Kind != ecox.KindConfiguration && ecox.AlreadyClaimed(res.Err.Detail):
		l.metrics.RecordClaim(l.acct.Name, "already_claimed")
		l.logger.Warn("daily reward already claimed", "detail", res.Err.Detail)
	default:
		l.metrics.RecordClaim(l.acct.Name, "failure")
		l.logger.Error("daily claim failed", "error", res.Err.String())
	}
}
