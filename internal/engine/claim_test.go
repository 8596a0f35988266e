package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ecoxlabs/growthworker/internal/ecox"
	"github.com/ecoxlabs/growthworker/internal/models"
)

func TestNextClaimTime(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		hour   int
		minute int
		want   time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2026, 3, 10, 0, 30, 0, 0, time.UTC),
			hour: 1, minute: 0,
			want: time.Date(2026, 3, 10, 1, 0, 5, 0, time.UTC),
		},
		{
			name: "already passed rolls to tomorrow",
			now:  time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC),
			hour: 1, minute: 0,
			want: time.Date(2026, 3, 11, 1, 0, 5, 0, time.UTC),
		},
		{
			name: "exactly at claim minute still waits for buffer",
			now:  time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC),
			hour: 1, minute: 0,
			want: time.Date(2026, 3, 10, 1, 0, 5, 0, time.UTC),
		},
		{
			name: "inside buffer rolls to tomorrow",
			now:  time.Date(2026, 3, 10, 1, 0, 5, 0, time.UTC),
			hour: 1, minute: 0,
			want: time.Date(2026, 3, 11, 1, 0, 5, 0, time.UTC),
		},
		{
			name: "non-utc input normalized",
			now:  time.Date(2026, 3, 10, 0, 30, 0, 0, time.FixedZone("EET", 2*3600)),
			hour: 1, minute: 0,
			// 00:30 EET is 22:30 UTC the previous day, so the 01:00 UTC
			// slot on the 10th is still ahead.
			want: time.Date(2026, 3, 10, 1, 0, 5, 0, time.UTC),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := nextClaimTime(tc.now, tc.hour, tc.minute)
			assert.True(t, got.Equal(tc.want), "got %v, want %v", got, tc.want)
		})
	}
}

func TestClaimTimeForOverrides(t *testing.T) {
	cfg := models.DefaultEngineConfig()
	cfg.ClaimHourUTC = 1
	cfg.ClaimMinuteUTC = 0

	hour, minute := claimTimeFor(&models.Account{}, cfg)
	assert.Equal(t, 1, hour)
	assert.Equal(t, 0, minute)

	h, m := 14, 30
	hour, minute = claimTimeFor(&models.Account{ClaimHourUTC: &h, ClaimMinuteUTC: &m}, cfg)
	assert.Equal(t, 14, hour)
	assert.Equal(t, 30, minute)

	hour, minute = claimTimeFor(&models.Account{ClaimHourUTC: &h}, cfg)
	assert.Equal(t, 14, hour)
	assert.Equal(t, 0, minute, "unset minute override falls back to config")
}

func TestClaimOnceClassification(t *testing.T) {
	account := &models.Account{ID: "a1", Name: "alpha", BearerToken: "tok"}

	t.Run("success", func(t *testing.T) {
		api := newFakeAPI()
		loop := newTestLoop(api, newFakeAccountStore(), zeroDelayConfig(), account)
		loop.claimOnce(context.Background())
		assert.Equal(t, 1, api.claimCount())
	})

	t.Run("already claimed is not a failure", func(t *testing.T) {
		api := newFakeAPI()
		api.claimErr = &ecox.CallError{
			Kind: ecox.KindRemote, Summary: "API error (status 400)",
			Detail: "You have already claimed today's reward",
		}
		loop := newTestLoop(api, newFakeAccountStore(), zeroDelayConfig(), account)
		loop.claimOnce(context.Background())
		assert.Equal(t, 1, api.claimCount())
	})

	t.Run("missing token never counts as already claimed", func(t *testing.T) {
		api := newFakeAPI()
		api.claimErr = &ecox.CallError{
			Kind: ecox.KindConfiguration, Summary: "no bearer token",
			Detail: "account has no token, claim skipped",
		}
		loop := newTestLoop(api, newFakeAccountStore(), zeroDelayConfig(), account)
		loop.claimOnce(context.Background())
		assert.Equal(t, 1, api.claimCount())
	})
}

func TestClaimSchedulerPausesAroundClaim(t *testing.T) {
	account := &models.Account{ID: "a1", Name: "alpha", BearerToken: "tok"}
	api := newFakeAPI()
	loop := newTestLoop(api, newFakeAccountStore(), zeroDelayConfig(), account)

	// Shift the clock so the next claim slot is a few milliseconds away.
	base := time.Date(2026, 3, 10, 1, 0, 4, 990_000_000, time.UTC)
	offset := time.Until(base)
	loop.now = func() time.Time { return time.Now().Add(offset).UTC() }

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		loop.runClaimScheduler(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for api.claimCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	assert.GreaterOrEqual(t, api.claimCount(), 1, "claim must fire when the slot elapses")
	assert.False(t, loop.rt.IsPaused(), "pause must be released after the claim")
}
