package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecoxlabs/growthworker/internal/models"
)

// State is the externally observable lifecycle of an account runtime.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Runtime is the process-local working state for one account. It is created
// lazily the first time an account is seen and discarded when the account is
// removed. Only initial-followers and net-follow-backs survive restarts (via
// the store); everything else resets to empty.
type Runtime struct {
	mu         sync.Mutex
	discovered []string
	history    []models.FollowRecord
	processed  map[string]struct{}

	followCount      int
	initialFollowers int
	netFollowBacks   int

	running bool
	cancel  context.CancelFunc
	paused  atomic.Bool
}

func newRuntime(account *models.Account) *Runtime {
	return &Runtime{
		processed:        make(map[string]struct{}),
		initialFollowers: account.InitialFollowers,
		netFollowBacks:   account.NetFollowBacks,
	}
}

// start marks the runtime running and records the loop's cancel function.
// Callers hold the manager lock; returns false when already running.
func (r *Runtime) start(cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	r.cancel = cancel
	r.paused.Store(false)
	return true
}

// stop requests cooperative cancellation. The pause flag is also set so a
// loop currently mid-sleep treats itself as paused until it observes the
// canceled context.
func (r *Runtime) stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	r.paused.Store(true)
	if cancel != nil {
		cancel()
	}
}

// markStopped is called by the loop goroutine on exit.
func (r *Runtime) markStopped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	r.cancel = nil
}

// Running reports whether a loop goroutine currently owns this runtime.
func (r *Runtime) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// State collapses the running/paused flags into the three-state model.
func (r *Runtime) State() State {
	if !r.Running() {
		return StateStopped
	}
	if r.paused.Load() {
		return StatePaused
	}
	return StateRunning
}

// SetPaused toggles the claim-induced pause.
func (r *Runtime) SetPaused(paused bool) { r.paused.Store(paused) }

// IsPaused reports whether the loop must hold off remote actions.
func (r *Runtime) IsPaused() bool { return r.paused.Load() }

// InitialFollowers returns the captured follower baseline, 0 if not yet
// captured.
func (r *Runtime) InitialFollowers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialFollowers
}

// SetInitialFollowers records the baseline. Capture happens exactly once per
// account; callers guard against recapture.
func (r *Runtime) SetInitialFollowers(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialFollowers = count
}

// NetFollowBacks returns the most recent goal-check result.
func (r *Runtime) NetFollowBacks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.netFollowBacks
}

// SetNetFollowBacks updates the mirrored net-gain counter.
func (r *Runtime) SetNetFollowBacks(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.netFollowBacks = count
}

// FollowCount returns the number of successful follows this run.
func (r *Runtime) FollowCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.followCount
}

// MarkProcessed records uid in the per-run dedup set. Returns false when the
// uid was already processed, in which case the caller must not follow it
// again this run.
func (r *Runtime) MarkProcessed(uid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.processed[uid]; seen {
		return false
	}
	r.processed[uid] = struct{}{}
	return true
}

// RecordFollow appends a history entry for a successful follow and bumps the
// run counter. History entries with Reversed == false are exactly the users
// eligible for selective unfollow.
func (r *Runtime) RecordFollow(uid, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.followCount++
	r.history = append(r.history, models.FollowRecord{
		UID:      uid,
		Username: username,
		When:     time.Now(),
	})
}

// UnreversedHistory returns a copy of the history entries still eligible for
// selective unfollow.
func (r *Runtime) UnreversedHistory() []models.FollowRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []models.FollowRecord
	for _, record := range r.history {
		if !record.Reversed {
			pending = append(pending, record)
		}
	}
	return pending
}

// MarkReversed flags the history entry for uid as unfollowed.
func (r *Runtime) MarkReversed(uid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.history {
		if r.history[i].UID == uid {
			r.history[i].Reversed = true
		}
	}
}

// CompactHistory drops reversed entries, keeping memory bounded after an
// unfollow pass. Returns the number of entries kept.
func (r *Runtime) CompactHistory() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.history[:0]
	for _, record := range r.history {
		if !record.Reversed {
			kept = append(kept, record)
		}
	}
	r.history = kept
	return len(kept)
}

// HistoryLen returns the current history size.
func (r *Runtime) HistoryLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// PushDiscovered appends username to the discovered-target queue unless the
// queue is at capacity or the username is already queued. Returns whether
// the username was enqueued.
func (r *Runtime) PushDiscovered(username string, capacity int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.discovered) >= capacity {
		return false
	}
	for _, queued := range r.discovered {
		if queued == username {
			return false
		}
	}
	r.discovered = append(r.discovered, username)
	return true
}

// PopDiscovered removes and returns the oldest discovered target.
func (r *Runtime) PopDiscovered() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.discovered) == 0 {
		return "", false
	}
	username := r.discovered[0]
	r.discovered = r.discovered[1:]
	return username, true
}

// DiscoveredLen returns the discovered-queue size.
func (r *Runtime) DiscoveredLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.discovered)
}
