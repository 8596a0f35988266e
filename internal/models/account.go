package models

import "time"

// Status represents the lifecycle state of a managed account.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
)

// Account represents one automated identity under management. Accounts are
// created externally (by the onboarding dashboard); the engine reads them and
// writes back only status, active, initial_followers and net_follow_backs.
type Account struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	BearerToken     string    `json:"bearer_token"`
	TargetUsernames []string  `json:"target_usernames"`
	FollowerTarget  int       `json:"follower_target"`
	EnableGoal      bool      `json:"enable_follow_back_goal"`
	InitialFollowers int      `json:"initial_followers"`
	NetFollowBacks  int       `json:"net_follow_backs"`
	Active          bool      `json:"active"`
	Status          Status    `json:"status"`

	// Optional per-account overrides; nil means "use the global config".
	ClaimHourUTC       *int `json:"claim_hour_utc,omitempty"`
	ClaimMinuteUTC     *int `json:"claim_minute_utc,omitempty"`
	FollowBatchSize    *int `json:"follow_batch_size,omitempty"`
	FollowDelaySeconds *int `json:"follow_delay_seconds,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GoalEnabled reports whether the follow-back goal mode applies to this
// account. A goal needs both the flag and a positive follower target.
func (a *Account) GoalEnabled() bool {
	return a.EnableGoal && a.FollowerTarget > 0
}

// FollowRecord is one entry in an account's follow history. Entries with
// Reversed == false are exactly the users still followed by the engine and
// eligible for selective unfollow.
type FollowRecord struct {
	UID      string    `json:"uid"`
	Username string    `json:"username"`
	When     time.Time `json:"when"`
	Reversed bool      `json:"reversed"`
}
