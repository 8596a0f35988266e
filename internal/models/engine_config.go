package models

import "time"

// ListTargetType selects which relationship list the follow loop pages
// through for a target.
type ListTargetType string

const (
	ListFollower  ListTargetType = "follower"
	ListFollowing ListTargetType = "following"
	// ListBoth picks follower or following randomly per target.
	ListBoth ListTargetType = "both"
)

// EngineConfig is the process-wide configuration shared by all accounts that
// lack per-account overrides. It lives as a singleton document in the store
// and may be live-updated at any time; loops take a fresh snapshot per read.
type EngineConfig struct {
	TargetUsernames      []string       `json:"target_usernames"`
	FollowBatchSize      int            `json:"follow_batch_size"`
	UnfollowBatchSize    int            `json:"unfollow_batch_size"`
	BatchDelaySeconds    int            `json:"batch_delay_seconds"`
	FollowDelaySeconds   int            `json:"follow_delay_seconds"`
	UnfollowDelaySeconds int            `json:"unfollow_delay_seconds"`
	PageLimit            int            `json:"page_limit"`
	UnfollowWhitelist    []string       `json:"unfollow_whitelist"`
	ClaimHourUTC         int            `json:"claim_hour_utc"`
	ClaimMinuteUTC       int            `json:"claim_minute_utc"`
	EnableDiscovery      bool           `json:"enable_discovery"`
	DiscoveryRate        float64        `json:"discovery_rate"`
	MaxDiscoveryQueue    int            `json:"max_discovery_queue"`
	ListTargetType       ListTargetType `json:"list_target_type"`
}

// DefaultEngineConfig returns the fallback configuration used when the store
// has no config document yet.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TargetUsernames:      []string{"maidala"},
		FollowBatchSize:      5,
		UnfollowBatchSize:    10,
		BatchDelaySeconds:    30,
		FollowDelaySeconds:   5,
		UnfollowDelaySeconds: 2,
		PageLimit:            5,
		UnfollowWhitelist:    []string{"maidala", "ecox"},
		ClaimHourUTC:         1,
		ClaimMinuteUTC:       0,
		EnableDiscovery:      true,
		DiscoveryRate:        0.1,
		MaxDiscoveryQueue:    100,
		ListTargetType:       ListFollower,
	}
}

// BatchDelay returns the inter-batch cooldown as a duration.
func (c EngineConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelaySeconds) * time.Second
}

// FollowDelay returns the inter-action delay for follow calls.
func (c EngineConfig) FollowDelay() time.Duration {
	return time.Duration(c.FollowDelaySeconds) * time.Second
}

// UnfollowDelay returns the inter-action delay for unfollow calls.
func (c EngineConfig) UnfollowDelay() time.Duration {
	return time.Duration(c.UnfollowDelaySeconds) * time.Second
}

// Whitelisted reports whether username must never be unfollowed by the
// standard pass.
func (c EngineConfig) Whitelisted(username string) bool {
	for _, w := range c.UnfollowWhitelist {
		if w == username {
			return true
		}
	}
	return false
}
