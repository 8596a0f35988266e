package ecox

import "strings"

// ErrorKind classifies a failed remote call for retry-policy purposes.
type ErrorKind string

const (
	// KindTransport is a network-level failure reaching the remote API.
	KindTransport ErrorKind = "transport"
	// KindRemote is a non-2xx status or a malformed response body.
	KindRemote ErrorKind = "remote"
	// KindConfiguration is a missing credential; fatal to the single
	// operation, never retried.
	KindConfiguration ErrorKind = "configuration"
)

// CallError describes a failed call. It deliberately is not a Go error:
// every client operation resolves to a uniform result shape and never
// propagates failures as errors, preserving the engine's control flow.
type CallError struct {
	Kind    ErrorKind
	Summary string
	Detail  string
}

func (e *CallError) String() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return e.Summary
	}
	return e.Summary + ": " + e.Detail
}

// Result is the uniform outcome shape shared by all client operations.
type Result struct {
	Err *CallError
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Err == nil }

// CountResult carries the account's total follower count.
type CountResult struct {
	Result
	Followers int
}

// ListEntry is one relationship row from the list endpoint.
type ListEntry struct {
	User struct {
		UID      string `json:"uid"`
		Username string `json:"username"`
	} `json:"user"`
	IsFollowing bool `json:"is_following"`
}

// ListResult carries one page of relationships plus the list's total size.
type ListResult struct {
	Result
	Users []ListEntry
	Total int
}

// ClaimResult carries the outcome of the daily reward claim.
type ClaimResult struct {
	Result
	Message string
}

// AlreadyClaimed reports whether a claim failure detail indicates the daily
// reward was claimed earlier today: a non-alarming outcome, distinct from a
// true failure. The upstream API has no structured code for this, so the
// classification is a case-insensitive substring match and may misclassify
// if the upstream message ever changes.
func AlreadyClaimed(detail string) bool {
	lower := strings.ToLower(detail)
	return strings.Contains(lower, "already") || strings.Contains(lower, "claimed")
}
