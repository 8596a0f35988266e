package ecox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"context"
	"log/slog"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ecoxlabs/growthworker/internal/models"
)

// DefaultBaseURL is the fixed base path of the growth-platform API.
const DefaultBaseURL = "https://api.ecox.network/api/v1"

// CallObserver receives timing for every remote call. Implemented by the
// metrics collector; nil-safe.
type CallObserver interface {
	ObserveAPICall(operation string, ok bool, duration time.Duration)
}

// Client is the stateless remote API client. Credentials are supplied per
// call from the account record; the transport retries connection errors and
// 5xx responses internally before the engine's own backoff paths apply.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	observer CallObserver
}

// LeveledSlog adapts slog for the retrying transport, rewriting its ERROR
// lines to WARN since intermediate attempts are retried.
type LeveledSlog struct {
	inner *slog.Logger
}

func (l LeveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l LeveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	Observer CallObserver
}

// NewClient creates a client for the growth-platform API.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = 2
	retry.RetryWaitMin = time.Second
	retry.RetryWaitMax = 10 * time.Second
	retry.Logger = retryablehttp.LeveledLogger(LeveledSlog{inner: logger})
	retry.HTTPClient.Timeout = opts.Timeout

	return &Client{
		baseURL:  opts.BaseURL,
		http:     retry.StandardClient(),
		logger:   logger,
		observer: opts.Observer,
	}
}

// FetchFollowerCount queries the account's own follower total using a
// minimal page (offset 1, limit 1).
func (c *Client) FetchFollowerCount(ctx context.Context, account *models.Account) CountResult {
	query := url.Values{}
	query.Set("offset", "1")
	query.Set("limit", "1")
	query.Set("type", string(models.ListFollower))

	body, callErr := c.do(ctx, account, "fetch_follower_count", http.MethodGet, "/user/list-follow?"+query.Encode(), nil)
	if callErr != nil {
		return CountResult{Result: Result{Err: callErr}}
	}

	var payload struct {
		Total *int `json:"total"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Total == nil {
		return CountResult{Result: Result{Err: &CallError{
			Kind:    KindRemote,
			Summary: "API error: 'total' field missing from response",
			Detail:  string(body),
		}}}
	}

	return CountResult{Followers: *payload.Total}
}

// ListQuery parameterizes a relationship page fetch. When Username is set,
// the page is that user's relationships; otherwise the account's own.
type ListQuery struct {
	Username string
	Offset   int
	Limit    int
	Type     models.ListTargetType
}

// FetchUserList queries one page of relationships.
func (c *Client) FetchUserList(ctx context.Context, account *models.Account, q ListQuery) ListResult {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(q.Offset))
	query.Set("limit", strconv.Itoa(q.Limit))
	query.Set("type", string(q.Type))
	if q.Username != "" {
		query.Set("username", q.Username)
	}

	body, callErr := c.do(ctx, account, "fetch_user_list", http.MethodGet, "/user/list-follow?"+query.Encode(), nil)
	if callErr != nil {
		return ListResult{Result: Result{Err: callErr}}
	}

	var payload struct {
		Data  []ListEntry `json:"data"`
		Total int         `json:"total"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ListResult{Result: Result{Err: &CallError{
			Kind:    KindRemote,
			Summary: "API error: malformed list response",
			Detail:  err.Error(),
		}}}
	}

	return ListResult{Users: payload.Data, Total: payload.Total}
}

// Follow issues a one-shot follow call for uid.
func (c *Client) Follow(ctx context.Context, account *models.Account, uid string) Result {
	_, callErr := c.do(ctx, account, "follow", http.MethodPost, "/user/follow", map[string]string{"uid": uid})
	return Result{Err: callErr}
}

// Unfollow issues a one-shot unfollow call for uid.
func (c *Client) Unfollow(ctx context.Context, account *models.Account, uid string) Result {
	_, callErr := c.do(ctx, account, "unfollow", http.MethodPost, "/user/unfollow", map[string]string{"uid": uid})
	return Result{Err: callErr}
}

// ClaimGreen issues the daily reward claim. Callers classify an
// already-claimed failure separately via AlreadyClaimed.
func (c *Client) ClaimGreen(ctx context.Context, account *models.Account) ClaimResult {
	body, callErr := c.do(ctx, account, "claim_green", http.MethodPost, "/green/claim", map[string]string{})
	if callErr != nil {
		return ClaimResult{Result: Result{Err: callErr}}
	}

	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	if payload.Message == "" {
		payload.Message = "Claim successful."
	}

	return ClaimResult{Message: payload.Message}
}

// do performs one authenticated request and normalizes every failure into a
// CallError. It never returns a Go error.
func (c *Client) do(ctx context.Context, account *models.Account, operation, method, path string, body any) ([]byte, *CallError) {
	start := time.Now()
	data, callErr := c.roundTrip(ctx, account, method, path, body)
	if c.observer != nil {
		c.observer.ObserveAPICall(operation, callErr == nil, time.Since(start))
	}
	return data, callErr
}

func (c *Client) roundTrip(ctx context.Context, account *models.Account, method, path string, body any) ([]byte, *CallError) {
	if account == nil || account.BearerToken == "" {
		name := "unknown"
		if account != nil {
			name = account.Name
		}
		return nil, &CallError{
			Kind:    KindConfiguration,
			Summary: fmt.Sprintf("bearer token is not set for account %q", name),
		}
	}

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &CallError{Kind: KindConfiguration, Summary: "failed to encode request body", Detail: err.Error()}
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &CallError{Kind: KindConfiguration, Summary: "failed to build request", Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+account.BearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &CallError{Kind: KindTransport, Summary: "network or fetch error", Detail: err.Error()}
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, &CallError{Kind: KindTransport, Summary: "failed to read response", Detail: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := "No details"
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
			detail = payload.Message
		}
		return nil, &CallError{
			Kind:    KindRemote,
			Summary: fmt.Sprintf("API error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			Detail:  detail,
		}
	}

	return data, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
