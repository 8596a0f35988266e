package engine

import (
	"context"
	"io"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/time/rate"

	"github.com/ecoxlabs/growthworker/internal/ecox"
	"github.com/ecoxlabs/growthworker/internal/metrics"
	"github.com/ecoxlabs/growthworker/internal/models"
)

// fakeAPI is a scripted growth-platform client. Pages are keyed by target
// username; the empty key serves the account's own following list.
type fakeAPI struct {
	mu sync.Mutex

	followerCounts []int // consumed in order, last value repeats
	countCalls     int
	countFail      bool

	pages     map[string][][]ecox.ListEntry
	pageCalls map[string]int
	listFail  map[string]bool

	followed   []string
	followFail map[string]bool

	unfollowed   []string
	unfollowFail map[string]bool

	claimErr *ecox.CallError
	claims   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		pages:        make(map[string][][]ecox.ListEntry),
		pageCalls:    make(map[string]int),
		listFail:     make(map[string]bool),
		followFail:   make(map[string]bool),
		unfollowFail: make(map[string]bool),
	}
}

func (f *fakeAPI) FetchFollowerCount(ctx context.Context, account *models.Account) ecox.CountResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countFail {
		return ecox.CountResult{Result: ecox.Result{Err: &ecox.CallError{
			Kind: ecox.KindTransport, Summary: "count unavailable", Detail: "No details",
		}}}
	}
	idx := f.countCalls
	f.countCalls++
	if idx >= len(f.followerCounts) {
		idx = len(f.followerCounts) - 1
	}
	if idx < 0 {
		return ecox.CountResult{}
	}
	return ecox.CountResult{Followers: f.followerCounts[idx]}
}

func (f *fakeAPI) FetchUserList(ctx context.Context, account *models.Account, q ecox.ListQuery) ecox.ListResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listFail[q.Username] {
		return ecox.ListResult{Result: ecox.Result{Err: &ecox.CallError{
			Kind: ecox.KindRemote, Summary: "list failed", Detail: "No details",
		}}}
	}
	pages := f.pages[q.Username]
	total := 0
	for _, p := range pages {
		total += len(p)
	}
	if q.Limit == 1 {
		// Probe call: report size only.
		return ecox.ListResult{Total: total}
	}
	f.pageCalls[q.Username]++
	page := q.Offset - 1
	if page < 0 || page >= len(pages) {
		return ecox.ListResult{Total: total}
	}
	return ecox.ListResult{Users: pages[page], Total: total}
}

func (f *fakeAPI) Follow(ctx context.Context, account *models.Account, uid string) ecox.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.followFail[uid] {
		return ecox.Result{Err: &ecox.CallError{
			Kind: ecox.KindRemote, Summary: "follow rejected", Detail: "No details",
		}}
	}
	f.followed = append(f.followed, uid)
	return ecox.Result{}
}

func (f *fakeAPI) Unfollow(ctx context.Context, account *models.Account, uid string) ecox.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unfollowFail[uid] {
		return ecox.Result{Err: &ecox.CallError{
			Kind: ecox.KindRemote, Summary: "unfollow rejected", Detail: "No details",
		}}
	}
	f.unfollowed = append(f.unfollowed, uid)
	return ecox.Result{}
}

func (f *fakeAPI) ClaimGreen(ctx context.Context, account *models.Account) ecox.ClaimResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	if f.claimErr != nil {
		return ecox.ClaimResult{Result: ecox.Result{Err: f.claimErr}}
	}
	return ecox.ClaimResult{Message: "Claim successful."}
}

func (f *fakeAPI) followedUIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.followed...)
}

func (f *fakeAPI) claimCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claims
}

func (f *fakeAPI) unfollowedUIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unfollowed...)
}

func entry(uid, username string, following bool) ecox.ListEntry {
	var e ecox.ListEntry
	e.User.UID = uid
	e.User.Username = username
	e.IsFollowing = following
	return e
}

// fakeAccountStore records engine writes in memory.
type fakeAccountStore struct {
	mu       sync.Mutex
	accounts []models.Account

	statusWrites   map[string]models.Status
	activeWrites   map[string]bool
	initialWrites  map[string]int
	netWrites      map[string]int
	getErr         error
	updateStatuses int
}

func newFakeAccountStore(accounts ...models.Account) *fakeAccountStore {
	return &fakeAccountStore{
		accounts:      accounts,
		statusWrites:  make(map[string]models.Status),
		activeWrites:  make(map[string]bool),
		initialWrites: make(map[string]int),
		netWrites:     make(map[string]int),
	}
}

func (s *fakeAccountStore) List(ctx context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Account(nil), s.accounts...), nil
}

func (s *fakeAccountStore) Get(ctx context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			account := s.accounts[i]
			return &account, nil
		}
	}
	return nil, nil
}

func (s *fakeAccountStore) UpdateStatus(ctx context.Context, id string, status models.Status, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusWrites[id] = status
	s.activeWrites[id] = active
	s.updateStatuses++
	return nil
}

func (s *fakeAccountStore) SetInitialFollowers(ctx context.Context, id string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialWrites[id] = count
	return nil
}

func (s *fakeAccountStore) SetNetFollowBacks(ctx context.Context, id string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.netWrites[id] = count
	return nil
}

type fakeConfigStore struct {
	cfg models.EngineConfig
	err error
}

func (s *fakeConfigStore) Get(ctx context.Context) (models.EngineConfig, error) {
	return s.cfg, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// zeroDelayConfig returns the default config with all delays removed so
// loop tests run instantly.
func zeroDelayConfig() models.EngineConfig {
	cfg := models.DefaultEngineConfig()
	cfg.BatchDelaySeconds = 0
	cfg.FollowDelaySeconds = 0
	cfg.UnfollowDelaySeconds = 0
	return cfg
}

func fastTimings() timings {
	return timings{
		pausePoll:       5 * time.Millisecond,
		errorBackoff:    time.Millisecond,
		emptyQueueSleep: time.Millisecond,
	}
}

func testCollector() *metrics.Collector {
	collector, err := metrics.NewCollector()
	if err != nil {
		panic(err)
	}
	return collector
}

func newTestLoop(api *fakeAPI, store *fakeAccountStore, cfg models.EngineConfig, account *models.Account) *accountLoop {
	rt := newRuntime(account)
	return &accountLoop{
		api:     api,
		store:   store,
		cfg:     NewConfigHolder(cfg),
		metrics: testCollector(),
		logger:  testLogger(),
		timings: fastTimings(),
		now:     time.Now,
		acct:    account,
		rt:      rt,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}
