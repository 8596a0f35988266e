package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"log/slog"

	"github.com/ecoxlabs/growthworker/internal/database"
	"github.com/ecoxlabs/growthworker/internal/logging"
	"github.com/ecoxlabs/growthworker/internal/metrics"
	"github.com/ecoxlabs/growthworker/internal/models"
)

// Manager owns every account loop. It starts loops for active accounts,
// stops them on deactivation or removal, and hot-swaps the shared engine
// config when the store announces a change.
type Manager struct {
	api      API
	accounts AccountStore
	configs  ConfigStore
	cfg      *ConfigHolder
	metrics  *metrics.Collector
	logger   *slog.Logger
	timings  timings

	mu       sync.Mutex
	runtimes map[string]*Runtime // keyed by account name
	names    map[string]string   // account id -> name

	wg         sync.WaitGroup
	loopStarts atomic.Int64
}

func NewManager(api API, accounts AccountStore, configs ConfigStore, cfg *ConfigHolder, collector *metrics.Collector, logger *slog.Logger) *Manager {
	return &Manager{
		api:      api,
		accounts: accounts,
		configs:  configs,
		cfg:      cfg,
		metrics:  collector,
		logger:   logger,
		timings:  defaultTimings(),
		runtimes: make(map[string]*Runtime),
		names:    make(map[string]string),
	}
}

// Run starts loops for every active account, then reacts to store change
// notifications until the context is canceled. It blocks until all loops
// have drained.
func (m *Manager) Run(ctx context.Context, changes <-chan database.Change) error {
	if err := m.reconcile(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			m.StopAll()
			m.wg.Wait()
			m.logger.Info("all account loops stopped")
			return nil
		case change, ok := <-changes:
			if !ok {
				m.StopAll()
				m.wg.Wait()
				return nil
			}
			m.handleChange(ctx, change)
		}
	}
}

// Start launches the follow loop and claim scheduler for one account.
// Starting an already-running account is a no-op; an account whose goal
// completed stays down until its status is reset in the store.
func (m *Manager) Start(ctx context.Context, account *models.Account) {
	logger := logging.ForAccount(m.logger, account.Name)

	if account.Status == models.StatusDone {
		logger.Warn("account already completed its goal, not starting",
			"hint", "reset status to processing to run again")
		return
	}

	m.mu.Lock()
	rt, exists := m.runtimes[account.Name]
	if !exists {
		rt = newRuntime(account)
		m.runtimes[account.Name] = rt
	}
	m.names[account.ID] = account.Name
	m.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	if !rt.start(cancel) {
		cancel()
		logger.Debug("account loop already running")
		return
	}

	loop := newAccountLoop(m, account, rt, logger)
	m.loopStarts.Add(1)
	m.metrics.LoopStarted()
	logger.Info("starting account loops")

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		loop.runClaimScheduler(loopCtx)
	}()
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("account loop panicked", "panic", r)
			}
			cancel()
			rt.markStopped()
			m.metrics.LoopStopped()
		}()
		loop.run(loopCtx)
	}()
}

// Stop cancels a running account loop. The runtime and its per-run state
// stay in place so a restart resumes dedup and history.
func (m *Manager) Stop(name string) {
	m.mu.Lock()
	rt := m.runtimes[name]
	m.mu.Unlock()
	if rt == nil {
		return
	}
	if rt.Running() {
		m.logger.Info("stopping account loop", "account", name)
	}
	rt.stop()
}

// Remove stops the loop and discards all runtime state for the account.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	name, ok := m.names[id]
	if ok {
		delete(m.names, id)
	}
	rt := m.runtimes[name]
	delete(m.runtimes, name)
	m.mu.Unlock()

	if rt != nil {
		m.logger.Info("removing account loop", "account", name)
		rt.stop()
	}
}

// StopAll cancels every loop without discarding runtime state.
func (m *Manager) StopAll() {
	m.mu.Lock()
	runtimes := make([]*Runtime, 0, len(m.runtimes))
	for _, rt := range m.runtimes {
		runtimes = append(runtimes, rt)
	}
	m.mu.Unlock()
	for _, rt := range runtimes {
		rt.stop()
	}
}

func (m *Manager) handleChange(ctx context.Context, change database.Change) {
	switch change.Kind {
	case database.ConfigUpdated:
		cfg, err := m.configs.Get(ctx)
		if err != nil {
			m.logger.Error("failed to reload engine config", "error", err)
			return
		}
		m.cfg.Replace(cfg)
		m.logger.Info("engine config reloaded")

	case database.Resync:
		m.logger.Warn("change stream resync, reconciling all accounts")
		if err := m.reconcile(ctx); err != nil {
			m.logger.Error("resync reconcile failed", "error", err)
		}

	case database.AccountAdded, database.AccountModified:
		account, err := m.accounts.Get(ctx, change.ID)
		if err != nil {
			m.logger.Error("failed to load changed account", "id", change.ID, "error", err)
			return
		}
		if account == nil {
			m.Remove(change.ID)
			return
		}
		if account.Active {
			m.Start(ctx, account)
		} else {
			m.Stop(account.Name)
		}

	case database.AccountRemoved:
		m.Remove(change.ID)
	}
}

// reconcile aligns running loops with the store: active accounts run,
// everything else is stopped.
func (m *Manager) reconcile(ctx context.Context) error {
	accounts, err := m.accounts.List(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(accounts))
	for i := range accounts {
		account := &accounts[i]
		seen[account.Name] = true
		if account.Active {
			m.Start(ctx, account)
		} else {
			m.Stop(account.Name)
		}
	}

	m.mu.Lock()
	var stale []*Runtime
	for name, rt := range m.runtimes {
		if !seen[name] {
			stale = append(stale, rt)
		}
	}
	m.mu.Unlock()
	for _, rt := range stale {
		rt.stop()
	}
	return nil
}

// LoopStarts reports how many times a loop has been launched.
func (m *Manager) LoopStarts() int64 { return m.loopStarts.Load() }

// ActiveCount reports how many loops are currently running.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rt := range m.runtimes {
		if rt.Running() {
			n++
		}
	}
	return n
}

// Wait blocks until every spawned loop goroutine has exited.
func (m *Manager) Wait() { m.wg.Wait() }
