// Package manager wires the station table, the prober and the playlist
// resolver into one application core and owns the lifecycle of check runs.
// Only one check run may be active at a time; its progress is polled through
// Status while results stream into the table as they arrive.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"radio-manager/work/cache"
	"radio-manager/work/client"
	"radio-manager/work/config"
	"radio-manager/work/logger"
	"radio-manager/work/parser"
	"radio-manager/work/prober"
	"radio-manager/work/result"
	"radio-manager/work/station"
	"radio-manager/work/types"
)

// Manager is the application core handed to every HTTP handler.
type Manager struct {
	Logger   *logger.Logger
	Store    *station.Store
	Prober   *prober.Prober
	Resolver *parser.Resolver
	Cache    *cache.Cache

	mu      sync.Mutex
	cfg     *config.Config
	cancel  context.CancelFunc
	status  CheckStatus
	started time.Time
}

// CheckStatus is the poll-friendly view of the current or last check run.
type CheckStatus struct {
	Running   bool              `json:"running"`
	Checked   int               `json:"checked"`
	Total     int               `json:"total"`
	Cancelled bool              `json:"cancelled"`
	Elapsed   string            `json:"elapsed,omitempty"`
	Summary   *types.RunSummary `json:"summary,omitempty"`
}

// New builds the application core from configuration.
func New(cfg *config.Config, log *logger.Logger) *Manager {
	playlistCache := cache.NewCache(cfg.CacheDuration, cfg.CacheEnabled)
	resolver := parser.New(client.New(cfg, client.HeadTimeout), playlistCache, cfg, log)

	return &Manager{
		cfg:      cfg,
		Logger:   log,
		Store:    station.NewStore(log),
		Prober:   prober.New(cfg, resolver, log),
		Resolver: resolver,
		Cache:    playlistCache,
	}
}

// StartCheck begins probing every station in the table. It fails when a run
// is already active or the table is empty. Previous results are cleared so a
// partial run never mixes old and new cells.
func (m *Manager) StartCheck() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.Running {
		return fmt.Errorf("a check run is already in progress")
	}

	stations := m.Store.List()
	if len(stations) == 0 {
		return fmt.Errorf("no stations loaded")
	}

	targets := make([]prober.Target, len(stations))
	for i, st := range stations {
		targets[i] = prober.Target{Index: i, URL: st.Record.URL}
	}

	m.Store.ClearResults()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.started = time.Now()
	m.status = CheckStatus{Running: true, Total: len(targets)}

	m.Logger.Info("check run started: %d stations, %d workers", len(targets), m.cfg.MaxConcurrency)
	go m.consume(m.Prober.Run(ctx, targets), cancel)
	return nil
}

func (m *Manager) consume(events <-chan prober.Event, cancel context.CancelFunc) {
	defer cancel()

	for ev := range events {
		switch ev.Kind {
		case prober.EventResult:
			m.Store.SetResult(ev.Index, result.Encode(ev.Result), ev.StreamTitle)

		case prober.EventProgress:
			m.mu.Lock()
			m.status.Checked = ev.Checked
			m.mu.Unlock()

		case prober.EventSummary:
			m.mu.Lock()
			summary := ev.Summary
			m.status.Running = false
			m.status.Summary = &summary
			m.status.Elapsed = time.Since(m.started).Round(time.Millisecond).String()
			m.cancel = nil
			m.mu.Unlock()
			m.Logger.Info("check run finished: %d checked, %d live, %d dead",
				summary.Checked, summary.Live, summary.Dead)

		case prober.EventCancelled:
			m.mu.Lock()
			m.status.Running = false
			m.status.Cancelled = true
			m.status.Elapsed = time.Since(m.started).Round(time.Millisecond).String()
			m.cancel = nil
			m.mu.Unlock()
			m.Logger.Info("check run cancelled after %d of %d", m.Status().Checked, m.Status().Total)
		}
	}
}

// CancelCheck aborts the active run, if any.
func (m *Manager) CancelCheck() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return false
	}
	m.cancel()
	m.cancel = nil
	return true
}

// Status returns a snapshot of the current or last run.
func (m *Manager) Status() CheckStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := m.status
	if status.Running {
		status.Elapsed = time.Since(m.started).Round(time.Millisecond).String()
	}
	return status
}

// Config returns the current configuration. The returned struct is never
// mutated after publication; a reload swaps in a fresh one, so callers and
// in-flight probes holding an older pointer keep a consistent view.
func (m *Manager) Config() *config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// DeadTokens returns the dead reason tokens selected by the delete flags in
// configuration, in their canonical order.
func (m *Manager) DeadTokens() []string {
	cfg := m.Config()

	var tokens []string
	if cfg.Delete404 {
		tokens = append(tokens, "404")
	}
	if cfg.DeleteError {
		tokens = append(tokens, result.TokenError)
	}
	if cfg.DeleteConnError {
		tokens = append(tokens, result.TokenConnError)
	}
	if cfg.DeleteTimeout {
		tokens = append(tokens, result.TokenTimeout)
	}
	return tokens
}

// ReloadConfig publishes a freshly loaded configuration and rebuilds the
// components that capture settings at construction time. The old Config
// struct is left untouched, so a running check and its probe clients keep
// the settings they started with until the run finishes.
func (m *Manager) ReloadConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg = cfg
	m.Cache.Clear()
	m.Cache = cache.NewCache(cfg.CacheDuration, cfg.CacheEnabled)
	m.Resolver = parser.New(client.New(cfg, client.HeadTimeout), m.Cache, cfg, m.Logger)
	m.Prober = prober.New(cfg, m.Resolver, m.Logger)
}
