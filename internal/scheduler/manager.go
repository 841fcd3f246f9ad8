package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pokerjest/animestream/internal/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher re-pulls provider metadata for every imported anime.
type Refresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// Pruner trims the activity log down to the newest keep entries.
type Pruner interface {
	Prune(keep int) (int64, error)
}

type Manager struct {
	cron      *cron.Cron
	refresher Refresher
	spec      string
	pruner    Pruner
	keep      int

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewManager(refresher Refresher, spec string) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cron:      cron.New(),
		refresher: refresher,
		spec:      spec,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// WithRetention prunes the activity log after every pass. keep <= 0 disables it.
func (m *Manager) WithRetention(p Pruner, keep int) *Manager {
	m.pruner = p
	m.keep = keep
	return m
}

// Start registers the refresh job and starts the cron loop.
func (m *Manager) Start() error {
	if _, err := m.cron.AddFunc(m.spec, m.RunRefresh); err != nil {
		return fmt.Errorf("invalid scheduler.refresh_spec %q: %w", m.spec, err)
	}
	m.cron.Start()
	logger.L().Info("scheduler started", zap.String("refresh_spec", m.spec))
	return nil
}

// Stop cancels a running refresh and waits for the cron loop to finish.
func (m *Manager) Stop() {
	m.cancel()
	<-m.cron.Stop().Done()
	logger.L().Info("scheduler stopped")
}

// RunRefresh runs one refresh pass; overlapping runs are skipped.
func (m *Manager) RunRefresh() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		logger.L().Info("scheduler: refresh still running, skipping")
		return
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	start := time.Now()
	n, err := m.refresher.RefreshAll(m.ctx)
	if err != nil {
		logger.L().Error("scheduler: refresh aborted", zap.Int("refreshed", n), zap.Error(err))
	} else {
		logger.L().Info("scheduler: refresh finished", zap.Int("refreshed", n), zap.Duration("took", time.Since(start)))
	}
	m.prune()
}

func (m *Manager) prune() {
	if m.pruner == nil || m.keep <= 0 {
		return
	}
	removed, err := m.pruner.Prune(m.keep)
	if err != nil {
		logger.L().Error("scheduler: activity prune failed", zap.Error(err))
		return
	}
	if removed > 0 {
		logger.L().Info("scheduler: activity log pruned", zap.Int64("removed", removed), zap.Int("kept", m.keep))
	}
}
