// Package run executes check-in runs one at a time and keeps their status
// in memory.
package run

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/shehryarbajwa/checkin-runner/internal/browser"
	"github.com/shehryarbajwa/checkin-runner/internal/checkin"
	"github.com/shehryarbajwa/checkin-runner/internal/config"
	"github.com/shehryarbajwa/checkin-runner/pkg/models"
)

var (
	ErrRunInProgress = errors.New("a check-in run is already in progress")
	ErrRunNotFound   = errors.New("run not found")
)

// Tab is the open page a run drives
type Tab interface {
	checkin.Page
	ConnectURL() string
	ContainerID() string
	Close(ctx context.Context) error
}

// Opener launches a browser and opens url in it
type Opener interface {
	Open(ctx context.Context, runID, url string) (Tab, error)
}

// OpenerFunc adapts a function to Opener
type OpenerFunc func(ctx context.Context, runID, url string) (Tab, error)

func (f OpenerFunc) Open(ctx context.Context, runID, url string) (Tab, error) {
	return f(ctx, runID, url)
}

// FromDriver opens tabs with a browser.Driver
func FromDriver(d *browser.Driver) Opener {
	return OpenerFunc(func(ctx context.Context, runID, url string) (Tab, error) {
		tab, err := d.Open(ctx, runID, url)
		if err != nil {
			return nil, err
		}
		return tab, nil
	})
}

// Manager handles all run operations. Stored runs are immutable snapshots;
// every change stores a fresh copy.
type Manager struct {
	runs   sync.Map // map[runID]*models.Run
	mu     sync.Mutex
	guard  *semaphore.Weighted
	wg     sync.WaitGroup
	opener Opener
	flow   *checkin.Flow
	cfg    config.Config
	logger *zap.Logger
}

// NewManager creates a new run manager
func NewManager(opener Opener, flow *checkin.Flow, cfg config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		guard:  semaphore.NewWeighted(1),
		opener: opener,
		flow:   flow,
		cfg:    cfg,
		logger: logger,
	}
}

// Start begins a run in the background and returns it in RUNNING state
func (m *Manager) Start(ctx context.Context, req models.CreateRunRequest) (*models.Run, error) {
	r, creds, err := m.begin(req)
	if err != nil {
		return nil, err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.execute(context.WithoutCancel(ctx), r.ID, creds, r.Timeout)
	}()

	return r, nil
}

// Execute runs to completion and returns the finished run
func (m *Manager) Execute(ctx context.Context, req models.CreateRunRequest) (*models.Run, error) {
	r, creds, err := m.begin(req)
	if err != nil {
		return nil, err
	}

	m.execute(ctx, r.ID, creds, r.Timeout)
	return m.Get(r.ID)
}

// Wait blocks until every run started with Start has finished
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Get retrieves a run by ID
func (m *Manager) Get(id string) (*models.Run, error) {
	value, ok := m.runs.Load(id)
	if !ok {
		return nil, ErrRunNotFound
	}
	return value.(*models.Run), nil
}

// List returns all runs, oldest first, optionally filtered by status
func (m *Manager) List(status models.RunStatus) []*models.Run {
	var runs []*models.Run

	m.runs.Range(func(key, value any) bool {
		r := value.(*models.Run)
		if status != "" && r.Status != status {
			return true
		}
		runs = append(runs, r)
		return true
	})

	slices.SortFunc(runs, func(a, b *models.Run) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return runs
}

func (m *Manager) begin(req models.CreateRunRequest) (*models.Run, checkin.Credentials, error) {
	creds := checkin.Credentials{Username: req.Username, Password: req.Password}
	if creds.Username == "" && creds.Password == "" {
		creds = checkin.Credentials{Username: m.cfg.Username, Password: m.cfg.Password}
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, creds, config.ErrMissingCredentials
	}

	if req.Timeout == 0 {
		req.Timeout = m.cfg.RunTimeout
	}
	if err := config.ValidateTimeout(req.Timeout); err != nil {
		return nil, creds, err
	}

	if !m.guard.TryAcquire(1) {
		return nil, creds, ErrRunInProgress
	}

	r := &models.Run{
		ID:        uuid.New().String(),
		Username:  creds.Username,
		Status:    models.StatusRunning,
		StartedAt: time.Now(),
		Timeout:   req.Timeout,
	}
	m.runs.Store(r.ID, r)

	m.logger.Info("run started", zap.String("run", shortID(r.ID)), zap.String("username", r.Username))
	return r, creds, nil
}

func (m *Manager) execute(ctx context.Context, id string, creds checkin.Credentials, timeout int) {
	defer m.guard.Release(1)

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	log := m.logger.With(zap.String("run", shortID(id)))

	tab, err := m.opener.Open(ctx, id, m.cfg.TargetURL)
	if err != nil {
		m.finish(id, failureStatus(ctx), fmt.Sprintf("failed to open browser: %v", err), nil)
		return
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := tab.Close(closeCtx); err != nil {
			log.Warn("failed to close browser", zap.Error(err))
		}
	}()

	m.update(id, func(r *models.Run) {
		r.ConnectURL = tab.ConnectURL()
		r.ContainerID = tab.ContainerID()
	})
	log.Debug("browser ready", zap.String("connect_url", tab.ConnectURL()))

	res, err := m.flow.Run(ctx, tab, creds)
	switch {
	case err != nil:
		m.finish(id, failureStatus(ctx), err.Error(), res.Screenshots)
	case res.Outcome.Error:
		m.finish(id, models.StatusFailed, res.Outcome.Message, res.Screenshots)
	default:
		m.finish(id, models.StatusSucceeded, res.Outcome.Message, res.Screenshots)
	}
}

// failureStatus tells a run deadline apart from other errors
func failureStatus(ctx context.Context) models.RunStatus {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.StatusTimedOut
	}
	return models.StatusError
}

func (m *Manager) finish(id string, status models.RunStatus, message string, screenshots []string) {
	now := time.Now()
	m.update(id, func(r *models.Run) {
		r.Status = status
		r.Message = message
		r.FinishedAt = &now
		r.Screenshots = append(r.Screenshots, screenshots...)
	})

	fields := []zap.Field{
		zap.String("run", shortID(id)),
		zap.String("status", string(status)),
		zap.String("message", message),
	}
	if status == models.StatusSucceeded {
		m.logger.Info("run finished", fields...)
	} else {
		m.logger.Warn("run finished", fields...)
	}
}

func (m *Manager) update(id string, mutate func(r *models.Run)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.Get(id)
	if err != nil {
		return
	}
	next := *current
	next.Screenshots = slices.Clone(current.Screenshots)
	mutate(&next)
	m.runs.Store(id, &next)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
