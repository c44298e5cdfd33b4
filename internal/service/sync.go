package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dtroode/kurisync/internal/logger"
	"github.com/dtroode/kurisync/internal/metrics"
	"github.com/dtroode/kurisync/internal/model"
)

// SyncConfig tunes the synchronization pipeline.
type SyncConfig struct {
	Concurrency int
	Store       StoreRetry
}

// Sync reconciles the registry and the ledgers into the store.
type Sync struct {
	registry    model.RegistrySource
	source      model.LedgerSource
	userStore   model.UserStore
	ledgerStore model.LedgerStore
	statusStore model.StatusStore

	archive *Archive
	events  model.EventPublisher
	metrics *metrics.Metrics
	logger  *logger.Logger

	cfg      SyncConfig
	flight   singleflight.Group
	lifetime context.Context
	now      func() time.Time
}

type SyncOption func(*Sync)

// WithArchive archives every fetched registry.
func WithArchive(a *Archive) SyncOption {
	return func(s *Sync) { s.archive = a }
}

// WithEvents publishes status and round changes.
func WithEvents(p model.EventPublisher) SyncOption {
	return func(s *Sync) { s.events = p }
}

// WithLifetime bounds every job run by ctx instead of by the trigger that
// started it.
func WithLifetime(ctx context.Context) SyncOption {
	return func(s *Sync) { s.lifetime = ctx }
}

func WithSyncMetrics(m *metrics.Metrics) SyncOption {
	return func(s *Sync) { s.metrics = m }
}

func NewSync(
	registry model.RegistrySource,
	source model.LedgerSource,
	userStore model.UserStore,
	ledgerStore model.LedgerStore,
	statusStore model.StatusStore,
	cfg SyncConfig,
	logger *logger.Logger,
	opts ...SyncOption,
) *Sync {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	s := &Sync{
		registry:    registry,
		source:      source,
		userStore:   userStore,
		ledgerStore: ledgerStore,
		statusStore: statusStore,
		logger:      logger,
		cfg:         cfg,
		lifetime:    context.Background(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run executes job. A trigger that arrives while the same job is running
// joins the running pass and receives its report. The pass itself is not
// tied to any trigger: a caller whose ctx ends stops waiting and gets the
// context error while the pass continues until the Sync lifetime ends.
func (s *Sync) Run(ctx context.Context, job model.Job) (model.SyncReport, error) {
	ch := s.flight.DoChan(string(job), func() (any, error) {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(s.lifetime, cancel)
		defer stop()

		return s.run(runCtx, job)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("joined running sync job", "job", job)
		}
		report, _ := res.Val.(model.SyncReport)
		return report, res.Err
	case <-ctx.Done():
		return model.SyncReport{}, ctx.Err()
	}
}

func (s *Sync) run(ctx context.Context, job model.Job) (model.SyncReport, error) {
	t := &tally{}
	report := model.SyncReport{
		Job:       job,
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
	}
	log := s.logger.With("job", job, "run_id", report.RunID)
	log.Info("sync job started")

	var err error
	switch job {
	case model.JobRegistry:
		err = s.syncRegistry(ctx, t)
	case model.JobLedgers:
		err = s.syncLedgers(ctx, t)
	case model.JobStatuses:
		err = s.syncStatuses(ctx, t)
	default:
		err = fmt.Errorf("%w: %q", model.ErrUnknownJob, job)
	}

	t.fill(&report)
	report.FinishedAt = s.now()
	s.observe(report, err)

	if err != nil {
		log.Error("sync job failed", "error", err, "succeeded", report.Succeeded, "failed", len(report.Failed))
		return report, err
	}

	log.Info("sync job finished",
		"succeeded", report.Succeeded,
		"failed", len(report.Failed),
		"skipped", len(report.Skipped),
		"duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

func (s *Sync) observe(report model.SyncReport, err error) {
	if s.metrics == nil {
		return
	}

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case len(report.Failed) > 0:
		outcome = "partial"
	}

	job := string(report.Job)
	s.metrics.SyncRuns.WithLabelValues(job, outcome).Inc()
	s.metrics.SyncDuration.WithLabelValues(job).Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	s.metrics.SyncFailures.WithLabelValues(job).Add(float64(len(report.Failed)))
}

// syncRegistry commits nothing when the fetch fails.
func (s *Sync) syncRegistry(ctx context.Context, t *tally) error {
	reg, err := s.registry.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch registry: %w", err)
	}

	if s.archive != nil {
		if key, err := s.archive.Store(ctx, reg); err != nil {
			s.logger.Warn("failed to archive registry snapshot", "error", err)
		} else {
			s.logger.Debug("registry snapshot archived", "key", key)
		}
	}

	err = fanOut(ctx, s.cfg.Concurrency, reg.Users, func(ctx context.Context, u model.User) {
		_, err := retryStore(ctx, s.cfg.Store, s.logger, "upsert user", func(ctx context.Context) (model.User, error) {
			return s.userStore.Upsert(ctx, model.PatchFromUser(u))
		})
		t.record(s.logger, "user "+u.WalletAddress, err)
	})
	if err != nil {
		return err
	}

	return fanOut(ctx, s.cfg.Concurrency, reg.Ledgers, func(ctx context.Context, ref model.LedgerRef) {
		_, err := retryStore(ctx, s.cfg.Store, s.logger, "upsert ledger", func(ctx context.Context) (model.Ledger, error) {
			return s.ledgerStore.Upsert(ctx, model.PatchFromRef(ref))
		})
		t.record(s.logger, "ledger "+ref.ContractAddress, err)
	})
}

func (s *Sync) syncLedgers(ctx context.Context, t *tally) error {
	ledgers, err := s.ledgerStore.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list ledgers: %w", err)
	}

	return fanOut(ctx, s.cfg.Concurrency, ledgers, func(ctx context.Context, l model.Ledger) {
		refresh, err := s.RefreshLedger(ctx, model.LedgerRef{ID: l.ID, ContractAddress: l.ContractAddress})
		if err == nil && len(refresh.Errors) > 0 {
			err = refresh.Err()
		}
		t.record(s.logger, "ledger "+l.ContractAddress, err)
	})
}

type pair struct {
	user   string
	ledger model.Ledger
}

func (s *Sync) syncStatuses(ctx context.Context, t *tally) error {
	users, err := s.userStore.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	ledgers, err := s.ledgerStore.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list ledgers: %w", err)
	}

	var pairs []pair
	for _, l := range ledgers {
		switch {
		case l.Slots == nil || *l.Slots < 1:
			t.skip(s.logger, "ledger "+l.ContractAddress, model.ErrSlotsUnknown)
			continue
		case l.CurrentRound == nil:
			t.skip(s.logger, "ledger "+l.ContractAddress, model.ErrRoundUnknown)
			continue
		}
		for _, u := range users {
			if l.HasParticipant(u.WalletAddress) {
				pairs = append(pairs, pair{user: u.WalletAddress, ledger: l})
			}
		}
	}

	return fanOut(ctx, s.cfg.Concurrency, pairs, func(ctx context.Context, p pair) {
		_, err := s.RefreshStatus(ctx, p.ledger, p.user)
		t.record(s.logger, "status "+p.user+"@"+p.ledger.ContractAddress, err)
	})
}

// fanOut calls fn for every item with at most limit calls in flight. It
// stops dispatching once ctx is done and reports the context error.
func fanOut[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T)) error {
	var g errgroup.Group
	g.SetLimit(limit)

	for _, item := range items {
		item := item
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() == nil {
				fn(ctx, item)
			}
			return nil
		})
	}
	_ = g.Wait()

	return ctx.Err()
}

// tally collects per-entity outcomes from concurrent workers.
type tally struct {
	mu        sync.Mutex
	succeeded int
	failed    []model.EntityFailure
	skipped   []model.EntityFailure
}

func (t *tally) record(log *logger.Logger, key string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err == nil {
		t.succeeded++
		return
	}
	log.Error("failed to reconcile entity", "entity", key, "error", err)
	t.failed = append(t.failed, model.EntityFailure{Key: key, Error: err.Error()})
}

func (t *tally) skip(log *logger.Logger, key string, reason error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	log.Warn("skipping entity", "entity", key, "reason", reason)
	t.skipped = append(t.skipped, model.EntityFailure{Key: key, Error: reason.Error()})
}

func (t *tally) fill(r *model.SyncReport) {
	t.mu.Lock()
	defer t.mu.Unlock()

	byKey := func(s []model.EntityFailure) func(i, j int) bool {
		return func(i, j int) bool { return s[i].Key < s[j].Key }
	}
	sort.Slice(t.failed, byKey(t.failed))
	sort.Slice(t.skipped, byKey(t.skipped))

	r.Succeeded = t.succeeded
	r.Failed = append([]model.EntityFailure{}, t.failed...)
	r.Skipped = append([]model.EntityFailure{}, t.skipped...)
}
