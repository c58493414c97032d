// Package scheduler runs periodic mailbox syncs and the daily digest.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"mailpilot/internal/model"
	"mailpilot/internal/notify"
	"mailpilot/internal/pipeline"
	"mailpilot/internal/service/mailsync"
	"mailpilot/pkg/config"
	"mailpilot/pkg/trace"
)

type UserSource interface {
	ListWithTokens(ctx context.Context) ([]model.User, error)
}

type IdentityResolver interface {
	Identity(ctx context.Context, userID int64) (model.Identity, error)
}

type Syncer interface {
	Sync(ctx context.Context, id model.Identity, max int) (*mailsync.Report, error)
}

type StatsSource interface {
	Stats(ctx context.Context) (model.EmailStats, error)
}

// Deps are the collaborators the jobs call into.
type Deps struct {
	Users      UserSource
	Identities IdentityResolver
	Syncer     Syncer
	Stats      StatsSource
	Dispatcher pipeline.Dispatcher
}

type Scheduler struct {
	cfg        config.SchedulerConfig
	deps       Deps
	maxResults int
	cron       *rcron.Cron
	logger     *zap.Logger
	now        func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(cfg config.SchedulerConfig, deps Deps, maxResults int, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cfg:        cfg,
		deps:       deps,
		maxResults: maxResults,
		cron:       rcron.New(rcron.WithLogger(cl), rcron.WithChain(rcron.Recover(cl), rcron.SkipIfStillRunning(cl))),
		logger:     logger,
		now:        time.Now,
	}
}

// Start registers the jobs and runs them until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.cfg.SyncSpec, func() { s.runJob(runCtx, "sync", s.SyncAll) }); err != nil {
		cancel()
		return fmt.Errorf("register sync job %q: %w", s.cfg.SyncSpec, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.DigestSpec, func() { s.runJob(runCtx, "digest", s.SendDigest) }); err != nil {
		cancel()
		return fmt.Errorf("register digest job %q: %w", s.cfg.DigestSpec, err)
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("sync_spec", s.cfg.SyncSpec),
		zap.String("digest_spec", s.cfg.DigestSpec),
	)

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits up to five seconds for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	select {
	case <-s.cron.Stop().Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("Scheduler stop timed out waiting for running jobs")
	}
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runJob(ctx context.Context, name string, job func(context.Context) error) {
	ctx, traceID := trace.Ensure(ctx)
	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("Scheduled job failed", zap.String("job", name), zap.String("trace_id", traceID), zap.Error(err))
		return
	}
	s.logger.Info("Scheduled job finished", zap.String("job", name), zap.String("trace_id", traceID), zap.Duration("took", time.Since(start)))
}

// SyncAll syncs every user that completed OAuth. One user's failure does
// not stop the others.
func (s *Scheduler) SyncAll(ctx context.Context) error {
	users, err := s.deps.Users.ListWithTokens(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, u := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log := s.logger.With(zap.Int64("user_id", u.ID))

		id, err := s.deps.Identities.Identity(ctx, u.ID)
		if err != nil {
			log.Warn("Skipping user, identity unavailable", zap.Error(err))
			continue
		}
		if _, err := s.deps.Syncer.Sync(ctx, id, s.maxResults); err != nil {
			log.Error("Scheduled sync failed", zap.Error(err))
		}
	}
	return nil
}

// SendDigest dispatches the statistics digest. Its ID is keyed by date so
// a queued digest is delivered at most once per day.
func (s *Scheduler) SendDigest(ctx context.Context) error {
	stats, err := s.deps.Stats.Stats(ctx)
	if err != nil {
		return fmt.Errorf("email stats: %w", err)
	}
	day := s.now().UTC().Format("2006-01-02")
	n := pipeline.NewNotification("digest-"+day, model.NotificationDailyDigest, notify.DailyDigestMessage(stats))
	return s.deps.Dispatcher.Dispatch(ctx, []pipeline.Notification{n})
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.With(zap.Error(err)).Errorw(msg, keysAndValues...)
}
