package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sweptTokens = promauto.NewCounter(prometheus.CounterOpts{
	Name: "portal_refresh_tokens_swept_total",
	Help: "Expired refresh tokens deleted by the sweeper.",
})

// ExpiredTokenDeleter deletes refresh tokens that expired at or before now.
type ExpiredTokenDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenSweeper removes expired refresh tokens.
type TokenSweeper struct {
	tokens ExpiredTokenDeleter
	logger *slog.Logger
	now    func() time.Time
}

// NewTokenSweeper creates a sweeper over tokens.
func NewTokenSweeper(tokens ExpiredTokenDeleter, logger *slog.Logger) *TokenSweeper {
	return &TokenSweeper{tokens: tokens, logger: logger, now: time.Now}
}

// Run performs one sweep.
func (s *TokenSweeper) Run(ctx context.Context) error {
	n, err := s.tokens.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "refresh token sweep failed", slog.String("error", err.Error()))
		return err
	}
	sweptTokens.Add(float64(n))
	if n > 0 {
		s.logger.InfoContext(ctx, "swept expired refresh tokens", slog.Int64("deleted", n))
	}
	return nil
}

// Scheduler runs background jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// RegisterTokenSweeper runs sweeper immediately and then every interval.
// Overlapping runs are skipped.
func (s *Scheduler) RegisterTokenSweeper(ctx context.Context, sweeper *TokenSweeper, interval time.Duration) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			runCtx, cancel := context.WithTimeout(ctx, interval)
			defer cancel()
			_ = sweeper.Run(runCtx)
		}),
		gocron.WithName("refresh-token-sweeper"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("register token sweeper: %w", err)
	}
	s.logger.Info("registered background job",
		slog.String("job", "refresh-token-sweeper"),
		slog.Duration("interval", interval),
	)
	return nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
