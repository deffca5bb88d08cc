package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Runner starts one Session per configured identity concurrently, plus the
// shared maintenance scheduler. Identity faults are isolated: a session that
// fails (or panics) is logged and stops polling, the other sessions continue.
type Runner struct {
	logger    *slog.Logger
	sessions  []*Session
	scheduler *Scheduler
}

// NewRunner creates a runner over the given sessions. scheduler may be nil
// when no maintenance tasks are configured.
func NewRunner(logger *slog.Logger, sessions []*Session, scheduler *Scheduler) *Runner {
	return &Runner{
		logger:    logger.With("component", "runner"),
		sessions:  sessions,
		scheduler: scheduler,
	}
}

// Run blocks until the context is cancelled and every session has stopped.
// It returns an error only when no session could run at all.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.sessions) == 0 {
		return errors.New("no bot sessions configured")
	}

	r.logger.Info("Starting bot sessions", "count", len(r.sessions))

	g, gCtx := errgroup.WithContext(ctx)

	if r.scheduler != nil {
		g.Go(func() error {
			if err := r.scheduler.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			if err := r.scheduler.Stop(); err != nil {
				r.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		var wg sync.WaitGroup
		for _, session := range r.sessions {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.runSession(gCtx, session)
			}()
		}
		wg.Wait()
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	r.logger.Info("All bot sessions stopped")
	return nil
}

// runSession runs one session, containing its failures so a fault in one
// identity never terminates the others.
func (r *Runner) runSession(ctx context.Context, session *Session) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Bot session panicked", "bot", session.Name(), "panic", rec)
		}
	}()

	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("Bot session stopped with error", "bot", session.Name(), "error", err)
	}
}
