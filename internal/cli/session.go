package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/habitual/internal/config"
	"github.com/julianstephens/habitual/internal/session"
)

// runSession holds the session lock and runs a Manager until fn returns or
// the process is interrupted. Resume signals force a date re-check.
func (c *Context) runSession(fn func(ctx context.Context, mgr *session.Manager) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := session.AcquireLock(config.Dir(c.ConfigPath))
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			c.Log.Warn("Failed to release session lock", "error", err)
		}
	}()

	if _, err := c.Store(ctx); err != nil {
		return err
	}
	c.PerformAutomaticBackup(ctx)

	cfg, err := c.SessionConfig(ctx)
	if err != nil {
		return err
	}
	mgr := session.NewManager(cfg, c.Identity())

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	g.Go(func() error { return mgr.Run(runCtx) })
	g.Go(func() error {
		defer cancel()
		return fn(runCtx, mgr)
	})

	if sigs := resumeSignals(); len(sigs) > 0 {
		resumed := make(chan os.Signal, 1)
		signal.Notify(resumed, sigs...)
		defer signal.Stop(resumed)
		g.Go(func() error {
			for {
				select {
				case <-runCtx.Done():
					return nil
				case <-resumed:
					c.Log.Debug("Resumed, re-checking date")
					mgr.Resume()
				}
			}
		})
	}

	return g.Wait()
}
