package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronLogger routes the scheduler's own logging through slog.
type cronLogger struct {
	l *slog.Logger
}

func (c *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// Watch refreshes every editable table and the sample list on the configured
// schedule until ctx is cancelled. A run that is still in progress when the
// next one is due causes that run to be skipped. onRefresh, if non-nil, is
// called after every run with its result.
func (a *FEIDApp) Watch(ctx context.Context, onRefresh func(error)) error {
	logger := &cronLogger{l: a.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(a.cfg.Refresh.Schedule, func() {
		err := a.service.Refresh(ctx)
		if err != nil {
			a.logger.Error("scheduled refresh failed", "error", err)
		} else {
			a.logger.Info("scheduled refresh finished")
		}
		if onRefresh != nil {
			onRefresh(err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", a.cfg.Refresh.Schedule, err)
	}

	a.logger.Info("watching", "schedule", a.cfg.Refresh.Schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
