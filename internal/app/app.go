// Package app wires the id-server client, the trigger runner and the
// scheduler into the daemon's lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"iddaemon/internal/config"
	"iddaemon/internal/idserver"
	"iddaemon/internal/runtime/supervisor"
	"iddaemon/internal/task/scheduler"
	"iddaemon/internal/trigger"
	logx "iddaemon/pkg/logx"
	"iddaemon/pkg/systemd"
)

// JobName is the scheduler entry that runs one tick.
const JobName = "idserver-admin"

type App struct {
	cfg *config.Config
	log logx.Logger

	client *idserver.Client
	runner *trigger.Runner
	sched  *scheduler.Service
	notif  *systemd.Notifier

	sup *supervisor.Supervisor
}

// New builds the app from a resolved config. The schedule is validated here
// so a bad SCHEDULE fails before anything starts.
func New(cfg *config.Config, log logx.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	client := idserver.New(idserver.Options{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.HTTPTimeout,
		RatePerSec: cfg.RatePerSec,
	})
	a := &App{
		cfg:    cfg,
		log:    log.With(logx.String("comp", "app")),
		client: client,
		runner: trigger.NewRunner(client, log.With(logx.String("comp", "trigger"))),
		sched:  scheduler.New(log.With(logx.String("comp", "scheduler")), scheduler.WithLocation(cfg.Location)),
		notif:  systemd.NewNotifier(cfg.Systemd.Notify),
	}
	if err := a.sched.Add(JobName, cfg.Schedule, func(ctx context.Context) { a.tick(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return a, nil
}

// tick runs one tick and mirrors its outcome into the systemd STATUS= line.
func (a *App) tick(ctx context.Context) trigger.TickResult {
	res := a.runner.Tick(ctx)
	if _, err := a.notif.Status(tickStatus(res, a.sched.Next(JobName))); err != nil {
		a.log.Warn("systemd status notification failed", logx.Err(err))
	}
	return res
}

func tickStatus(res trigger.TickResult, next time.Time) string {
	s := fmt.Sprintf("tick %d: deletion=%s transfer=%s", res.Seq, res.Deletion.Kind, res.Transfer.Kind)
	if !next.IsZero() {
		s += "; next run " + next.Format(time.RFC3339)
	}
	return s
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start arms the schedule. The first tick fires one period after Start.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return fmt.Errorf("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.sched.Start(a.sup.Context())

	next := a.sched.Next(JobName)
	fields := append(config.LogFields(a.cfg), logx.Time("next_run", next))
	a.log.Info("app started", fields...)

	if _, err := a.notif.Ready("next run " + next.Format(time.RFC3339)); err != nil {
		a.log.Warn("systemd ready notification failed", logx.Err(err))
	}
	if a.cfg.Systemd.Watchdog {
		a.startWatchdog()
	}
	return nil
}

func (a *App) startWatchdog() {
	interval, err := a.notif.WatchdogInterval()
	if err != nil {
		a.log.Warn("systemd watchdog unavailable", logx.Err(err))
		return
	}
	if interval <= 0 {
		return
	}
	a.log.Debug("systemd watchdog enabled", logx.Duration("timeout", interval))
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		a.notif.RunWatchdog(c, interval/2, func(err error) {
			a.log.Warn("systemd watchdog ping failed", logx.Err(err))
		})
	})
}

// RunOnce runs a single tick outside the schedule.
func (a *App) RunOnce(ctx context.Context) trigger.TickResult {
	return a.tick(ctx)
}

// Stop halts the schedule. A tick already running gets until ctx ends to
// finish, then its context is canceled.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.client.Close()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := a.notif.Stopping(); err != nil {
		a.log.Warn("systemd stopping notification failed", logx.Err(err))
	}

	a.step(ctx, "scheduler", 0, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Stop(c) })
	a.client.Close()

	a.log.Info("stopped")
	return nil
}

// step runs one shutdown step bounded by max (0 means the caller's ctx only).
// A step that outlives its deadline is logged and left behind.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

	stepCtx := ctx
	if max > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, max)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}
