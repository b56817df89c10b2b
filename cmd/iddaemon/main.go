package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iddaemon/internal/app"
	"iddaemon/internal/config"
	logx "iddaemon/pkg/logx"
)

const stopTimeout = 30 * time.Second

func main() {
	var (
		cfgPath string
		once    bool
	)
	flag.StringVar(&cfgPath, "config", "", "optional path to a yaml/json settings file")
	flag.BoolVar(&once, "once", false, "run a single tick and exit")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		// no sinks are configured yet; report on a bootstrap console logger
		logx.NewConsole("info").Error("fatal: invalid configuration", logx.Err(err))
		os.Exit(1)
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer func() { _ = logs.Close() }()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("fatal", logx.Err(err))
		_ = logs.Close()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if once {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
		res := a.RunOnce(ctx)
		cancel()
		_ = a.Stop(context.Background(), app.StopRunOnce)
		if !res.Deletion.OK() || !res.Transfer.OK() {
			_ = logs.Close()
			os.Exit(1)
		}
		return
	}

	// The app context is not tied to signals: a tick in flight at shutdown
	// gets stopTimeout to finish.
	if err := a.Start(context.Background()); err != nil {
		log.Error("fatal start", logx.Err(err))
		_ = logs.Close()
		os.Exit(1)
	}

	reason := app.StopUnknown
	select {
	case sig := <-sigCh:
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		} else {
			reason = app.StopSIGINT
		}
	case <-a.Done():
		reason = app.StopFatalError
		log.Error("app supervisor stopped", logx.Err(a.Err()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	_ = a.Stop(ctx, reason)
}
