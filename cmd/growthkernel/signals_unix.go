//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// setupSignalHandlers wires SIGINT/SIGTERM to graceful shutdown, SIGHUP to
// a live config reload (currently just the scheduler's p0_daily_sync cron
// expression), and SIGUSR1 to an immediate, out-of-band orchestrator
// cycle — useful for forcing a sync pass between scheduled fires without
// waiting on cron.
func setupSignalHandlers(ctx context.Context, cancel context.CancelFunc, app *App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)

	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				app.Logger.Info("shutdown signal received", "signal", sig)
				cancel()

			case syscall.SIGHUP:
				app.Logger.Info("reload signal received, reloading config", "path", app.ConfigPath)
				if err := reloadApp(app); err != nil {
					app.Logger.Error("config reload failed", "error", err)
				}

			case syscall.SIGUSR1:
				app.Logger.Info("trigger signal received, running p0_daily_sync now")
				go func() {
					if _, err := app.Deps.Scheduler.TriggerNow(context.Background(), "p0_daily_sync"); err != nil {
						app.Logger.Error("manual trigger failed", "error", err)
					}
				}()
			}
		}
	}()
}
