//go:build windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// setupSignalHandlers wires SIGINT/SIGTERM to graceful shutdown. Windows
// has no SIGHUP/SIGUSR1 equivalent exposed through syscall, so the live
// config-reload and forced-trigger paths available on unix
// (signals_unix.go) aren't reachable here; a config change on Windows
// requires a restart via gateway stop/start.
func setupSignalHandlers(ctx context.Context, cancel context.CancelFunc, app *App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				app.Logger.Info("shutdown signal received", "signal", sig)
				cancel()
			}
		}
	}()
}
