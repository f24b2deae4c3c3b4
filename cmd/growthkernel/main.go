package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/clawinfra/growthkernel/internal/config"
	"github.com/clawinfra/growthkernel/internal/deps"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
)

// App holds every wired component for the growthkernel process.
type App struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Deps       *deps.Deps

	runCtx    context.Context
	runCancel context.CancelFunc
}

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) > 1 && os.Args[1] == "gateway" {
		if err := runGatewayCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		return 0
	}

	configPath := flag.String("config", "growthkernel.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("growthkernel v%s (built %s)\n", version, buildTime)
		fmt.Println("organic growth orchestrator: perception, judgment, relationship, evolution, data-lifecycle")
		return 0
	}

	app, err := setup(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		return 1
	}

	if err := startServices(app); err != nil {
		app.Logger.Error("failed to start services", "error", err)
		return 1
	}

	printBanner(app)

	if err := waitForShutdown(app); err != nil {
		app.Logger.Error("shutdown error", "error", err)
		return 1
	}

	return 0
}

// setup initializes the application: loads config, wires every kernel
// component via deps.RegisterAll.
func setup(configPath string) (*App, error) {
	app := &App{ConfigPath: configPath}

	app.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	app.Logger.Info("starting growthkernel", "version", version, "config", configPath)

	cfg, err := loadConfig(configPath, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app.Config = cfg

	app.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	d, err := deps.RegisterAll(cfg, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("register components: %w", err)
	}
	app.Deps = d

	return app, nil
}

// loadConfig loads configuration from file, creating and persisting a
// default one on first run.
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no config found, creating default")
			cfg = config.DefaultConfig()
			if err := cfg.Save(path); err != nil {
				return nil, fmt.Errorf("save default config: %w", err)
			}
			logger.Info("default config created", "path", path)
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// reloadApp re-reads ConfigPath and pushes any changed cron expression
// for the p0_daily_sync job into the running Scheduler, without
// restarting the process or dropping job history. Other config fields
// (agent list, thresholds) take effect on the next process start only;
// only the schedule is live-reloadable.
func reloadApp(app *App) error {
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	if cfg.Scheduler.CronExpression != app.Config.Scheduler.CronExpression {
		if err := app.Deps.Scheduler.UpdateSchedule("p0_daily_sync", cfg.Scheduler.CronExpression); err != nil {
			return fmt.Errorf("update p0_daily_sync schedule: %w", err)
		}
		app.Logger.Info("p0_daily_sync schedule updated",
			"old_cron", app.Config.Scheduler.CronExpression, "new_cron", cfg.Scheduler.CronExpression)
	}
	app.Config = cfg
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startServices starts the scheduler, which begins firing the five
// default jobs (p0_daily_sync, p3_evolution, data_lifecycle,
// quality_check, meridian_monitor) and runs one coalesced catch-up pass
// for any that were already due.
func startServices(app *App) error {
	app.runCtx, app.runCancel = context.WithCancel(context.Background())
	app.Deps.Scheduler.Start(app.runCtx)
	return nil
}

func printBanner(app *App) {
	fmt.Println()
	fmt.Println("  growthkernel v" + version)
	fmt.Println("  organic growth orchestrator")
	fmt.Println("  perception -> judgment -> relationship -> evolution -> data-lifecycle")
	fmt.Println()
	fmt.Printf("  data dir: %s\n", app.Config.Server.DataDir)
	fmt.Printf("  agents running: %d\n", len(app.Config.Orchestrator.AgentsToRun))
	fmt.Println()
}

// waitForShutdown blocks on a termination signal and performs a graceful
// shutdown: stop the scheduler before closing the meridian bus and the
// lineage database, so no job is mid-run when its dependencies vanish.
func waitForShutdown(app *App) error {
	ctx, cancel := context.WithCancel(context.Background())
	setupSignalHandlers(ctx, cancel, app)

	<-ctx.Done()
	app.Logger.Info("shutdown signal received")

	app.Deps.Scheduler.Stop()
	if app.runCancel != nil {
		app.runCancel()
	}
	app.Deps.Close()

	app.Logger.Info("growthkernel stopped")
	return nil
}
