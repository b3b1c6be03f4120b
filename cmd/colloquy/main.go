package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/common"
	"github.com/ternarybob/colloquy/internal/httpclient"
	"github.com/ternarybob/colloquy/internal/services/events"
	"github.com/ternarybob/colloquy/internal/services/harvester"
	"github.com/ternarybob/colloquy/internal/services/scheduler"
	"github.com/ternarybob/colloquy/internal/services/state"
	badgerstore "github.com/ternarybob/colloquy/internal/storage/badger"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
	runOnce      = flag.Bool("once", false, "Run a single harvest cycle and exit")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Colloquy version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified: cwd first, then exe dir
	if len(configFiles) == 0 {
		if _, err := os.Stat("colloquy.toml"); err == nil {
			configFiles = append(configFiles, "colloquy.toml")
		} else if execPath, err := os.Executable(); err == nil {
			candidate := filepath.Join(filepath.Dir(execPath), "colloquy.toml")
			if _, err := os.Stat(candidate); err == nil {
				configFiles = append(configFiles, candidate)
			}
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	if err := run(config, logger); err != nil {
		logger.Fatal().Err(err).Msg("Colloquy failed to start")
	}
}

func run(config *common.Config, logger arbor.ILogger) error {
	db, err := badgerstore.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer db.Close()

	kvStorage := badgerstore.NewKVStorage(db, logger)
	stateService := state.NewService(kvStorage, logger)

	eventService := events.NewService(logger)
	defer eventService.Close()

	if err := events.SubscribeLoggerToAllEvents(eventService, logger); err != nil {
		return fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	baseClient, err := httpclient.NewThrottledClient(
		config.Harvester.RequestTimeout,
		config.Harvester.RequestsPerSecond,
		config.Harvester.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	apiClient := harvester.NewAPIClient(baseClient, config.Harvester.BaseURL, config.Harvester.PageSize, logger)
	gate := harvester.NewSyncGate(stateService, harvester.ComponentName, config.Harvester.SyncPeriod, logger)
	detector := harvester.NewChangeDetector(stateService, eventService, logger)
	worker := harvester.NewService(&config.Harvester, apiClient, gate, detector, eventService, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("platform", worker.PlatformName()).
		Strs("fetch_targets", worker.FetchTargets()).
		Msg("Harvest worker configured")

	if worker.ProbeLoginPresence(ctx) {
		logger.Info().Msg("Platform session detected")
	} else {
		logger.Warn().Msg("No platform session detected; cycles will retry until one appears")
	}

	if *runOnce {
		needsUpdate := worker.ProbeNeedsSync(ctx)
		logger.Info().Bool("needs_update", needsUpdate).Msg("Single harvest cycle finished")
		return nil
	}

	schedulerService := scheduler.NewService(logger)
	if err := schedulerService.RegisterJob(harvester.ComponentName, config.Scheduler.Schedule, func() error {
		worker.ProbeNeedsSync(context.Background())
		return nil
	}); err != nil {
		return fmt.Errorf("failed to register harvest job: %w", err)
	}

	if err := schedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info().
		Str("schedule", config.Scheduler.Schedule).
		Msg("Colloquy running, press Ctrl+C to stop")

	<-ctx.Done()

	logger.Info().Msg("Shutting down")
	if err := schedulerService.Stop(); err != nil {
		logger.Warn().Err(err).Msg("Scheduler stop failed")
	}

	return nil
}
