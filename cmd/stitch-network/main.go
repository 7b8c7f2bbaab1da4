// Command stitch-network builds the simplified sub-network: it stitches short
// segments, decides platform lengths, places station entry nodes, stores the
// run and writes the output files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/onurdenizs/sub-net/internal/config"
	"github.com/onurdenizs/sub-net/internal/db"
	"github.com/onurdenizs/sub-net/internal/export"
	"github.com/onurdenizs/sub-net/internal/logging"
	"github.com/onurdenizs/sub-net/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (overrides environment)")
	segmentsPath := flag.String("segments", "", "Segment table CSV (overrides config)")
	platformsPath := flag.String("platforms", "", "Platform edge CSV (overrides config)")
	outputDir := flag.String("out", "", "Output directory (overrides config)")
	dbPath := flag.String("db", "", "SQLite run store (overrides config, \"-\" disables)")
	force := flag.Bool("force", false, "Run even when the outputs are current")
	debug := flag.Bool("debug", false, "Verbose development logging")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	overrideString(&cfg.SegmentsPath, *segmentsPath)
	overrideString(&cfg.PlatformsPath, *platformsPath)
	overrideString(&cfg.OutputDir, *outputDir)
	overrideString(&cfg.DatabasePath, *dbPath)
	cfg.Debug = cfg.Debug || *debug

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *force, logger); err != nil {
		logger.Errorw("run failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, force bool, logger *zap.SugaredLogger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	checksum, err := fingerprint(cfg)
	if err != nil {
		return err
	}

	if !force && export.IsCurrent(cfg.OutputDir, checksum) {
		if storeIsCurrent(ctx, cfg, checksum, logger) {
			logger.Infow("outputs are current, nothing to do", "dir", cfg.OutputDir, "checksum", checksum)
			return nil
		}
		logger.Infow("outputs are current but the run store is not, running again", "db", cfg.DatabasePath)
	}

	res, err := pipeline.Run(ctx, cfg, logger)
	if err != nil {
		return err
	}

	runID := ""
	if cfg.DatabasePath != "-" {
		runID, err = store(ctx, cfg, res, checksum, logger)
		if err != nil {
			return err
		}
	}

	if _, err := export.Write(cfg.OutputDir, res, checksum, runID, logger); err != nil {
		return fmt.Errorf("failed to write outputs: %w", err)
	}
	return nil
}

// fingerprint identifies the inputs and every setting that changes the
// outputs. The worker count only changes scheduling and is left out.
func fingerprint(cfg *config.Config) (string, error) {
	params := pipeline.ParamsFromConfig(cfg)
	params.Stitch.Workers = 0

	checksum, err := export.Fingerprint(
		[]string{cfg.SegmentsPath, cfg.PlatformsPath},
		struct {
			Lines  []int
			Params pipeline.Params
		}{cfg.LineIDs, params},
	)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint inputs: %w", err)
	}
	return checksum, nil
}

// storeIsCurrent reports whether the latest stored run was made from the same
// inputs. A disabled store is always current.
func storeIsCurrent(ctx context.Context, cfg *config.Config, checksum string, logger *zap.SugaredLogger) bool {
	if cfg.DatabasePath == "-" {
		return true
	}
	if _, err := os.Stat(cfg.DatabasePath); err != nil {
		return false
	}

	database, err := db.Connect(cfg.DatabasePath, logger)
	if err != nil {
		logger.Warnw("cannot check run store", "error", err)
		return false
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		logger.Warnw("cannot check run store", "error", err)
		return false
	}
	latest, err := database.LatestRun(ctx)
	if err != nil {
		return false
	}
	return latest.InputChecksum == checksum && latest.GeneratorVersion == export.GeneratorVersion
}

func store(ctx context.Context, cfg *config.Config, res *pipeline.Result, checksum string, logger *zap.SugaredLogger) (string, error) {
	database, err := db.Connect(cfg.DatabasePath, logger)
	if err != nil {
		return "", err
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return "", err
	}

	runID, err := database.SaveRun(ctx, res, checksum, export.GeneratorVersion)
	if err != nil {
		return "", err
	}

	if _, err := database.PruneRuns(ctx, cfg.RunRetention); err != nil {
		logger.Warnw("failed to prune old runs", "error", err)
	}
	return runID, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load(), nil
	}
	return config.LoadFile(path)
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
