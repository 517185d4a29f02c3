package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/hydrosim/internal/config"
	"github.com/HerbHall/hydrosim/internal/insight"
	"github.com/HerbHall/hydrosim/internal/insight/forecast"
	"github.com/HerbHall/hydrosim/internal/insight/ingest"
	"github.com/HerbHall/hydrosim/internal/quality"
	"github.com/HerbHall/hydrosim/internal/server"
	"go.uber.org/zap"
)

// offlineEnv loads configuration and a logger for the offline commands.
func offlineEnv(configPath string) (*config.ViperConfig, *zap.Logger, error) {
	v, err := server.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	logger, err := config.NewLogger(v)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	return config.New(v), logger, nil
}

// runTrain fits the growth-quality classifier on a labelled CSV and
// persists it where the quality plugin loads it from.
func runTrain(args []string) int {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	data := fs.String("data", "", "labelled CSV file path or URL (required)")
	out := fs.String("out", "", "model output path (default: plugins.quality.model_path)")
	_ = fs.Parse(args)

	if *data == "" {
		fmt.Fprintln(os.Stderr, "train: -data is required")
		fs.Usage()
		return 2
	}

	cfg, logger, err := offlineEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "train: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	qcfg := quality.DefaultConfig()
	if err := cfg.Sub("plugins.quality").Unmarshal(&qcfg); err != nil {
		logger.Error("invalid quality configuration", zap.Error(err))
		return 1
	}
	if *out != "" {
		qcfg.ModelPath = *out
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	samples, err := quality.LoadSamples(ctx, ingest.NewFetcher(), *data, qcfg.LabelColumn)
	if err != nil {
		logger.Error("failed to read training data", zap.String("data", *data), zap.Error(err))
		return 1
	}
	model, err := quality.Train(samples, qcfg.Training)
	if err != nil {
		logger.Error("training failed", zap.Error(err))
		return 1
	}
	if err := quality.Save(qcfg.ModelPath, model); err != nil {
		logger.Error("failed to save model", zap.String("path", qcfg.ModelPath), zap.Error(err))
		return 1
	}

	r := model.Report
	logger.Info("quality classifier trained",
		zap.String("path", qcfg.ModelPath),
		zap.Int("train_size", r.TrainSize),
		zap.Int("test_size", r.TestSize),
		zap.Float64("accuracy", r.Accuracy),
		zap.Float64("f1", r.F1),
		zap.Duration("duration", time.Since(start)),
	)
	fmt.Printf("accuracy %.3f  precision %.3f  recall %.3f  f1 %.3f\n", r.Accuracy, r.Precision, r.Recall, r.F1)
	return 0
}

// runFit fits the leaf-count forecaster on a sensor log and persists it as
// the pretrained model.
func runFit(args []string) int {
	fs := flag.NewFlagSet("fit", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	data := fs.String("data", "", "sensor CSV file path or URL (default: plugins.insight.sample_data)")
	out := fs.String("out", "", "model output path (default: plugins.insight.pretrained_model)")
	_ = fs.Parse(args)

	cfg, logger, err := offlineEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fit: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	icfg := insight.DefaultConfig()
	if err := cfg.Sub("plugins.insight").Unmarshal(&icfg); err != nil {
		logger.Error("invalid insight configuration", zap.Error(err))
		return 1
	}
	if err := icfg.Validate(); err != nil {
		logger.Error("invalid insight configuration", zap.Error(err))
		return 1
	}
	if *data != "" {
		icfg.SampleData = *data
	}
	if *out != "" {
		icfg.PretrainedModel = *out
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	table, err := ingest.NewFetcher().LoadTable(ctx, icfg.SampleData)
	if err != nil {
		logger.Error("failed to read sensor data", zap.String("data", icfg.SampleData), zap.Error(err))
		return 1
	}
	series, err := icfg.Normalizer().Normalize(table)
	if err != nil {
		logger.Error("sensor data rejected", zap.Error(err))
		return 1
	}
	engine, err := forecast.NewEngine(icfg.EngineConfig(nil))
	if err != nil {
		logger.Error("invalid forecaster settings", zap.Error(err))
		return 1
	}
	if err := engine.Fit(series); err != nil {
		logger.Error("fit failed", zap.Error(err))
		return 1
	}
	if err := engine.Save(icfg.PretrainedModel); err != nil {
		logger.Error("failed to save model", zap.String("path", icfg.PretrainedModel), zap.Error(err))
		return 1
	}
	logger.Info("forecaster fitted",
		zap.String("path", icfg.PretrainedModel),
		zap.Int("rows", len(series)),
		zap.String("growth", engine.Config().Growth),
		zap.Duration("duration", time.Since(start)),
	)
	return 0
}
