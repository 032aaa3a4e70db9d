package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Fletcher15478/nba-game-predictor/internal/config"
	"github.com/Fletcher15478/nba-game-predictor/internal/engine"
	"github.com/Fletcher15478/nba-game-predictor/internal/espn"
	"github.com/Fletcher15478/nba-game-predictor/internal/forest"
	"github.com/Fletcher15478/nba-game-predictor/internal/logger"
	"github.com/Fletcher15478/nba-game-predictor/internal/metrics"
	"github.com/Fletcher15478/nba-game-predictor/internal/models"
	"github.com/Fletcher15478/nba-game-predictor/internal/pipeline"
	"github.com/Fletcher15478/nba-game-predictor/internal/runlock"
	"github.com/Fletcher15478/nba-game-predictor/internal/storage"
	"github.com/Fletcher15478/nba-game-predictor/internal/telegram"
)

const usage = `usage: gameoracle [-config path] <command> [flags]

commands:
  run        reconcile yesterday and predict today for every enabled sport
  predict    predict one sport's period
  reconcile  reconcile one sport's predictions through a period
  accuracy   print one sport's accuracy summary as JSON
  train      train and save a classifier from completed games
  backfill   predict and score past games that were never predicted
  recompute  rebuild team aggregates from completed games
`

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

// app holds the wired dependencies shared by every command.
type app struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	metrics  *metrics.Recorder
	telegram *telegram.Client
	location *time.Location
}

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.DataDir, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	locker, closeLocker, err := newLocker(cfg.Lock)
	if err != nil {
		logger.Fatal("Failed to initialize run lock: %v", err)
	}
	defer closeLocker()

	feed := espn.NewClient(cfg.Feeds.BaseURL, cfg.Feeds.Timeout, cfg.Feeds.MaxRetries, cfg.Feeds.RetryDelayBase)
	rec := metrics.New()

	a := &app{
		cfg:      cfg,
		metrics:  rec,
		location: scheduleLocation(),
		pipeline: pipeline.New(feed, feed, store, forest.NewRegistry(cfg.Model.Dir), locker, rec, pipelineOptions(cfg, feed)),
	}

	if cfg.Telegram.Enabled {
		a.telegram, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	logger.Set(logger.With("run_id", uuid.NewString(), "command", cmd).Desugar())

	var cmdErr error
	switch cmd {
	case "run":
		cmdErr = a.runCmd(ctx, args)
	case "predict":
		cmdErr = a.predictCmd(ctx, args)
	case "reconcile":
		cmdErr = a.reconcileCmd(ctx, args)
	case "accuracy":
		cmdErr = a.accuracyCmd(ctx, args)
	case "train":
		cmdErr = a.trainCmd(ctx, args)
	case "backfill":
		cmdErr = a.backfillCmd(ctx, args)
	case "recompute":
		cmdErr = a.recomputeCmd(ctx, args)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err := rec.Push(context.Background(), cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		logger.Warn("Failed to push metrics: %v", err)
	}
	if cmdErr != nil {
		logger.Error("%s failed: %v", cmd, cmdErr)
		logger.Sync()
		os.Exit(1)
	}
}

func newLocker(cfg config.LockConfig) (runlock.Locker, func(), error) {
	switch cfg.Backend {
	case runlock.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close redis client: %v", err)
			}
		}
		return runlock.NewRedis(client, cfg.TTL), closeFn, nil
	default:
		l, err := runlock.NewFile(cfg.Dir, cfg.TTL)
		return l, func() {}, err
	}
}

func pipelineOptions(cfg *config.Config, injuries pipeline.InjurySource) pipeline.Options {
	opts := pipeline.Options{
		ModelVersions:     make(map[models.Sport]string),
		SeasonStarts:      make(map[models.Sport]time.Time),
		FetchConcurrency:  cfg.Feeds.FetchConcurrency,
		MaxPendingPeriods: cfg.Ledger.MaxPendingPeriods,
		MissingData:       engine.MissingDataPolicy(cfg.Model.MissingData),
		Train: forest.TrainConfig{
			Trees:           cfg.Model.Trees,
			MaxDepth:        cfg.Model.MaxDepth,
			MinLeaf:         cfg.Model.MinLeaf,
			FeatureFraction: cfg.Model.FeatureFraction,
			HoldoutFraction: cfg.Model.HoldoutFraction,
			Seed:            cfg.Model.Seed,
			MinAccuracy:     cfg.Model.MinHoldoutAccuracy,
		},
	}
	for name, sc := range cfg.Sports {
		sport, err := models.ParseSport(name)
		if err != nil {
			continue
		}
		opts.ModelVersions[sport] = sc.ModelVersion
		opts.SeasonStarts[sport] = sc.SeasonStartDate()
	}
	if cfg.Feeds.Injuries {
		opts.Injuries = injuries
	}
	return opts
}

// scheduleLocation is the zone the feed dates its games in.
func scheduleLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		logger.Warn("Falling back to UTC for schedule dates: %v", err)
		return time.UTC
	}
	return loc
}
