package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Fletcher15478/nba-game-predictor/internal/logger"
	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

// runCmd runs the daily job for every enabled sport, once or on an interval.
func (a *app) runCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	date := fs.String("date", "", "Run as if today were this YYYY-MM-DD date")
	every := fs.Duration("every", 0, "Repeat the run on this interval until interrupted (0 = run once)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	failures := make(map[models.Sport]int)
	if *every <= 0 {
		day, err := a.day(*date)
		if err != nil {
			return err
		}
		return a.runAll(ctx, day, failures)
	}

	logger.Info("Starting scheduled runs (interval: %v, sports: %v)", *every, a.cfg.EnabledSports())
	ticker := time.NewTicker(*every)
	defer ticker.Stop()
	for {
		day, err := a.day(*date)
		if err != nil {
			return err
		}
		if err := a.runAll(ctx, day, failures); err != nil {
			logger.Error("Scheduled run failed: %v", err)
		}
		if err := a.metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); err != nil {
			logger.Warn("Failed to push metrics: %v", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// runAll runs each enabled sport independently. One sport failing, including a missing
// model, does not stop the others.
func (a *app) runAll(ctx context.Context, day time.Time, failures map[models.Sport]int) error {
	var errs []error
	for _, sport := range a.cfg.EnabledSports() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		start := time.Now()
		res, err := a.pipeline.RunDaily(ctx, sport, day)
		a.handleRunResult(ctx, sport, err, failures)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sport, err))
		}
		if len(res.Predictions) > 0 {
			a.notifyPredictions(ctx, sport, res.Period, res.Predictions)
		}
		if res.Reconciled > 0 {
			a.notifyAccuracy(ctx, res.Summary)
		}
		logger.Info("%s: run for %s completed in %v (%d reconciled, %d predicted, record %s)",
			sport, res.Period.Key(), time.Since(start), res.Reconciled, len(res.Predictions), res.Summary.Record)
	}
	return errors.Join(errs...)
}

// handleRunResult sends one failure notice per streak of failures and one recovery notice
// when the streak ends.
func (a *app) handleRunResult(ctx context.Context, sport models.Sport, err error, failures map[models.Sport]int) {
	if err != nil {
		failures[sport]++
		logger.Error("%s: run failed at stage %s: %v", sport, stageOf(err), err)
		if failures[sport] == 1 && a.telegram != nil {
			if sendErr := a.telegram.SendError(ctx, sport, err); sendErr != nil {
				logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
			}
		}
		return
	}
	if failures[sport] > 0 && a.telegram != nil {
		if sendErr := a.telegram.SendRecovery(ctx, sport, failures[sport]); sendErr != nil {
			logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
		}
	}
	failures[sport] = 0
}

func (a *app) predictCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	sportFlag := fs.String("sport", "", "Sport to predict (nba or nfl)")
	date := fs.String("date", "", "Predict the period containing this YYYY-MM-DD date (default today)")
	periodFlag := fs.String("period", "", "Predict this period key, e.g. 2025-12-02 or 2025-wk07")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sport, period, err := a.target(*sportFlag, *date, *periodFlag)
	if err != nil {
		return err
	}

	preds, err := a.pipeline.GeneratePredictions(ctx, sport, period)
	if err != nil {
		return err
	}
	a.notifyPredictions(ctx, sport, period, preds)
	return printJSON(preds)
}

func (a *app) reconcileCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	sportFlag := fs.String("sport", "", "Sport to reconcile (nba or nfl)")
	date := fs.String("date", "", "Reconcile through the period containing this YYYY-MM-DD date (default yesterday's period)")
	periodFlag := fs.String("period", "", "Reconcile through this period key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sport, period, err := a.target(*sportFlag, *date, *periodFlag)
	if err != nil {
		return err
	}
	if *date == "" && *periodFlag == "" {
		period = period.Prev()
	}

	n, err := a.pipeline.Reconcile(ctx, sport, period)
	if err != nil {
		return err
	}
	summary, err := a.pipeline.Accuracy(ctx, sport)
	if err != nil {
		return err
	}
	logger.Info("%s: reconciled %d predictions through %s", sport, n, period.Key())
	if n > 0 {
		a.notifyAccuracy(ctx, summary)
	}
	return printJSON(summary)
}

func (a *app) accuracyCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("accuracy", flag.ContinueOnError)
	sportFlag := fs.String("sport", "", "Sport to summarise (nba or nfl)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sport, err := models.ParseSport(*sportFlag)
	if err != nil {
		return err
	}
	summary, err := a.pipeline.Accuracy(ctx, sport)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func (a *app) trainCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	sportFlag := fs.String("sport", "", "Sport to train (nba or nfl)")
	version := fs.String("version", "", "Version to save the model as")
	hf := registerHistoryFlags(fs, "train on")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sport, err := models.ParseSport(*sportFlag)
	if err != nil {
		return err
	}
	history, err := a.loadHistory(ctx, "train", sport, hf)
	if err != nil {
		return err
	}

	report, err := a.pipeline.Train(ctx, sport, *version, history)
	if err != nil {
		if report.Samples > 0 {
			_ = printJSON(report)
		}
		return err
	}
	return printJSON(report)
}

func (a *app) backfillCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	sportFlag := fs.String("sport", "", "Sport to backfill (nba or nfl)")
	hf := registerHistoryFlags(fs, "predict and score")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sport, err := models.ParseSport(*sportFlag)
	if err != nil {
		return err
	}
	history, err := a.loadHistory(ctx, "backfill", sport, hf)
	if err != nil {
		return err
	}

	n, err := a.pipeline.Backfill(ctx, sport, history)
	if err != nil {
		return err
	}
	summary, err := a.pipeline.Accuracy(ctx, sport)
	if err != nil {
		return err
	}
	logger.Info("%s: backfilled %d predictions from %d games", sport, n, len(history))
	return printJSON(summary)
}

func (a *app) recomputeCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recompute", flag.ContinueOnError)
	sportFlag := fs.String("sport", "", "Sport to rebuild team aggregates for (nba or nfl)")
	hf := registerHistoryFlags(fs, "rebuild from")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sport, err := models.ParseSport(*sportFlag)
	if err != nil {
		return err
	}
	history, err := a.loadHistory(ctx, "recompute", sport, hf)
	if err != nil {
		return err
	}
	return a.pipeline.Recompute(ctx, sport, history)
}

// historyFlags selects completed games from a saved file or by fetching a period range.
type historyFlags struct {
	path *string
	from *string
	to   *string
	save *string
}

func registerHistoryFlags(fs *flag.FlagSet, use string) historyFlags {
	return historyFlags{
		path: fs.String("history", "", "JSON file of completed games to "+use),
		from: fs.String("from", "", "First period key to fetch history for"),
		to:   fs.String("to", "", "Last period key to fetch history for"),
		save: fs.String("save-history", "", "Write the fetched history to this JSON file"),
	}
}

func (a *app) loadHistory(ctx context.Context, cmd string, sport models.Sport, hf historyFlags) ([]models.Outcome, error) {
	var history []models.Outcome
	switch {
	case *hf.path != "":
		data, err := os.ReadFile(*hf.path)
		if err != nil {
			return nil, fmt.Errorf("read history: %w", err)
		}
		if err := json.Unmarshal(data, &history); err != nil {
			return nil, fmt.Errorf("decode history %s: %w", *hf.path, err)
		}
	case *hf.from != "" && *hf.to != "":
		fromPeriod, err := models.ParsePeriodKey(*hf.from)
		if err != nil {
			return nil, err
		}
		toPeriod, err := models.ParsePeriodKey(*hf.to)
		if err != nil {
			return nil, err
		}
		history, err = a.pipeline.History(ctx, sport, fromPeriod, toPeriod)
		if err != nil {
			return nil, err
		}
		if *hf.save != "" {
			data, err := json.MarshalIndent(history, "", "  ")
			if err != nil {
				return nil, err
			}
			if err := os.WriteFile(*hf.save, data, 0o644); err != nil {
				return nil, fmt.Errorf("write history: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("%s needs -history or both -from and -to", cmd)
	}
	return history, nil
}

// target resolves a command's sport and period from its flags.
func (a *app) target(sportName, date, periodKey string) (models.Sport, models.Period, error) {
	sport, err := models.ParseSport(sportName)
	if err != nil {
		return "", models.Period{}, err
	}
	if periodKey != "" {
		period, err := models.ParsePeriodKey(periodKey)
		if err != nil {
			return "", models.Period{}, err
		}
		if period.IsWeekly() != sport.Weekly() {
			return "", models.Period{}, fmt.Errorf("period %s does not match %s cadence", periodKey, sport)
		}
		return sport, period, nil
	}
	day, err := a.day(date)
	if err != nil {
		return "", models.Period{}, err
	}
	return sport, a.pipeline.PeriodFor(sport, day), nil
}

// day parses a -date flag, defaulting to today in the feed's time zone.
func (a *app) day(date string) (time.Time, error) {
	if date == "" {
		now := time.Now().In(a.location)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -date %q: want YYYY-MM-DD", date)
	}
	return d, nil
}

func (a *app) notifyPredictions(ctx context.Context, sport models.Sport, period models.Period, preds []models.Prediction) {
	if a.telegram == nil {
		return
	}
	if err := a.telegram.SendPredictions(ctx, sport, period, preds); err != nil {
		logger.Warn("Failed to send predictions to Telegram: %v", err)
	}
}

func (a *app) notifyAccuracy(ctx context.Context, summary models.AccuracySummary) {
	if a.telegram == nil {
		return
	}
	if err := a.telegram.SendAccuracy(ctx, summary); err != nil {
		logger.Warn("Failed to send accuracy summary to Telegram: %v", err)
	}
}

func stageOf(err error) string {
	if stage := models.FailedStage(err); stage != "" {
		return stage
	}
	return "unknown"
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
