// Package pipeline runs the daily predict-and-reconcile job and offline training for
// each sport.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Fletcher15478/nba-game-predictor/internal/engine"
	"github.com/Fletcher15478/nba-game-predictor/internal/features"
	"github.com/Fletcher15478/nba-game-predictor/internal/forest"
	"github.com/Fletcher15478/nba-game-predictor/internal/ledger"
	"github.com/Fletcher15478/nba-game-predictor/internal/logger"
	"github.com/Fletcher15478/nba-game-predictor/internal/metrics"
	"github.com/Fletcher15478/nba-game-predictor/internal/models"
	"github.com/Fletcher15478/nba-game-predictor/internal/runlock"
	"github.com/Fletcher15478/nba-game-predictor/internal/stats"
	"github.com/Fletcher15478/nba-game-predictor/internal/storage"
)

// ScheduleSource lists the games scheduled in a period.
type ScheduleSource interface {
	Schedule(ctx context.Context, sport models.Sport, period models.Period) ([]models.Matchup, error)
}

// ScoreSource lists the completed games of a period. Unfinished games are absent.
type ScoreSource interface {
	Outcomes(ctx context.Context, sport models.Sport, period models.Period) ([]models.Outcome, error)
}

// InjurySource reports how many players each team currently has ruled out.
type InjurySource interface {
	Injuries(ctx context.Context, sport models.Sport) (map[string]int, error)
}

// ModelStore loads pinned classifiers and saves newly trained ones.
type ModelStore interface {
	Load(sport models.Sport, version string) (*forest.Model, error)
	Save(m *forest.Model) error
}

// Options configures a Pipeline.
type Options struct {
	// ModelVersions pins the classifier version used for inference per sport.
	ModelVersions map[models.Sport]string
	// SeasonStarts is the first day of week 1 for weekly sports.
	SeasonStarts     map[models.Sport]time.Time
	Train            forest.TrainConfig
	FetchConcurrency int
	// MaxPendingPeriods bounds how many earlier periods with still-issued predictions a
	// reconcile re-offers, counting the requested period. 0 re-offers all of them.
	MaxPendingPeriods int
	MissingData       engine.MissingDataPolicy
	// Injuries is optional. When nil, or when it fails, every team plays at full strength.
	Injuries InjurySource
}

// Pipeline is the entry point for every exposed operation.
type Pipeline struct {
	schedule ScheduleSource
	scores   ScoreSource
	store    storage.Store
	models   ModelStore
	locker   runlock.Locker
	metrics  *metrics.Recorder
	builder  *features.Builder
	opts     Options
}

// New wires a Pipeline. rec may be nil.
func New(schedule ScheduleSource, scores ScoreSource, store storage.Store, modelStore ModelStore,
	locker runlock.Locker, rec *metrics.Recorder, opts Options) *Pipeline {
	if opts.FetchConcurrency < 1 {
		opts.FetchConcurrency = 1
	}
	if opts.MissingData == "" {
		opts.MissingData = engine.DefaultMissingDataPolicy
	}
	return &Pipeline{
		schedule: schedule,
		scores:   scores,
		store:    store,
		models:   modelStore,
		locker:   locker,
		metrics:  rec,
		builder:  features.NewBuilder(),
		opts:     opts,
	}
}

// DailyResult summarises one RunDaily invocation.
type DailyResult struct {
	Period      models.Period
	Reconciled  int
	Predictions []models.Prediction
	Summary     models.AccuracySummary
}

// PeriodFor returns the period a run on day covers for sport.
func (p *Pipeline) PeriodFor(sport models.Sport, day time.Time) models.Period {
	return PeriodFor(sport, day, p.opts.SeasonStarts[sport])
}

// GeneratePredictions predicts every game scheduled in period and stores the slate,
// replacing any earlier slate for the same period.
func (p *Pipeline) GeneratePredictions(ctx context.Context, sport models.Sport, period models.Period) ([]models.Prediction, error) {
	release, err := p.lock(ctx, sport)
	if err != nil {
		p.recordFailure(sport, err)
		return nil, err
	}
	defer release()
	model, err := p.model(sport)
	if err != nil {
		p.recordFailure(sport, err)
		return nil, err
	}
	preds, err := p.generate(ctx, sport, period, model)
	if err != nil {
		p.recordFailure(sport, err)
	}
	return preds, err
}

// Reconcile scores all still-issued predictions up to and including period against final
// results, and folds the fetched results into the team aggregates. It returns the number
// of predictions reconciled by this call.
func (p *Pipeline) Reconcile(ctx context.Context, sport models.Sport, period models.Period) (int, error) {
	release, err := p.lock(ctx, sport)
	if err != nil {
		p.recordFailure(sport, err)
		return 0, err
	}
	defer release()
	n, err := p.reconcile(ctx, sport, period)
	if err != nil {
		p.recordFailure(sport, err)
	}
	return n, err
}

// RunDaily reconciles the period before day, then predicts day's period. Unavailable
// results for the previous period do not block today's predictions; the error is still
// returned. The pinned model is loaded first, so a missing model fails the run before
// anything is written.
func (p *Pipeline) RunDaily(ctx context.Context, sport models.Sport, day time.Time) (DailyResult, error) {
	start := time.Now()
	period := p.PeriodFor(sport, day)
	res := DailyResult{Period: period}

	release, err := p.lock(ctx, sport)
	if err != nil {
		p.recordFailure(sport, err)
		return res, err
	}
	defer release()

	model, err := p.model(sport)
	if err != nil {
		p.recordFailure(sport, err)
		return res, err
	}

	n, recErr := p.reconcile(ctx, sport, period.Prev())
	if recErr != nil && !errors.Is(recErr, models.ErrDataUnavailable) {
		p.recordFailure(sport, recErr)
		return res, recErr
	}
	if recErr != nil {
		logger.Warn("%s: reconciling %s skipped: %v", sport, period.Prev().Key(), recErr)
		p.recordFailure(sport, recErr)
	}
	res.Reconciled = n

	preds, genErr := p.generate(ctx, sport, period, model)
	if genErr != nil {
		p.recordFailure(sport, genErr)
		return res, errors.Join(recErr, genErr)
	}
	res.Predictions = preds

	summary, err := p.Accuracy(ctx, sport)
	if err != nil {
		return res, errors.Join(recErr, err)
	}
	res.Summary = summary

	if recErr == nil && p.metrics != nil {
		p.metrics.RunSucceeded(sport, time.Now(), time.Since(start))
	}
	return res, recErr
}

// Accuracy returns the cumulative accuracy summary for sport.
func (p *Pipeline) Accuracy(ctx context.Context, sport models.Sport) (models.AccuracySummary, error) {
	docs, err := p.store.Load(ctx, sport)
	if err != nil {
		return models.AccuracySummary{}, models.AtStage(models.StageLoad, err)
	}
	return ledger.New(docs.Stats).Summary(), nil
}

// lock serializes every run that writes sport's documents.
func (p *Pipeline) lock(ctx context.Context, sport models.Sport) (func(), error) {
	key := runlock.Key(sport)
	lease, err := p.locker.Acquire(ctx, key)
	if err != nil {
		return nil, models.AtStage(models.StageLock, err)
	}
	return func() {
		if err := lease.Release(context.Background()); err != nil {
			logger.Warn("failed to release lock %s: %v", key, err)
		}
	}, nil
}

// model loads the classifier version pinned for sport.
func (p *Pipeline) model(sport models.Sport) (*forest.Model, error) {
	model, err := p.models.Load(sport, p.opts.ModelVersions[sport])
	if err != nil {
		return nil, models.AtStage(models.StagePredict, err)
	}
	return model, nil
}

func (p *Pipeline) generate(ctx context.Context, sport models.Sport, period models.Period, model *forest.Model) ([]models.Prediction, error) {
	docs, err := p.store.Load(ctx, sport)
	if err != nil {
		return nil, models.AtStage(models.StageLoad, err)
	}

	matchups, err := p.schedule.Schedule(ctx, sport, period)
	if err != nil {
		return nil, models.AtStage(models.StageFetchSchedule, err)
	}
	if len(matchups) == 0 {
		logger.Info("%s: no games scheduled for %s", sport, period.Key())
		return nil, nil
	}

	agg := stats.New(sport, stats.NewMemoryStore(docs.Teams))
	eng := engine.New(agg, p.builder, model).
		WithMissingDataPolicy(p.opts.MissingData).
		WithInjuries(p.injuries(ctx, sport))
	preds, err := eng.Predict(matchups)
	if err != nil {
		return nil, models.AtStage(models.StagePredict, err)
	}

	docs.Predictions.Periods[period.Key()] = preds
	if err := p.store.Commit(ctx, sport, docs); err != nil {
		return nil, models.AtStage(models.StageCommit, err)
	}

	if p.metrics != nil {
		p.metrics.PredictionsIssued(sport, len(preds))
	}
	logger.Info("%s: issued %d predictions for %s with model %s", sport, len(preds), period.Key(), model.Version())
	return preds, nil
}

func (p *Pipeline) reconcile(ctx context.Context, sport models.Sport, period models.Period) (int, error) {
	docs, err := p.store.Load(ctx, sport)
	if err != nil {
		return 0, models.AtStage(models.StageLoad, err)
	}

	l := ledger.New(docs.Stats)
	periods, pending := pendingPeriods(docs.Predictions, l, period, p.opts.MaxPendingPeriods)

	fetched, err := p.fetchOutcomes(ctx, sport, periods)
	if err != nil {
		return 0, models.AtStage(models.StageFetchOutcomes, err)
	}

	agg := stats.New(sport, stats.NewMemoryStore(docs.Teams))
	folded := 0
	var all []models.Outcome
	for _, outcomes := range fetched {
		for _, o := range outcomes {
			applied, err := agg.Update(o)
			if err != nil {
				return 0, models.AtStage(models.StageReconcile, err)
			}
			if applied {
				folded++
			}
		}
		all = append(all, outcomes...)
	}

	before := docs.Stats.CorrectPredictions
	n := l.Reconcile(pending, all)
	if n == 0 && folded == 0 {
		logger.Debug("%s: nothing to reconcile through %s", sport, period.Key())
		return 0, nil
	}

	if err := p.store.Commit(ctx, sport, docs); err != nil {
		return 0, models.AtStage(models.StageCommit, err)
	}

	summary := l.Summary()
	if p.metrics != nil {
		p.metrics.Reconciled(sport, n, docs.Stats.CorrectPredictions-before, summary.AccuracyPct)
	}
	logger.Info("%s: reconciled %d predictions and folded %d results through %s (record %s)",
		sport, n, folded, period.Key(), summary.Record)
	return n, nil
}

// pendingPeriods returns the periods to fetch results for, oldest first, and the
// still-issued predictions among them. The requested period is always fetched so its
// results reach the team aggregates. A positive limit keeps only the newest limit periods.
func pendingPeriods(doc *models.PredictionsDocument, l *ledger.Ledger, through models.Period, limit int) ([]models.Period, []models.Prediction) {
	throughKey := through.Key()
	var keys []string
	issued := make(map[string][]models.Prediction)
	for key, preds := range doc.Periods {
		if key > throughKey {
			continue
		}
		for _, pr := range preds {
			if !l.IsReconciled(pr.Key()) {
				issued[key] = append(issued[key], pr)
			}
		}
		if len(issued[key]) > 0 && key != throughKey {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit-1 {
		keys = keys[len(keys)-(limit-1):]
	}

	var periods []models.Period
	var pending []models.Prediction
	for _, key := range keys {
		periods = append(periods, issued[key][0].Matchup.Period)
		pending = append(pending, issued[key]...)
	}
	periods = append(periods, through)
	pending = append(pending, issued[throughKey]...)
	return periods, pending
}

// fetchOutcomes fetches results for each period concurrently. The result is indexed like
// periods. Any failure fails the whole fetch.
func (p *Pipeline) fetchOutcomes(ctx context.Context, sport models.Sport, periods []models.Period) ([][]models.Outcome, error) {
	out := make([][]models.Outcome, len(periods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.FetchConcurrency)
	for i, period := range periods {
		i, period := i, period
		g.Go(func() error {
			outcomes, err := p.scores.Outcomes(gctx, sport, period)
			if err != nil {
				return fmt.Errorf("results for %s: %w", period.Key(), err)
			}
			out[i] = outcomes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// injuries returns the players ruled out per team, or nil when no source is configured or
// the source fails.
func (p *Pipeline) injuries(ctx context.Context, sport models.Sport) map[string]int {
	if p.opts.Injuries == nil {
		return nil
	}
	out, err := p.opts.Injuries.Injuries(ctx, sport)
	if err != nil {
		logger.Warn("%s: injury report unavailable, predicting at full strength: %v", sport, err)
		return nil
	}
	return out
}

func (p *Pipeline) recordFailure(sport models.Sport, err error) {
	if p.metrics != nil {
		p.metrics.RunFailed(sport, models.FailedStage(err))
	}
}
