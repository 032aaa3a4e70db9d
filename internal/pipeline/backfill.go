package pipeline

import (
	"context"
	"sort"

	"github.com/Fletcher15478/nba-game-predictor/internal/engine"
	"github.com/Fletcher15478/nba-game-predictor/internal/ledger"
	"github.com/Fletcher15478/nba-game-predictor/internal/logger"
	"github.com/Fletcher15478/nba-game-predictor/internal/models"
	"github.com/Fletcher15478/nba-game-predictor/internal/stats"
)

// Backfill predicts past games with the pinned model, from the aggregates each team had
// before the game day, and scores them against the known results. Periods that already
// hold a slate and games already reconciled are left alone, so a rerun adds nothing. It
// returns the number of predictions added.
func (p *Pipeline) Backfill(ctx context.Context, sport models.Sport, history []models.Outcome) (int, error) {
	release, err := p.lock(ctx, sport)
	if err != nil {
		p.recordFailure(sport, err)
		return 0, err
	}
	defer release()

	n, err := p.backfill(ctx, sport, history)
	if err != nil {
		p.recordFailure(sport, err)
	}
	return n, err
}

func (p *Pipeline) backfill(ctx context.Context, sport models.Sport, history []models.Outcome) (int, error) {
	model, err := p.model(sport)
	if err != nil {
		return 0, err
	}
	docs, err := p.store.Load(ctx, sport)
	if err != nil {
		return 0, models.AtStage(models.StageLoad, err)
	}
	l := ledger.New(docs.Stats)

	added := make(map[string][]models.Prediction)
	var results []models.Outcome
	err = replayByDay(sport, history, func(day []models.Outcome, agg *stats.Aggregator) error {
		var matchups []models.Matchup
		for _, o := range day {
			if _, ok := docs.Predictions.Periods[o.Matchup.Period.Key()]; ok {
				continue
			}
			if l.IsReconciled(o.Matchup.Key()) {
				continue
			}
			matchups = append(matchups, o.Matchup)
		}
		if len(matchups) == 0 {
			return nil
		}
		preds, err := engine.New(agg, p.builder, model).
			WithMissingDataPolicy(p.opts.MissingData).
			Predict(matchups)
		if err != nil {
			return err
		}
		for _, pr := range preds {
			key := pr.Matchup.Period.Key()
			added[key] = append(added[key], pr)
		}
		results = append(results, day...)
		return nil
	})
	if err != nil {
		return 0, models.AtStage(models.StagePredict, err)
	}
	if len(added) == 0 {
		logger.Info("%s: nothing to backfill", sport)
		return 0, nil
	}

	var all []models.Prediction
	for key, preds := range added {
		sort.Slice(preds, func(i, j int) bool { return preds[i].Key() < preds[j].Key() })
		docs.Predictions.Periods[key] = preds
		all = append(all, preds...)
	}
	before := docs.Stats.CorrectPredictions
	reconciled := l.Reconcile(all, results)

	if err := p.store.Commit(ctx, sport, docs); err != nil {
		return 0, models.AtStage(models.StageCommit, err)
	}

	if p.metrics != nil {
		p.metrics.PredictionsIssued(sport, len(all))
		p.metrics.Reconciled(sport, reconciled, docs.Stats.CorrectPredictions-before, l.Summary().AccuracyPct)
	}
	logger.Info("%s: backfilled %d predictions over %d periods with model %s",
		sport, len(all), len(added), model.Version())
	return len(all), nil
}

// Recompute rebuilds sport's team aggregates from history, replacing the stored ones.
func (p *Pipeline) Recompute(ctx context.Context, sport models.Sport, history []models.Outcome) error {
	release, err := p.lock(ctx, sport)
	if err != nil {
		p.recordFailure(sport, err)
		return err
	}
	defer release()

	docs, err := p.store.Load(ctx, sport)
	if err != nil {
		err = models.AtStage(models.StageLoad, err)
		p.recordFailure(sport, err)
		return err
	}
	if err := stats.New(sport, stats.NewMemoryStore(docs.Teams)).Recompute(history); err != nil {
		err = models.AtStage(models.StageReconcile, err)
		p.recordFailure(sport, err)
		return err
	}
	if err := p.store.Commit(ctx, sport, docs); err != nil {
		err = models.AtStage(models.StageCommit, err)
		p.recordFailure(sport, err)
		return err
	}
	logger.Info("%s: rebuilt aggregates for %d teams from %d games", sport, len(docs.Teams.Teams), len(history))
	return nil
}
