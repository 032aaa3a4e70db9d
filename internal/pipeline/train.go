package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/Fletcher15478/nba-game-predictor/internal/forest"
	"github.com/Fletcher15478/nba-game-predictor/internal/logger"
	"github.com/Fletcher15478/nba-game-predictor/internal/models"
	"github.com/Fletcher15478/nba-game-predictor/internal/stats"
)

// Train fits a classifier for sport from completed games and saves it as version. Each
// game's features are the two teams' aggregates before that game day, replayed from
// history in order. Tied games carry no label and only update the aggregates.
func (p *Pipeline) Train(ctx context.Context, sport models.Sport, version string, history []models.Outcome) (forest.Report, error) {
	if version == "" {
		return forest.Report{}, models.AtStage(models.StageTrain, fmt.Errorf("model version is required"))
	}
	samples, err := p.samples(sport, history)
	if err != nil {
		return forest.Report{}, models.AtStage(models.StageTrain, err)
	}
	if err := ctx.Err(); err != nil {
		return forest.Report{}, models.AtStage(models.StageTrain, err)
	}

	cfg := p.opts.Train
	cfg.Schema = p.builder.Schema()
	model, report, err := forest.Train(samples, cfg)
	if err != nil {
		return report, models.AtStage(models.StageTrain, err)
	}
	model.Sport = sport
	model.ModelVersion = version
	if err := p.models.Save(model); err != nil {
		return report, models.AtStage(models.StageTrain, err)
	}

	logger.Info("%s: trained model %s on %d games, holdout accuracy %.3f over %d games",
		sport, version, report.Samples, report.HoldoutAccuracy, report.HoldoutSamples)
	return report, nil
}

func (p *Pipeline) samples(sport models.Sport, history []models.Outcome) ([]forest.Sample, error) {
	var samples []forest.Sample
	err := replayByDay(sport, history, func(day []models.Outcome, agg *stats.Aggregator) error {
		for _, o := range day {
			if o.Tied() {
				continue
			}
			home := agg.SnapshotIn(o.Matchup.HomeTeam, o.Season)
			away := agg.SnapshotIn(o.Matchup.AwayTeam, o.Season)
			samples = append(samples, forest.Sample{
				Features: p.builder.Build(home, away).Values,
				HomeWin:  o.Winner == o.Matchup.HomeTeam,
			})
		}
		return nil
	})
	return samples, err
}

// replayByDay orders history by game day and walks it one day at a time through a fresh
// aggregator. visit sees each day's games against the aggregates from before that day, so
// games on the same day never see each other's results; the day is folded in afterwards.
func replayByDay(sport models.Sport, history []models.Outcome, visit func(day []models.Outcome, agg *stats.Aggregator) error) error {
	sorted := make([]models.Outcome, 0, len(history))
	for _, o := range history {
		if o.Matchup.Sport != sport {
			return fmt.Errorf("history contains a %s game", o.Matchup.Sport)
		}
		if err := o.Validate(); err != nil {
			return fmt.Errorf("invalid history game %s: %w", o.Matchup.Key(), err)
		}
		sorted = append(sorted, o)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return gameDay(sorted[i]) < gameDay(sorted[j]) })

	agg := stats.New(sport, stats.NewMemoryStore(nil))
	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && gameDay(sorted[end]) == gameDay(sorted[start]) {
			end++
		}
		day := sorted[start:end]
		if err := visit(day, agg); err != nil {
			return err
		}
		for _, o := range day {
			if _, err := agg.Update(o); err != nil {
				return err
			}
		}
		start = end
	}
	return nil
}

// gameDay orders games by season, then period, so a day's games share a key.
func gameDay(o models.Outcome) string {
	return fmt.Sprintf("%06d|%s", o.Season, o.Matchup.Period.Key())
}

// History fetches completed games for every period in from..to, several periods at a time.
func (p *Pipeline) History(ctx context.Context, sport models.Sport, from, to models.Period) ([]models.Outcome, error) {
	periods, err := PeriodRange(from, to)
	if err != nil {
		return nil, models.AtStage(models.StageFetchOutcomes, err)
	}

	results, err := p.fetchOutcomes(ctx, sport, periods)
	if err != nil {
		return nil, models.AtStage(models.StageFetchOutcomes, err)
	}

	var out []models.Outcome
	for _, r := range results {
		out = append(out, r...)
	}
	logger.Info("%s: fetched %d completed games over %d periods", sport, len(out), len(periods))
	return out, nil
}
