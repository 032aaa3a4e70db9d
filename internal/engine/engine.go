// Package engine turns a period's matchups into winner predictions.
package engine

import (
	"fmt"
	"sort"

	"github.com/Fletcher15478/nba-game-predictor/internal/features"
	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

// TieBreakHome is the winner policy at exactly p = 0.5: the home team is picked.
const TieBreakHome = true

// MissingDataPolicy decides what happens to a matchup involving a team with no games
// played this season.
type MissingDataPolicy string

const (
	// LeagueDefaults predicts the matchup from league-average stats for that team.
	LeagueDefaults MissingDataPolicy = "league-defaults"
	// SkipMissing leaves the matchup without a prediction.
	SkipMissing MissingDataPolicy = "skip"
)

// DefaultMissingDataPolicy is used unless the engine is configured otherwise.
const DefaultMissingDataPolicy = LeagueDefaults

// ParseMissingDataPolicy converts a config value into a policy.
func ParseMissingDataPolicy(v string) (MissingDataPolicy, error) {
	switch p := MissingDataPolicy(v); p {
	case LeagueDefaults, SkipMissing:
		return p, nil
	case "":
		return DefaultMissingDataPolicy, nil
	default:
		return "", fmt.Errorf("unknown missing data policy %q", v)
	}
}

// injuryFactors maps the number of players ruled out to the share of a team's counting
// stats it is expected to produce. Five or more out is floored at the last step.
var injuryFactors = []float64{1.0, 0.95, 0.90, 0.85, 0.80, 0.75}

// InjuryFactor returns the stat multiplier for a team with out players ruled out.
func InjuryFactor(out int) float64 {
	if out <= 0 {
		return 1
	}
	if out >= len(injuryFactors) {
		return injuryFactors[len(injuryFactors)-1]
	}
	return injuryFactors[out]
}

// Classifier returns the home-win probability for a feature vector.
type Classifier interface {
	PredictProba(vec models.FeatureVector) (float64, error)
	Version() string
}

// Snapshotter supplies a team's current aggregates for a season, falling back to defaults.
type Snapshotter interface {
	SnapshotIn(teamID string, season int) models.TeamStatLine
}

// Engine predicts matchups for one sport.
type Engine struct {
	stats      Snapshotter
	builder    *features.Builder
	classifier Classifier
	missing    MissingDataPolicy
	injuredOut map[string]int
}

// New returns an Engine reading team stats from stats and scoring with classifier.
func New(stats Snapshotter, builder *features.Builder, classifier Classifier) *Engine {
	return &Engine{stats: stats, builder: builder, classifier: classifier, missing: DefaultMissingDataPolicy}
}

// WithMissingDataPolicy sets how teams without games are handled.
func (e *Engine) WithMissingDataPolicy(p MissingDataPolicy) *Engine {
	e.missing = p
	return e
}

// WithInjuries sets the number of players ruled out per team. Teams not listed play at
// full strength.
func (e *Engine) WithInjuries(out map[string]int) *Engine {
	e.injuredOut = out
	return e
}

// Predict returns one prediction per distinct matchup, ordered by matchup key. A classifier
// error aborts the whole batch. Under SkipMissing, matchups with a team that has not played
// this season are left out.
func (e *Engine) Predict(matchups []models.Matchup) ([]models.Prediction, error) {
	byKey := make(map[string]models.Prediction, len(matchups))
	for _, m := range matchups {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("invalid matchup %s: %w", m.Key(), err)
		}
		p, ok, err := e.predictOne(m)
		if err != nil {
			return nil, fmt.Errorf("predict %s: %w", m.Key(), err)
		}
		if !ok {
			continue
		}
		byKey[m.Key()] = p
	}

	out := make([]models.Prediction, 0, len(byKey))
	for _, p := range byKey {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (e *Engine) predictOne(m models.Matchup) (models.Prediction, bool, error) {
	season := seasonOf(m)
	home := e.stats.SnapshotIn(m.HomeTeam, season)
	away := e.stats.SnapshotIn(m.AwayTeam, season)
	if e.missing == SkipMissing && (home.GamesPlayed == 0 || away.GamesPlayed == 0) {
		return models.Prediction{}, false, nil
	}

	homeFactor := InjuryFactor(e.injuredOut[m.HomeTeam])
	awayFactor := InjuryFactor(e.injuredOut[m.AwayTeam])
	vec := e.builder.Build(adjustForInjuries(home, homeFactor), adjustForInjuries(away, awayFactor))
	p, err := e.classifier.PredictProba(vec)
	if err != nil {
		return models.Prediction{}, false, err
	}

	winner := m.AwayTeam
	if p > 0.5 || (p == 0.5 && TieBreakHome) {
		winner = m.HomeTeam
	}
	confidence := p
	if 1-p > confidence {
		confidence = 1 - p
	}

	pred := models.Prediction{
		Matchup:          m,
		PredictedWinner:  winner,
		HomeWinProb:      p,
		AwayWinProb:      1 - p,
		Confidence:       confidence,
		ModelVersion:     e.classifier.Version(),
		SchemaVersion:    vec.SchemaVersion,
		HomeInjuryFactor: homeFactor,
		AwayInjuryFactor: awayFactor,
	}
	if err := pred.Validate(); err != nil {
		return models.Prediction{}, false, err
	}
	return pred, true, nil
}

// adjustForInjuries scales the counting stats. Shooting and win percentages are rates and
// stay as they are.
func adjustForInjuries(line models.TeamStatLine, factor float64) models.TeamStatLine {
	if factor == 1 {
		return line
	}
	line.AvgPoints *= factor
	line.AvgAssists *= factor
	line.AvgRebounds *= factor
	line.AvgGameScore *= factor
	return line
}

func seasonOf(m models.Matchup) int {
	if m.Period.IsWeekly() {
		return m.Period.Season
	}
	return models.SeasonFor(m.Sport, m.Period.Time())
}
