// Package forest implements the random-forest classifier: training with a seeded holdout
// split, JSON model artifacts and deterministic inference.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/Fletcher15478/nba-game-predictor/internal/features"
	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

// ErrModelRejected is returned by Train when holdout accuracy is below the configured floor.
var ErrModelRejected = errors.New("model rejected: holdout accuracy below minimum")

// Sample is one labeled training row: the pre-game vector and whether the home team won.
type Sample struct {
	Features []float64 `json:"features"`
	HomeWin  bool      `json:"home_win"`
}

// TrainConfig controls forest shape and the holdout evaluation.
type TrainConfig struct {
	Schema          features.Schema
	Trees           int
	MaxDepth        int
	MinLeaf         int
	FeatureFraction float64 // share of features tried per split; 0 means sqrt(n)
	HoldoutFraction float64
	Seed            int64
	MinAccuracy     float64
}

// DefaultTrainConfig mirrors the hyperparameters the oracle ships with.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Schema:          features.SchemaV1,
		Trees:           100,
		MaxDepth:        10,
		MinLeaf:         1,
		HoldoutFraction: 0.2,
		Seed:            42,
	}
}

func (c TrainConfig) validate() error {
	if c.Schema.Arity() == 0 {
		return errors.New("schema has no fields")
	}
	if c.Trees < 1 {
		return errors.New("trees must be at least 1")
	}
	if c.MaxDepth < 1 {
		return errors.New("max depth must be at least 1")
	}
	if c.MinLeaf < 1 {
		return errors.New("min leaf must be at least 1")
	}
	if c.FeatureFraction < 0 || c.FeatureFraction > 1 {
		return errors.New("feature fraction must be between 0 and 1")
	}
	if c.HoldoutFraction < 0 || c.HoldoutFraction >= 1 {
		return errors.New("holdout fraction must be in [0, 1)")
	}
	return nil
}

func (c TrainConfig) maxFeatures() int {
	n := c.Schema.Arity()
	k := int(math.Round(math.Sqrt(float64(n))))
	if c.FeatureFraction > 0 {
		k = int(math.Round(c.FeatureFraction * float64(n)))
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// Report describes a training run. Accuracy is measured on the holdout only.
type Report struct {
	Samples         int     `json:"samples"`
	TrainSamples    int     `json:"train_samples"`
	HoldoutSamples  int     `json:"holdout_samples"`
	HoldoutAccuracy float64 `json:"holdout_accuracy"`
	HomeWinRate     float64 `json:"home_win_rate"`
	Trees           int     `json:"trees"`
	MaxDepth        int     `json:"max_depth"`
	Seed            int64   `json:"seed"`
}

// Model is a trained forest plus the schema it expects.
type Model struct {
	Sport        models.Sport    `json:"sport"`
	ModelVersion string          `json:"version"`
	Schema       features.Schema `json:"schema"`
	Trees        []Tree          `json:"trees"`
	Report       Report          `json:"report"`
}

// Version returns the model version label.
func (m *Model) Version() string {
	return m.ModelVersion
}

// PredictProba returns the home-win probability for vec: the mean of the trees' leaf
// probabilities.
func (m *Model) PredictProba(vec models.FeatureVector) (float64, error) {
	if vec.SchemaVersion != m.Schema.Version || len(vec.Values) != m.Schema.Arity() {
		return 0, &models.SchemaMismatchError{
			WantVersion: m.Schema.Version,
			GotVersion:  vec.SchemaVersion,
			WantArity:   m.Schema.Arity(),
			GotArity:    len(vec.Values),
		}
	}
	if len(m.Trees) == 0 {
		return 0, errors.New("model has no trees")
	}
	var sum float64
	for _, t := range m.Trees {
		sum += t.predict(vec.Values)
	}
	p := sum / float64(len(m.Trees))
	return math.Min(1, math.Max(0, p)), nil
}

// Train fits a forest on samples. A seeded shuffle holds out cfg.HoldoutFraction of the rows
// for evaluation; the same samples and config always produce the same model.
func Train(samples []Sample, cfg TrainConfig) (*Model, Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, Report{}, fmt.Errorf("invalid train config: %w", err)
	}
	if len(samples) < 2 {
		return nil, Report{}, fmt.Errorf("need at least 2 samples, got %d", len(samples))
	}
	arity := cfg.Schema.Arity()
	for i, s := range samples {
		if len(s.Features) != arity {
			return nil, Report{}, &models.SchemaMismatchError{
				WantVersion: cfg.Schema.Version,
				GotVersion:  cfg.Schema.Version,
				WantArity:   arity,
				GotArity:    len(samples[i].Features),
			}
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	order := rng.Perm(len(samples))
	nHoldout := int(math.Round(cfg.HoldoutFraction * float64(len(samples))))
	if cfg.HoldoutFraction > 0 && nHoldout == 0 {
		nHoldout = 1
	}
	if nHoldout >= len(samples) {
		nHoldout = len(samples) - 1
	}
	holdout, train := order[:nHoldout], order[nHoldout:]

	x := make([][]float64, len(samples))
	y := make([]bool, len(samples))
	homeWins := 0
	for i, s := range samples {
		x[i] = s.Features
		y[i] = s.HomeWin
		if s.HomeWin {
			homeWins++
		}
	}

	params := treeParams{maxDepth: cfg.MaxDepth, minLeaf: cfg.MinLeaf, maxFeatures: cfg.maxFeatures()}
	m := &Model{Schema: cfg.Schema, Trees: make([]Tree, 0, cfg.Trees)}
	for t := 0; t < cfg.Trees; t++ {
		boot := make([]int, len(train))
		for i := range boot {
			boot[i] = train[rng.Intn(len(train))]
		}
		m.Trees = append(m.Trees, growTree(x, y, boot, params, rng))
	}

	report := Report{
		Samples:        len(samples),
		TrainSamples:   len(train),
		HoldoutSamples: len(holdout),
		HomeWinRate:    float64(homeWins) / float64(len(samples)),
		Trees:          cfg.Trees,
		MaxDepth:       cfg.MaxDepth,
		Seed:           cfg.Seed,
	}
	if len(holdout) > 0 {
		correct := 0
		for _, i := range holdout {
			p, err := m.PredictProba(models.FeatureVector{SchemaVersion: cfg.Schema.Version, Values: x[i]})
			if err != nil {
				return nil, report, err
			}
			if (p >= 0.5) == y[i] {
				correct++
			}
		}
		report.HoldoutAccuracy = float64(correct) / float64(len(holdout))
	}
	m.Report = report

	if len(holdout) > 0 && report.HoldoutAccuracy < cfg.MinAccuracy {
		return nil, report, fmt.Errorf("%w: %.3f < %.3f", ErrModelRejected, report.HoldoutAccuracy, cfg.MinAccuracy)
	}
	return m, report, nil
}
