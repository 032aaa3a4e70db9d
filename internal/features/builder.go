// Package features turns two teams' stat lines into the classifier's input vector.
package features

import "github.com/Fletcher15478/nba-game-predictor/internal/models"

// Schema names a feature vector layout. Classifiers are trained against exactly one schema.
type Schema struct {
	Version string   `json:"version"`
	Fields  []string `json:"fields"`
}

// Arity is the number of values a vector of this schema carries.
func (s Schema) Arity() int {
	return len(s.Fields)
}

// SchemaV1 is home then away box averages, followed by the two differential features.
var SchemaV1 = Schema{
	Version: "v1",
	Fields: []string{
		"home_pts", "home_ast", "home_trb", "home_fg_pct", "home_3p_pct", "home_win_pct", "home_gmsc",
		"away_pts", "away_ast", "away_trb", "away_fg_pct", "away_3p_pct", "away_win_pct", "away_gmsc",
		"pts_diff", "win_pct_diff",
	},
}

// Builder builds vectors for a fixed schema.
type Builder struct {
	schema Schema
}

// NewBuilder returns a Builder producing SchemaV1 vectors.
func NewBuilder() *Builder {
	return &Builder{schema: SchemaV1}
}

// Schema returns the layout Build produces.
func (b *Builder) Schema() Schema {
	return b.schema
}

// Build returns the vector for home playing away. It is pure: equal inputs give equal output.
func (b *Builder) Build(home, away models.TeamStatLine) models.FeatureVector {
	values := make([]float64, 0, b.schema.Arity())
	values = append(values, teamValues(home)...)
	values = append(values, teamValues(away)...)
	values = append(values,
		home.AvgPoints-away.AvgPoints,
		home.WinPct-away.WinPct,
	)
	return models.FeatureVector{SchemaVersion: b.schema.Version, Values: values}
}

func teamValues(t models.TeamStatLine) []float64 {
	return []float64{
		t.AvgPoints,
		t.AvgAssists,
		t.AvgRebounds,
		t.FieldGoalPct,
		t.ThreePointPct,
		t.WinPct,
		t.AvgGameScore,
	}
}
