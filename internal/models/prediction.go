package models

import (
	"errors"
	"fmt"
)

// TeamStatLine holds a team's rolling aggregates over the current season.
// Averages are meaningful only when GamesPlayed >= 1.
type TeamStatLine struct {
	Sport         Sport   `json:"sport"`
	TeamID        string  `json:"team_id"`
	Season        int     `json:"season"`
	GamesPlayed   int     `json:"games_played"`
	Wins          int     `json:"wins"`
	AvgPoints     float64 `json:"avg_points"`
	AvgAssists    float64 `json:"avg_assists"`
	AvgRebounds   float64 `json:"avg_rebounds"`
	FieldGoalPct  float64 `json:"field_goal_pct"`
	ThreePointPct float64 `json:"three_point_pct"`
	WinPct        float64 `json:"win_pct"`
	AvgGameScore  float64 `json:"avg_game_score"`
}

// FeatureVector is the classifier input for one matchup.
type FeatureVector struct {
	SchemaVersion string    `json:"schema_version"`
	Values        []float64 `json:"values"`
}

// Prediction is the engine's call for one matchup.
type Prediction struct {
	Matchup          Matchup `json:"matchup"`
	PredictedWinner  string  `json:"predicted_winner"`
	HomeWinProb      float64 `json:"home_win_prob"`
	AwayWinProb      float64 `json:"away_win_prob"`
	Confidence       float64 `json:"confidence"`
	ModelVersion     string  `json:"model_version"`
	SchemaVersion    string  `json:"schema_version"`
	// Injury factors scale each team's counting stats; 1 means a full-strength roster.
	HomeInjuryFactor float64 `json:"home_injury_factor"`
	AwayInjuryFactor float64 `json:"away_injury_factor"`
}

// Key is the matchup identity the prediction is stored and reconciled under.
func (p Prediction) Key() string {
	return p.Matchup.Key()
}

// Validate checks prediction field constraints.
func (p Prediction) Validate() error {
	if err := p.Matchup.Validate(); err != nil {
		return err
	}
	if p.PredictedWinner != p.Matchup.HomeTeam && p.PredictedWinner != p.Matchup.AwayTeam {
		return fmt.Errorf("predicted winner %s is not in %s", p.PredictedWinner, p.Key())
	}
	if p.HomeWinProb < 0 || p.HomeWinProb > 1 {
		return errors.New("home win probability must be between 0.0 and 1.0")
	}
	if p.Confidence < 0.5 || p.Confidence > 1 {
		return errors.New("confidence must be between 0.5 and 1.0")
	}
	if p.ModelVersion == "" {
		return errors.New("model version must not be empty")
	}
	if p.HomeInjuryFactor < 0 || p.HomeInjuryFactor > 1 || p.AwayInjuryFactor < 0 || p.AwayInjuryFactor > 1 {
		return errors.New("injury factors must be between 0.0 and 1.0")
	}
	return nil
}

// AccuracyEntry is one reconciled (prediction, outcome) pair.
type AccuracyEntry struct {
	Key        string  `json:"key"`
	Period     string  `json:"period"`
	HomeTeam   string  `json:"home_team"`
	AwayTeam   string  `json:"away_team"`
	Predicted  string  `json:"predicted"`
	Actual     string  `json:"actual"`
	Correct    bool    `json:"correct"`
	Confidence float64 `json:"confidence"`
	HomeScore  int     `json:"home_score"`
	AwayScore  int     `json:"away_score"`
}

// AccuracySummary is the dashboard-facing view of the accuracy record.
type AccuracySummary struct {
	Sport       Sport           `json:"sport"`
	Total       int             `json:"total_predictions"`
	Correct     int             `json:"correct_predictions"`
	AccuracyPct float64         `json:"accuracy"`
	Record      string          `json:"record"`
	History     []AccuracyEntry `json:"predictions_history"`
}
