package stats

import "github.com/Fletcher15478/nba-game-predictor/internal/models"

// League-average box lines used for teams with no games played this season.
var (
	nbaDefaultBox = models.BoxLine{
		Points:        114.5,
		Assists:       26.5,
		Rebounds:      43.5,
		FieldGoalPct:  0.470,
		ThreePointPct: 0.360,
	}
	nflDefaultBox = models.BoxLine{
		Points: 22.0,
	}
)

// DefaultWinPct is the win percentage assumed for a team without games.
const DefaultWinPct = 0.5

// LeagueDefaults returns the fallback TeamStatLine for sport with zero games played.
func LeagueDefaults(sport models.Sport) models.TeamStatLine {
	box := nbaDefaultBox
	if sport == models.SportNFL {
		box = nflDefaultBox
	}
	return models.TeamStatLine{
		Sport:         sport,
		AvgPoints:     box.Points,
		AvgAssists:    box.Assists,
		AvgRebounds:   box.Rebounds,
		FieldGoalPct:  box.FieldGoalPct,
		ThreePointPct: box.ThreePointPct,
		WinPct:        DefaultWinPct,
		AvgGameScore:  box.GameScore(),
	}
}
