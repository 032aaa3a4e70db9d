package espn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

// scoreboard is the subset of the scoreboard payload the oracle reads.
type scoreboard struct {
	Events []event `json:"events"`
}

type event struct {
	ID           string        `json:"id"`
	Date         string        `json:"date"`
	Competitions []competition `json:"competitions"`
	Status       status        `json:"status"`
}

type status struct {
	Type struct {
		Completed bool   `json:"completed"`
		State     string `json:"state"`
	} `json:"type"`
}

type competition struct {
	Date        string       `json:"date"`
	Competitors []competitor `json:"competitors"`
}

type competitor struct {
	HomeAway string `json:"homeAway"`
	Score    string `json:"score"`
	Team     struct {
		Abbreviation string `json:"abbreviation"`
	} `json:"team"`
	Statistics []statistic `json:"statistics"`
}

type statistic struct {
	Name         string `json:"name"`
	DisplayValue string `json:"displayValue"`
}

type game struct {
	matchup   models.Matchup
	homeScore int
	awayScore int
	homeBox   models.BoxLine
	awayBox   models.BoxLine
}

// game extracts the head-to-head game, or false when the event has no usable competition.
func (e event) game(sport models.Sport, period models.Period) (game, bool) {
	if len(e.Competitions) == 0 {
		return game{}, false
	}
	comp := e.Competitions[0]
	if len(comp.Competitors) != 2 {
		return game{}, false
	}
	var home, away *competitor
	for i := range comp.Competitors {
		switch comp.Competitors[i].HomeAway {
		case "home":
			home = &comp.Competitors[i]
		case "away":
			away = &comp.Competitors[i]
		}
	}
	if home == nil || away == nil || home.Team.Abbreviation == "" || away.Team.Abbreviation == "" {
		return game{}, false
	}

	date := comp.Date
	if date == "" {
		date = e.Date
	}
	if len(date) >= 10 {
		date = date[:10]
	}
	if !period.IsWeekly() {
		date = period.Date
	}

	m := models.Matchup{
		Sport:    sport,
		Period:   period,
		HomeTeam: home.Team.Abbreviation,
		AwayTeam: away.Team.Abbreviation,
		Date:     date,
	}
	if m.Validate() != nil {
		return game{}, false
	}

	homeScore, homeErr := parseScore(home.Score)
	awayScore, awayErr := parseScore(away.Score)
	if e.Status.Type.Completed && (homeErr != nil || awayErr != nil) {
		return game{}, false
	}

	return game{
		matchup:   m,
		homeScore: homeScore,
		awayScore: awayScore,
		homeBox:   home.box(),
		awayBox:   away.box(),
	}, true
}

// box reads the competitor's team statistics. Percentages reported on a 0-100 scale are
// converted to fractions.
func (c competitor) box() models.BoxLine {
	var b models.BoxLine
	for _, s := range c.Statistics {
		v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s.DisplayValue), "%"), 64)
		if err != nil {
			continue
		}
		switch s.Name {
		case "points":
			b.Points = v
		case "assists":
			b.Assists = v
		case "rebounds":
			b.Rebounds = v
		case "fieldGoalPct":
			b.FieldGoalPct = fraction(v)
		case "threePointFieldGoalPct", "threePointPct":
			b.ThreePointPct = fraction(v)
		}
	}
	return b
}

func fraction(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}

// parseScore reads a competitor score. Scheduled games carry an empty or zero score, so
// callers only treat a failure as fatal for completed games.
func parseScore(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid score %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative score %d", n)
	}
	return n, nil
}
