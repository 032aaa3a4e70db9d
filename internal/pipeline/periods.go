package pipeline

import (
	"fmt"
	"time"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

// maxRangePeriods caps a history backfill request.
const maxRangePeriods = 400

// PeriodFor returns the period containing day. Weekly sports count weeks from seasonStart,
// the first day of week 1, clamped to the regular season.
func PeriodFor(sport models.Sport, day, seasonStart time.Time) models.Period {
	if !sport.Weekly() {
		return models.DayPeriod(day)
	}
	season := models.SeasonFor(sport, day)
	week := 1
	if !seasonStart.IsZero() && !day.Before(seasonStart) {
		week = int(day.Sub(seasonStart).Hours()/24)/7 + 1
	}
	if week > models.RegularSeasonWeeks {
		week = models.RegularSeasonWeeks
	}
	return models.WeekPeriod(season, week)
}

// PeriodRange lists the periods from..to inclusive. Both ends must be the same kind.
func PeriodRange(from, to models.Period) ([]models.Period, error) {
	if err := from.Validate(); err != nil {
		return nil, err
	}
	if err := to.Validate(); err != nil {
		return nil, err
	}
	if from.IsWeekly() != to.IsWeekly() {
		return nil, fmt.Errorf("cannot mix daily and weekly periods: %s..%s", from.Key(), to.Key())
	}

	var out []models.Period
	if from.IsWeekly() {
		for s, w := from.Season, from.Week; s < to.Season || (s == to.Season && w <= to.Week); {
			out = append(out, models.WeekPeriod(s, w))
			if w++; w > models.RegularSeasonWeeks {
				s, w = s+1, 1
			}
			if len(out) > maxRangePeriods {
				return nil, fmt.Errorf("range %s..%s exceeds %d periods", from.Key(), to.Key(), maxRangePeriods)
			}
		}
	} else {
		end := to.Time()
		for d := from.Time(); !d.After(end); d = d.AddDate(0, 0, 1) {
			out = append(out, models.DayPeriod(d))
			if len(out) > maxRangePeriods {
				return nil, fmt.Errorf("range %s..%s exceeds %d periods", from.Key(), to.Key(), maxRangePeriods)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty range %s..%s", from.Key(), to.Key())
	}
	return out, nil
}
