// Package models defines the core domain entities: matchups, outcomes, team stat lines,
// predictions and the accuracy record.
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sport identifies a league the oracle predicts.
type Sport string

const (
	SportNBA Sport = "nba"
	SportNFL Sport = "nfl"
)

// DateLayout is the layout of Period.Date and Matchup.Date.
const DateLayout = "2006-01-02"

// RegularSeasonWeeks is the number of NFL regular-season weeks.
const RegularSeasonWeeks = 18

// Valid reports whether s is a supported sport.
func (s Sport) Valid() bool {
	return s == SportNBA || s == SportNFL
}

// Weekly reports whether the sport is scheduled by (season, week) instead of by date.
func (s Sport) Weekly() bool {
	return s == SportNFL
}

// ParseSport converts a config or CLI value into a Sport.
func ParseSport(v string) (Sport, error) {
	s := Sport(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unsupported sport %q", v)
	}
	return s, nil
}

// SeasonFor returns the season label a game on day t belongs to.
// NBA seasons are labelled by the year they end in, NFL seasons by the year they start in.
func SeasonFor(sport Sport, t time.Time) int {
	switch sport {
	case SportNBA:
		if t.Month() >= time.August {
			return t.Year() + 1
		}
		return t.Year()
	default:
		if t.Month() >= time.March {
			return t.Year()
		}
		return t.Year() - 1
	}
}

// Period is the unit a schedule is fetched and predictions are stored by:
// a calendar date for daily sports, a (season, week) pair for weekly ones.
type Period struct {
	Date   string `json:"date,omitempty"`
	Season int    `json:"season,omitempty"`
	Week   int    `json:"week,omitempty"`
}

// DayPeriod returns the daily period containing t.
func DayPeriod(t time.Time) Period {
	return Period{Date: t.Format(DateLayout)}
}

// WeekPeriod returns the weekly period for a season and week.
func WeekPeriod(season, week int) Period {
	return Period{Season: season, Week: week}
}

// ParseDay parses a YYYY-MM-DD date into a daily period.
func ParseDay(s string) (Period, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DayPeriod(t), nil
}

// IsWeekly reports whether the period is a (season, week) period.
func (p Period) IsWeekly() bool {
	return p.Week > 0
}

// Key renders the period as the predictions-document key. Keys of the same kind sort
// chronologically as strings.
func (p Period) Key() string {
	if p.IsWeekly() {
		return fmt.Sprintf("%d-wk%02d", p.Season, p.Week)
	}
	return p.Date
}

// Time returns the period's date. Weekly periods have no date and return the zero time.
func (p Period) Time() time.Time {
	t, _ := time.Parse(DateLayout, p.Date)
	return t
}

// Prev returns the period immediately before p.
func (p Period) Prev() Period {
	if p.IsWeekly() {
		if p.Week > 1 {
			return WeekPeriod(p.Season, p.Week-1)
		}
		return WeekPeriod(p.Season-1, RegularSeasonWeeks)
	}
	return DayPeriod(p.Time().AddDate(0, 0, -1))
}

// Validate checks that exactly one of the two period forms is set.
func (p Period) Validate() error {
	if p.IsWeekly() {
		if p.Date != "" {
			return errors.New("period must not have both a date and a week")
		}
		if p.Season < 1900 {
			return errors.New("weekly period requires a season")
		}
		if p.Week > RegularSeasonWeeks+5 {
			return fmt.Errorf("week %d out of range", p.Week)
		}
		return nil
	}
	if p.Date == "" {
		return errors.New("period requires a date or a season and week")
	}
	if _, err := time.Parse(DateLayout, p.Date); err != nil {
		return fmt.Errorf("invalid period date %q", p.Date)
	}
	return nil
}

// ParsePeriodKey is the inverse of Period.Key.
func ParsePeriodKey(key string) (Period, error) {
	if i := strings.Index(key, "-wk"); i > 0 {
		season, err := strconv.Atoi(key[:i])
		if err != nil {
			return Period{}, fmt.Errorf("invalid period key %q", key)
		}
		week, err := strconv.Atoi(key[i+3:])
		if err != nil {
			return Period{}, fmt.Errorf("invalid period key %q", key)
		}
		return WeekPeriod(season, week), nil
	}
	return ParseDay(key)
}

// Matchup is a scheduled or played game between two teams.
type Matchup struct {
	Sport    Sport  `json:"sport"`
	Period   Period `json:"period"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
	Date     string `json:"date"`
}

// Key identifies the matchup: (date, home, away) or (season, week, home, away).
func (m Matchup) Key() string {
	return m.Period.Key() + "/" + m.AwayTeam + "@" + m.HomeTeam
}

// Validate checks matchup field constraints.
func (m Matchup) Validate() error {
	if !m.Sport.Valid() {
		return fmt.Errorf("unsupported sport %q", m.Sport)
	}
	if err := m.Period.Validate(); err != nil {
		return err
	}
	if m.HomeTeam == "" || m.AwayTeam == "" {
		return errors.New("matchup requires home and away teams")
	}
	if m.HomeTeam == m.AwayTeam {
		return fmt.Errorf("team %s cannot play itself", m.HomeTeam)
	}
	return nil
}

// BoxLine is one team's aggregate box score for a single game.
// Percentages are fractions in [0,1].
type BoxLine struct {
	Points        float64 `json:"points"`
	Assists       float64 `json:"assists"`
	Rebounds      float64 `json:"rebounds"`
	FieldGoalPct  float64 `json:"field_goal_pct"`
	ThreePointPct float64 `json:"three_point_pct"`
}

// GameScore is the team composite used as the game-score feature:
// points plus weighted assists and rebounds.
func (b BoxLine) GameScore() float64 {
	return b.Points + 0.7*b.Assists + 0.5*b.Rebounds
}

// Outcome is a completed game as reported by the score source.
type Outcome struct {
	Matchup   Matchup `json:"matchup"`
	Season    int     `json:"season"`
	HomeScore int     `json:"home_score"`
	AwayScore int     `json:"away_score"`
	// Winner is empty when the game ended tied.
	Winner string  `json:"winner"`
	Home   BoxLine `json:"home"`
	Away   BoxLine `json:"away"`
}

// NewOutcome builds an outcome and derives the winner from the final score.
func NewOutcome(m Matchup, season, homeScore, awayScore int, home, away BoxLine) Outcome {
	o := Outcome{
		Matchup:   m,
		Season:    season,
		HomeScore: homeScore,
		AwayScore: awayScore,
		Home:      home,
		Away:      away,
	}
	switch {
	case homeScore > awayScore:
		o.Winner = m.HomeTeam
	case awayScore > homeScore:
		o.Winner = m.AwayTeam
	}
	if o.Home.Points == 0 {
		o.Home.Points = float64(homeScore)
	}
	if o.Away.Points == 0 {
		o.Away.Points = float64(awayScore)
	}
	return o
}

// Tied reports whether the game ended level.
func (o Outcome) Tied() bool {
	return o.Winner == ""
}

// Validate checks outcome field constraints.
func (o Outcome) Validate() error {
	if err := o.Matchup.Validate(); err != nil {
		return err
	}
	if o.HomeScore < 0 || o.AwayScore < 0 {
		return errors.New("scores must not be negative")
	}
	if o.Winner != "" && o.Winner != o.Matchup.HomeTeam && o.Winner != o.Matchup.AwayTeam {
		return fmt.Errorf("winner %s did not play in %s", o.Winner, o.Matchup.Key())
	}
	return nil
}
