// Package stats folds completed-game box scores into per-team rolling season aggregates.
package stats

import (
	"fmt"
	"sort"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

// Store is the per-team aggregate store the Aggregator reads and writes.
type Store interface {
	Team(teamID string) (models.TeamStatLine, bool)
	PutTeam(line models.TeamStatLine)
	Applied(key string) bool
	MarkApplied(key string)
	Reset()
}

// MemoryStore is a Store over a teams document.
type MemoryStore struct {
	doc *models.TeamsDocument
}

// NewMemoryStore wraps doc. A nil doc starts empty.
func NewMemoryStore(doc *models.TeamsDocument) *MemoryStore {
	if doc == nil {
		doc = &models.TeamsDocument{}
	}
	if doc.Teams == nil {
		doc.Teams = make(map[string]models.TeamStatLine)
	}
	if doc.Applied == nil {
		doc.Applied = make(map[string]bool)
	}
	return &MemoryStore{doc: doc}
}

func (s *MemoryStore) Team(teamID string) (models.TeamStatLine, bool) {
	line, ok := s.doc.Teams[teamID]
	return line, ok
}

func (s *MemoryStore) PutTeam(line models.TeamStatLine) {
	s.doc.Teams[line.TeamID] = line
}

func (s *MemoryStore) Applied(key string) bool {
	return s.doc.Applied[key]
}

func (s *MemoryStore) MarkApplied(key string) {
	s.doc.Applied[key] = true
}

func (s *MemoryStore) Reset() {
	s.doc.Teams = make(map[string]models.TeamStatLine)
	s.doc.Applied = make(map[string]bool)
}

// Aggregator maintains TeamStatLines for one sport.
type Aggregator struct {
	sport models.Sport
	store Store
}

// New returns an Aggregator writing to store.
func New(sport models.Sport, store Store) *Aggregator {
	return &Aggregator{sport: sport, store: store}
}

// Update folds one completed game into both teams' aggregates. It returns false without
// touching the store if the game's matchup key was already folded in.
//
// A team's aggregates reset when an outcome from a later season arrives. Outcomes from a
// season older than the team's current one are recorded as applied but not folded.
func (a *Aggregator) Update(o models.Outcome) (bool, error) {
	if err := o.Validate(); err != nil {
		return false, fmt.Errorf("invalid outcome: %w", err)
	}
	if o.Matchup.Sport != a.sport {
		return false, fmt.Errorf("outcome for %s fed to %s aggregator", o.Matchup.Sport, a.sport)
	}
	key := o.Matchup.Key()
	if a.store.Applied(key) {
		return false, nil
	}
	a.fold(o.Matchup.HomeTeam, o.Season, o.Home, o.Winner == o.Matchup.HomeTeam)
	a.fold(o.Matchup.AwayTeam, o.Season, o.Away, o.Winner == o.Matchup.AwayTeam)
	a.store.MarkApplied(key)
	return true, nil
}

func (a *Aggregator) fold(teamID string, season int, box models.BoxLine, won bool) {
	line, ok := a.store.Team(teamID)
	if ok && season < line.Season {
		return
	}
	if !ok || season > line.Season {
		line = models.TeamStatLine{Sport: a.sport, TeamID: teamID, Season: season}
	}

	line.GamesPlayed++
	n := line.GamesPlayed
	if won {
		line.Wins++
	}
	line.AvgPoints = updateMean(line.AvgPoints, box.Points, n)
	line.AvgAssists = updateMean(line.AvgAssists, box.Assists, n)
	line.AvgRebounds = updateMean(line.AvgRebounds, box.Rebounds, n)
	line.FieldGoalPct = updateMean(line.FieldGoalPct, box.FieldGoalPct, n)
	line.ThreePointPct = updateMean(line.ThreePointPct, box.ThreePointPct, n)
	line.AvgGameScore = updateMean(line.AvgGameScore, box.GameScore(), n)
	line.WinPct = float64(line.Wins) / float64(n)

	a.store.PutTeam(line)
}

// Snapshot returns the team's current aggregates, or league defaults if it has not played.
func (a *Aggregator) Snapshot(teamID string) models.TeamStatLine {
	return a.SnapshotIn(teamID, 0)
}

// SnapshotIn is Snapshot restricted to a season: aggregates from an earlier season count as
// no games played. A zero season accepts whatever season is stored.
func (a *Aggregator) SnapshotIn(teamID string, season int) models.TeamStatLine {
	line, ok := a.store.Team(teamID)
	if !ok || line.GamesPlayed < 1 || (season != 0 && line.Season < season) {
		d := LeagueDefaults(a.sport)
		d.TeamID = teamID
		d.Season = season
		return d
	}
	return line
}

// Recompute rebuilds the whole store from outcomes, replaying them in schedule order.
func (a *Aggregator) Recompute(outcomes []models.Outcome) error {
	sorted := make([]models.Outcome, len(outcomes))
	copy(sorted, outcomes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return outcomeOrder(sorted[i]) < outcomeOrder(sorted[j])
	})

	a.store.Reset()
	for _, o := range sorted {
		if _, err := a.Update(o); err != nil {
			return fmt.Errorf("recompute %s: %w", o.Matchup.Key(), err)
		}
	}
	return nil
}

func outcomeOrder(o models.Outcome) string {
	return fmt.Sprintf("%06d|%s|%s", o.Season, o.Matchup.Date, o.Matchup.Key())
}
