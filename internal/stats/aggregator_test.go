package stats

import (
	"fmt"
	"math"
	"testing"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

const tolerance = 1e-9

func game(day int, home, away string, hs, as int, homeBox, awayBox models.BoxLine) models.Outcome {
	date := fmt.Sprintf("2025-11-%02d", day)
	m := models.Matchup{
		Sport:    models.SportNBA,
		Period:   models.Period{Date: date},
		HomeTeam: home,
		AwayTeam: away,
		Date:     date,
	}
	return models.NewOutcome(m, 2026, hs, as, homeBox, awayBox)
}

func newTestAggregator() (*Aggregator, *models.TeamsDocument) {
	doc := &models.TeamsDocument{Sport: models.SportNBA}
	return New(models.SportNBA, NewMemoryStore(doc)), doc
}

func TestAggregator_WinPctAndMeans(t *testing.T) {
	agg, _ := newTestAggregator()

	type line struct {
		hs, as int
		box    models.BoxLine
	}
	games := []line{
		{110, 100, models.BoxLine{Points: 110, Assists: 25, Rebounds: 40, FieldGoalPct: 0.48, ThreePointPct: 0.35}},
		{95, 101, models.BoxLine{Points: 95, Assists: 20, Rebounds: 50, FieldGoalPct: 0.41, ThreePointPct: 0.30}},
		{120, 118, models.BoxLine{Points: 120, Assists: 31, Rebounds: 44, FieldGoalPct: 0.52, ThreePointPct: 0.41}},
		{99, 104, models.BoxLine{Points: 99, Assists: 22, Rebounds: 39, FieldGoalPct: 0.44, ThreePointPct: 0.33}},
		{130, 90, models.BoxLine{Points: 130, Assists: 35, Rebounds: 48, FieldGoalPct: 0.57, ThreePointPct: 0.45}},
	}

	var wins int
	var sumPts, sumAst, sumReb, sumFG, sum3P, sumGmSc float64
	for i, g := range games {
		if _, err := agg.Update(game(i+1, "BOS", fmt.Sprintf("OPP%d", i), g.hs, g.as, g.box, models.BoxLine{})); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
		if g.hs > g.as {
			wins++
		}
		sumPts += g.box.Points
		sumAst += g.box.Assists
		sumReb += g.box.Rebounds
		sumFG += g.box.FieldGoalPct
		sum3P += g.box.ThreePointPct
		sumGmSc += g.box.GameScore()

		n := float64(i + 1)
		got := agg.Snapshot("BOS")
		if got.GamesPlayed != i+1 {
			t.Fatalf("GamesPlayed = %d, want %d", got.GamesPlayed, i+1)
		}
		checks := []struct {
			name      string
			got, want float64
		}{
			{"win_pct", got.WinPct, float64(wins) / n},
			{"avg_points", got.AvgPoints, sumPts / n},
			{"avg_assists", got.AvgAssists, sumAst / n},
			{"avg_rebounds", got.AvgRebounds, sumReb / n},
			{"fg_pct", got.FieldGoalPct, sumFG / n},
			{"3p_pct", got.ThreePointPct, sum3P / n},
			{"game_score", got.AvgGameScore, sumGmSc / n},
		}
		for _, c := range checks {
			if math.Abs(c.got-c.want) > tolerance {
				t.Errorf("after %d games %s = %v, want %v", i+1, c.name, c.got, c.want)
			}
		}
	}
}

func TestAggregator_UpdateIsIdempotentPerMatchup(t *testing.T) {
	agg, doc := newTestAggregator()
	o := game(1, "BOS", "NYK", 110, 100, models.BoxLine{Points: 110}, models.BoxLine{Points: 100})

	applied, err := agg.Update(o)
	if err != nil || !applied {
		t.Fatalf("first Update = %v, %v; want true, nil", applied, err)
	}
	applied, err = agg.Update(o)
	if err != nil || applied {
		t.Fatalf("second Update = %v, %v; want false, nil", applied, err)
	}
	if got := doc.Teams["BOS"].GamesPlayed; got != 1 {
		t.Errorf("BOS GamesPlayed = %d, want 1", got)
	}
	if got := doc.Teams["NYK"].Wins; got != 0 {
		t.Errorf("NYK Wins = %d, want 0", got)
	}
}

func TestAggregator_SnapshotDefaults(t *testing.T) {
	agg, _ := newTestAggregator()
	got := agg.Snapshot("EXP")
	want := LeagueDefaults(models.SportNBA)
	if got.TeamID != "EXP" {
		t.Errorf("TeamID = %q, want EXP", got.TeamID)
	}
	if got.GamesPlayed != 0 || got.WinPct != want.WinPct || got.AvgPoints != want.AvgPoints {
		t.Errorf("Snapshot(unknown) = %+v, want league defaults %+v", got, want)
	}

	nfl := LeagueDefaults(models.SportNFL)
	if nfl.AvgPoints != 22 || nfl.WinPct != DefaultWinPct {
		t.Errorf("NFL defaults = %+v", nfl)
	}
}

func TestAggregator_SeasonBoundaryResets(t *testing.T) {
	agg, _ := newTestAggregator()
	old := game(1, "BOS", "NYK", 110, 100, models.BoxLine{Points: 110}, models.BoxLine{Points: 100})
	old.Season = 2025
	if _, err := agg.Update(old); err != nil {
		t.Fatal(err)
	}

	if got := agg.SnapshotIn("BOS", 2026); got.GamesPlayed != 0 || got.WinPct != DefaultWinPct {
		t.Errorf("SnapshotIn(new season) = %+v, want defaults", got)
	}

	next := game(2, "BOS", "LAL", 90, 100, models.BoxLine{Points: 90}, models.BoxLine{Points: 100})
	if _, err := agg.Update(next); err != nil {
		t.Fatal(err)
	}
	got := agg.Snapshot("BOS")
	if got.Season != 2026 || got.GamesPlayed != 1 || got.Wins != 0 || got.AvgPoints != 90 {
		t.Errorf("after season rollover = %+v", got)
	}

	late := game(3, "BOS", "MIA", 100, 80, models.BoxLine{Points: 100}, models.BoxLine{Points: 80})
	late.Season = 2025
	if _, err := agg.Update(late); err != nil {
		t.Fatal(err)
	}
	if got := agg.Snapshot("BOS"); got.GamesPlayed != 1 {
		t.Errorf("late prior-season outcome folded: %+v", got)
	}
}

func TestAggregator_RejectsOtherSport(t *testing.T) {
	agg, _ := newTestAggregator()
	o := game(1, "BOS", "NYK", 1, 0, models.BoxLine{}, models.BoxLine{})
	o.Matchup.Sport = models.SportNFL
	if _, err := agg.Update(o); err == nil {
		t.Error("expected error for outcome from another sport")
	}
}

func TestAggregator_Recompute(t *testing.T) {
	agg, doc := newTestAggregator()
	outcomes := []models.Outcome{
		game(3, "BOS", "NYK", 100, 90, models.BoxLine{Points: 100}, models.BoxLine{Points: 90}),
		game(1, "NYK", "BOS", 100, 90, models.BoxLine{Points: 100}, models.BoxLine{Points: 90}),
	}
	if _, err := agg.Update(outcomes[0]); err != nil {
		t.Fatal(err)
	}
	if err := agg.Recompute(outcomes); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	bos := doc.Teams["BOS"]
	if bos.GamesPlayed != 2 || bos.Wins != 1 || bos.AvgPoints != 95 {
		t.Errorf("BOS after recompute = %+v", bos)
	}
	if len(doc.Applied) != 2 {
		t.Errorf("applied keys = %d, want 2", len(doc.Applied))
	}
}
