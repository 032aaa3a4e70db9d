package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Fletcher15478/nba-game-predictor/internal/features"
	"github.com/Fletcher15478/nba-game-predictor/internal/forest"
	"github.com/Fletcher15478/nba-game-predictor/internal/ledger"
	"github.com/Fletcher15478/nba-game-predictor/internal/metrics"
	"github.com/Fletcher15478/nba-game-predictor/internal/models"
	"github.com/Fletcher15478/nba-game-predictor/internal/runlock"
	"github.com/Fletcher15478/nba-game-predictor/internal/storage"
)

const (
	day1 = "2025-12-01"
	day2 = "2025-12-02"
)

type fakeFeed struct {
	mu           sync.Mutex
	schedule     map[string][]models.Matchup
	outcomes     map[string][]models.Outcome
	failOutcomes map[string]bool
	outcomeCalls map[string]int
	// Outcomes for a period in block waits on its channel after reporting the period on entered.
	block   map[string]chan struct{}
	entered chan string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		schedule:     make(map[string][]models.Matchup),
		outcomes:     make(map[string][]models.Outcome),
		failOutcomes: make(map[string]bool),
		outcomeCalls: make(map[string]int),
		block:        make(map[string]chan struct{}),
		entered:      make(chan string, 1),
	}
}

func (f *fakeFeed) Schedule(ctx context.Context, sport models.Sport, period models.Period) ([]models.Matchup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedule[period.Key()], nil
}

func (f *fakeFeed) Outcomes(ctx context.Context, sport models.Sport, period models.Period) ([]models.Outcome, error) {
	key := period.Key()
	f.mu.Lock()
	f.outcomeCalls[key]++
	gate, fail, out := f.block[key], f.failOutcomes[key], f.outcomes[key]
	f.mu.Unlock()

	if gate != nil {
		f.entered <- key
		<-gate
	}
	if fail {
		return nil, &models.DataUnavailableError{Source: "fake", Err: errors.New("timeout")}
	}
	return out, nil
}

func (f *fakeFeed) blockOutcomes(date string) chan struct{} {
	gate := make(chan struct{})
	f.mu.Lock()
	f.block[date] = gate
	f.mu.Unlock()
	return gate
}

type fakeInjuries struct {
	out map[string]int
	err error
}

func (f fakeInjuries) Injuries(ctx context.Context, sport models.Sport) (map[string]int, error) {
	return f.out, f.err
}

func (f *fakeFeed) addGame(date, home, away string) models.Matchup {
	m := models.Matchup{Sport: models.SportNBA, Period: models.Period{Date: date}, HomeTeam: home, AwayTeam: away, Date: date}
	f.mu.Lock()
	f.schedule[date] = append(f.schedule[date], m)
	f.mu.Unlock()
	return m
}

func (f *fakeFeed) addResult(m models.Matchup, homeScore, awayScore int) {
	f.mu.Lock()
	f.outcomes[m.Period.Key()] = append(f.outcomes[m.Period.Key()],
		models.NewOutcome(m, 2026, homeScore, awayScore, models.BoxLine{}, models.BoxLine{}))
	f.mu.Unlock()
}

// failingStore fails every commit.
type failingStore struct {
	storage.Store
}

func (s failingStore) Commit(ctx context.Context, sport models.Sport, docs *models.Documents) error {
	return &models.PersistenceWriteError{Document: models.DocPredictions, Err: errors.New("disk full")}
}

// winPctModel favours the home team only when it has the better win percentage.
func winPctModel() *forest.Model {
	return &forest.Model{
		Sport:        models.SportNBA,
		ModelVersion: "v1",
		Schema:       features.SchemaV1,
		Trees: []forest.Tree{{Nodes: []forest.Node{
			{Feature: 15, Threshold: 0, Left: 1, Right: 2, Prob: 0.5},
			{Leaf: true, Prob: 0.35},
			{Leaf: true, Prob: 0.8},
		}}},
	}
}

type testEnv struct {
	p      *Pipeline
	feed   *fakeFeed
	store  storage.Store
	reg    *forest.Registry
	locker runlock.Locker
	rec    *metrics.Recorder
}

func newTestEnv(t *testing.T, version string) *testEnv {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	reg := forest.NewRegistry(t.TempDir())
	if err := reg.Save(winPctModel()); err != nil {
		t.Fatal(err)
	}
	locker, err := runlock.NewFile(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	feed := newFakeFeed()
	rec := metrics.New()
	train := forest.DefaultTrainConfig()
	train.Trees = 10
	train.MinAccuracy = 0

	p := New(feed, feed, store, reg, locker, rec, Options{
		ModelVersions:    map[models.Sport]string{models.SportNBA: version},
		Train:            train,
		FetchConcurrency: 2,
	})
	return &testEnv{p: p, feed: feed, store: store, reg: reg, locker: locker, rec: rec}
}

func (e *testEnv) load(t *testing.T) *models.Documents {
	t.Helper()
	docs, err := e.store.Load(context.Background(), models.SportNBA)
	if err != nil {
		t.Fatal(err)
	}
	return docs
}

func dayPeriod(date string) models.Period {
	return models.Period{Date: date}
}

func TestGeneratePredictions(t *testing.T) {
	env := newTestEnv(t, "v1")
	env.feed.addGame(day1, "BOS", "NYK")
	env.feed.addGame(day1, "LAL", "GSW")
	ctx := context.Background()

	preds, err := env.p.GeneratePredictions(ctx, models.SportNBA, dayPeriod(day1))
	if err != nil {
		t.Fatalf("GeneratePredictions: %v", err)
	}
	if len(preds) != 2 {
		t.Fatalf("got %d predictions, want 2", len(preds))
	}
	for _, p := range preds {
		// No games played: equal defaults, so the away-leaning leaf applies.
		if p.PredictedWinner != p.Matchup.AwayTeam || math.Abs(p.Confidence-0.65) > 1e-9 || p.ModelVersion != "v1" {
			t.Errorf("prediction = %+v", p)
		}
	}

	first, _ := json.Marshal(env.load(t).Predictions)
	if _, err := env.p.GeneratePredictions(ctx, models.SportNBA, dayPeriod(day1)); err != nil {
		t.Fatal(err)
	}
	second, _ := json.Marshal(env.load(t).Predictions)
	if string(first) != string(second) {
		t.Errorf("rerun changed stored predictions:\n%s\n%s", first, second)
	}

	if n, err := testutil.GatherAndCount(env.rec.Registry(), "gameoracle_predictions_issued_total"); err != nil || n != 1 {
		t.Errorf("issued series = %d, %v", n, err)
	}
}

func TestGeneratePredictions_NoGames(t *testing.T) {
	env := newTestEnv(t, "v1")
	preds, err := env.p.GeneratePredictions(context.Background(), models.SportNBA, dayPeriod(day1))
	if err != nil || len(preds) != 0 {
		t.Fatalf("GeneratePredictions = %v, %v", preds, err)
	}
	if len(env.load(t).Predictions.Periods) != 0 {
		t.Error("empty slate was stored")
	}
}

func TestReconcile(t *testing.T) {
	env := newTestEnv(t, "v1")
	ctx := context.Background()
	bos := env.feed.addGame(day1, "BOS", "NYK")
	lal := env.feed.addGame(day1, "LAL", "GSW")
	if _, err := env.p.GeneratePredictions(ctx, models.SportNBA, dayPeriod(day1)); err != nil {
		t.Fatal(err)
	}

	env.feed.addResult(bos, 110, 100) // picked NYK: miss
	env.feed.addResult(lal, 99, 104)  // picked GSW: hit

	n, err := env.p.Reconcile(ctx, models.SportNBA, dayPeriod(day1))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if n != 2 {
		t.Errorf("Reconcile = %d, want 2", n)
	}

	summary, err := env.p.Accuracy(ctx, models.SportNBA)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total != 2 || summary.Correct != 1 || summary.Record != "1-1" || summary.AccuracyPct != 50 {
		t.Errorf("summary = %+v", summary)
	}
	docs := env.load(t)
	if docs.Teams.Teams["BOS"].Wins != 1 || docs.Teams.Teams["NYK"].GamesPlayed != 1 {
		t.Errorf("teams not folded: %+v", docs.Teams.Teams)
	}

	// Running again changes nothing.
	n, err = env.p.Reconcile(ctx, models.SportNBA, dayPeriod(day1))
	if err != nil || n != 0 {
		t.Errorf("second Reconcile = %d, %v; want 0, nil", n, err)
	}
	again := env.load(t)
	if again.Stats.TotalPredictions != 2 || again.Teams.Teams["BOS"].GamesPlayed != 1 {
		t.Errorf("rerun double counted: stats=%d bos=%+v", again.Stats.TotalPredictions, again.Teams.Teams["BOS"])
	}
}

func TestReconcile_RetriesPendingPredictions(t *testing.T) {
	env := newTestEnv(t, "v1")
	ctx := context.Background()
	bos := env.feed.addGame(day1, "BOS", "NYK")
	lal := env.feed.addGame(day1, "LAL", "GSW")
	if _, err := env.p.GeneratePredictions(ctx, models.SportNBA, dayPeriod(day1)); err != nil {
		t.Fatal(err)
	}

	env.feed.addResult(bos, 100, 90)
	if n, err := env.p.Reconcile(ctx, models.SportNBA, dayPeriod(day1)); err != nil || n != 1 {
		t.Fatalf("Reconcile(day1) = %d, %v; want 1", n, err)
	}

	// The late game's result shows up by the next day's run.
	env.feed.addResult(lal, 120, 118)
	n, err := env.p.Reconcile(ctx, models.SportNBA, dayPeriod(day2))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Reconcile(day2) = %d, want 1 pending prediction from %s", n, day1)
	}
	if env.feed.outcomeCalls[day1] != 2 || env.feed.outcomeCalls[day2] != 1 {
		t.Errorf("outcome calls = %v", env.feed.outcomeCalls)
	}
	if got := env.load(t).Stats.TotalPredictions; got != 2 {
		t.Errorf("TotalPredictions = %d, want 2", got)
	}
}

func TestReconcile_DataUnavailableWritesNothing(t *testing.T) {
	env := newTestEnv(t, "v1")
	ctx := context.Background()
	bos := env.feed.addGame(day1, "BOS", "NYK")
	if _, err := env.p.GeneratePredictions(ctx, models.SportNBA, dayPeriod(day1)); err != nil {
		t.Fatal(err)
	}
	env.feed.addResult(bos, 100, 90)
	env.feed.failOutcomes[day2] = true

	_, err := env.p.Reconcile(ctx, models.SportNBA, dayPeriod(day2))
	if !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
	if stage := models.FailedStage(err); stage != models.StageFetchOutcomes {
		t.Errorf("stage = %q", stage)
	}
	docs := env.load(t)
	if docs.Stats.TotalPredictions != 0 || len(docs.Teams.Teams) != 0 {
		t.Errorf("failed run wrote documents: stats=%+v teams=%+v", docs.Stats, docs.Teams.Teams)
	}
}

func TestGeneratePredictions_ModelUnavailable(t *testing.T) {
	env := newTestEnv(t, "v9")
	env.feed.addGame(day1, "BOS", "NYK")

	_, err := env.p.GeneratePredictions(context.Background(), models.SportNBA, dayPeriod(day1))
	if !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
	if stage := models.FailedStage(err); stage != models.StagePredict {
		t.Errorf("stage = %q", stage)
	}
	if len(env.load(t).Predictions.Periods) != 0 {
		t.Error("predictions stored without a model")
	}
}

func TestGeneratePredictions_CommitFailure(t *testing.T) {
	env := newTestEnv(t, "v1")
	env.feed.addGame(day1, "BOS", "NYK")
	env.p.store = failingStore{env.store}

	_, err := env.p.GeneratePredictions(context.Background(), models.SportNBA, dayPeriod(day1))
	if !errors.Is(err, models.ErrPersistenceWrite) {
		t.Fatalf("err = %v, want ErrPersistenceWrite", err)
	}
	if stage := models.FailedStage(err); stage != models.StageCommit {
		t.Errorf("stage = %q", stage)
	}
	if len(env.load(t).Predictions.Periods) != 0 {
		t.Error("failed commit left predictions behind")
	}
}

func TestGeneratePredictions_Locked(t *testing.T) {
	env := newTestEnv(t, "v1")
	env.feed.addGame(day1, "BOS", "NYK")
	ctx := context.Background()

	lease, err := env.locker.Acquire(ctx, runlock.Key(models.SportNBA))
	if err != nil {
		t.Fatal(err)
	}
	defer lease.Release(ctx) //nolint:errcheck

	_, err = env.p.GeneratePredictions(ctx, models.SportNBA, dayPeriod(day1))
	if !errors.Is(err, runlock.ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
	if stage := models.FailedStage(err); stage != models.StageLock {
		t.Errorf("stage = %q", stage)
	}
}

func TestRunDaily(t *testing.T) {
	env := newTestEnv(t, "v1")
	ctx := context.Background()
	bos := env.feed.addGame(day1, "BOS", "NYK")
	if _, err := env.p.GeneratePredictions(ctx, models.SportNBA, dayPeriod(day1)); err != nil {
		t.Fatal(err)
	}
	env.feed.addResult(bos, 110, 100)
	env.feed.addGame(day2, "BOS", "NYK")

	today, _ := time.Parse(models.DateLayout, day2)
	res, err := env.p.RunDaily(ctx, models.SportNBA, today)
	if err != nil {
		t.Fatalf("RunDaily: %v", err)
	}
	if res.Period.Key() != day2 || res.Reconciled != 1 {
		t.Errorf("result = %+v", res)
	}
	// BOS is 1-0 and NYK 0-1 after yesterday, so the home-leaning leaf applies.
	if len(res.Predictions) != 1 || res.Predictions[0].PredictedWinner != "BOS" || res.Predictions[0].HomeWinProb != 0.8 {
		t.Errorf("predictions = %+v", res.Predictions)
	}
	if res.Summary.Total != 1 || res.Summary.Correct != 0 {
		t.Errorf("summary = %+v", res.Summary)
	}
}

func TestRunDaily_PredictsWhenResultsUnavailable(t *testing.T) {
	env := newTestEnv(t, "v1")
	env.feed.failOutcomes[day1] = true
	env.feed.addGame(day2, "BOS", "NYK")

	today, _ := time.Parse(models.DateLayout, day2)
	res, err := env.p.RunDaily(context.Background(), models.SportNBA, today)
	if !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
	if len(res.Predictions) != 1 {
		t.Errorf("got %d predictions, want today's slate despite the failed reconcile", len(res.Predictions))
	}
	if n, _ := testutil.GatherAndCount(env.rec.Registry(), "gameoracle_run_failures_total"); n != 1 {
		t.Errorf("failure series = %d, want 1", n)
	}
}

func TestTrain(t *testing.T) {
	env := newTestEnv(t, "v1")
	strength := map[string]int{"BOS": 6, "OKC": 5, "DEN": 4, "NYK": 3, "LAL": 2, "DET": 1}
	teams := []string{"BOS", "OKC", "DEN", "NYK", "LAL", "DET"}

	var history []models.Outcome
	start, _ := time.Parse(models.DateLayout, "2025-10-21")
	for d := 0; d < 40; d++ {
		date := start.AddDate(0, 0, d).Format(models.DateLayout)
		home, away := teams[d%6], teams[(d*5+1)%6]
		if home == away {
			continue
		}
		m := models.Matchup{Sport: models.SportNBA, Period: models.Period{Date: date}, HomeTeam: home, AwayTeam: away, Date: date}
		hs, as := 100+strength[home], 100+strength[away]
		history = append(history, models.NewOutcome(m, 2026, hs, as, models.BoxLine{}, models.BoxLine{}))
	}
	tie := models.Matchup{Sport: models.SportNBA, Period: models.Period{Date: "2025-12-15"}, HomeTeam: "BOS", AwayTeam: "DET", Date: "2025-12-15"}
	history = append(history, models.NewOutcome(tie, 2026, 100, 100, models.BoxLine{}, models.BoxLine{}))

	report, err := env.p.Train(context.Background(), models.SportNBA, "v2", history)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if report.Samples != len(history)-1 {
		t.Errorf("Samples = %d, want %d (tie excluded)", report.Samples, len(history)-1)
	}
	if report.HoldoutSamples == 0 {
		t.Error("no holdout")
	}
	m, err := env.reg.Load(models.SportNBA, "v2")
	if err != nil {
		t.Fatalf("trained model not saved: %v", err)
	}
	if m.Version() != "v2" || m.Sport != models.SportNBA {
		t.Errorf("model = %s/%s", m.Sport, m.Version())
	}

	if _, err := env.p.Train(context.Background(), models.SportNBA, "", history); models.FailedStage(err) != models.StageTrain {
		t.Errorf("missing version err = %v", err)
	}
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t, "v1")
	for i := 1; i <= 5; i++ {
		date := fmt.Sprintf("2025-11-%02d", i)
		env.feed.addResult(env.feed.addGame(date, "BOS", "NYK"), 100+i, 100)
	}

	got, err := env.p.History(context.Background(), models.SportNBA, dayPeriod("2025-11-01"), dayPeriod("2025-11-05"))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d games, want 5", len(got))
	}
	for i, o := range got {
		if want := fmt.Sprintf("2025-11-%02d", i+1); o.Matchup.Period.Key() != want {
			t.Errorf("game %d period = %s, want %s", i, o.Matchup.Period.Key(), want)
		}
	}

	env.feed.failOutcomes["2025-11-03"] = true
	if _, err := env.p.History(context.Background(), models.SportNBA, dayPeriod("2025-11-01"), dayPeriod("2025-11-05")); !errors.Is(err, models.ErrDataUnavailable) {
		t.Errorf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestReconcile_HoldsSportLockAcrossPeriods(t *testing.T) {
	env := newTestEnv(t, "v1")
	ctx := context.Background()
	bos := env.feed.addGame(day1, "BOS", "NYK")
	if _, err := env.p.GeneratePredictions(ctx, models.SportNBA, dayPeriod(day1)); err != nil {
		t.Fatal(err)
	}
	env.feed.addResult(bos, 110, 100)
	env.feed.addGame(day2, "BOS", "NYK")
	gate := env.feed.blockOutcomes(day1)

	done := make(chan error, 1)
	go func() {
		_, err := env.p.Reconcile(ctx, models.SportNBA, dayPeriod(day1))
		done <- err
	}()
	<-env.feed.entered

	_, err := env.p.GeneratePredictions(ctx, models.SportNBA, dayPeriod(day2))
	if !errors.Is(err, runlock.ErrLocked) {
		t.Errorf("GeneratePredictions(day2) during Reconcile(day1) err = %v, want ErrLocked", err)
	}
	if stage := models.FailedStage(err); stage != models.StageLock {
		t.Errorf("stage = %q", stage)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	docs := env.load(t)
	if docs.Stats.TotalPredictions != 1 || docs.Teams.Teams["BOS"].Wins != 1 {
		t.Errorf("reconcile lost: stats=%+v teams=%+v", docs.Stats, docs.Teams.Teams)
	}
	if _, ok := docs.Predictions.Periods[day2]; ok {
		t.Error("locked-out run stored a slate")
	}

	preds, err := env.p.GeneratePredictions(ctx, models.SportNBA, dayPeriod(day2))
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != 1 || preds[0].PredictedWinner != "BOS" {
		t.Errorf("predictions after reconcile = %+v", preds)
	}
	if env.load(t).Stats.TotalPredictions != 1 {
		t.Error("later slate overwrote the reconciled stats")
	}
}

func TestRunDaily_ModelUnavailableWritesNothing(t *testing.T) {
	env := newTestEnv(t, "v1")
	ctx := context.Background()
	bos := env.feed.addGame(day1, "BOS", "NYK")
	if _, err := env.p.GeneratePredictions(ctx, models.SportNBA, dayPeriod(day1)); err != nil {
		t.Fatal(err)
	}
	env.feed.addResult(bos, 110, 100)
	env.feed.addGame(day2, "BOS", "NYK")
	env.p.opts.ModelVersions[models.SportNBA] = "v9"

	today, _ := time.Parse(models.DateLayout, day2)
	_, err := env.p.RunDaily(ctx, models.SportNBA, today)
	if !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
	if stage := models.FailedStage(err); stage != models.StagePredict {
		t.Errorf("stage = %q", stage)
	}
	docs := env.load(t)
	if docs.Stats.TotalPredictions != 0 || len(docs.Teams.Teams) != 0 {
		t.Errorf("run without a model reconciled: stats=%+v teams=%+v", docs.Stats, docs.Teams.Teams)
	}
	if env.feed.outcomeCalls[day1] != 0 {
		t.Errorf("results fetched %d times before the model check", env.feed.outcomeCalls[day1])
	}
}

func TestPendingPeriods(t *testing.T) {
	issued := func(date, home, away string) models.Prediction {
		m := models.Matchup{Sport: models.SportNBA, Period: dayPeriod(date), HomeTeam: home, AwayTeam: away, Date: date}
		return models.Prediction{Matchup: m, PredictedWinner: home}
	}
	done := issued("2025-11-29", "LAL", "GSW")
	doc := &models.PredictionsDocument{Periods: map[string][]models.Prediction{
		"2025-11-28": {issued("2025-11-28", "BOS", "NYK")},
		"2025-11-29": {done},
		"2025-11-30": {issued("2025-11-30", "BOS", "NYK"), issued("2025-11-30", "DEN", "OKC")},
		day1:         {issued(day1, "BOS", "NYK")},
		day2:         {issued(day2, "BOS", "NYK")},
	}}
	stats := &models.StatsDocument{Reconciled: map[string]bool{done.Key(): true}}

	tests := []struct {
		name        string
		limit       int
		wantPeriods []string
		wantPending int
	}{
		{"unlimited", 0, []string{"2025-11-28", "2025-11-30", day1}, 4},
		{"two", 2, []string{"2025-11-30", day1}, 3},
		{"requested only", 1, []string{day1}, 1},
		{"above backlog", 10, []string{"2025-11-28", "2025-11-30", day1}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			periods, pending := pendingPeriods(doc, ledger.New(stats), dayPeriod(day1), tt.limit)
			var got []string
			for _, p := range periods {
				got = append(got, p.Key())
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.wantPeriods) {
				t.Errorf("periods = %v, want %v", got, tt.wantPeriods)
			}
			if len(pending) != tt.wantPending {
				t.Errorf("pending = %d, want %d", len(pending), tt.wantPending)
			}
		})
	}
}

func TestGeneratePredictions_Injuries(t *testing.T) {
	tests := []struct {
		name     string
		source   InjurySource
		wantHome float64
		wantAway float64
	}{
		{"no source", nil, 1, 1},
		{"home two out", fakeInjuries{out: map[string]int{"BOS": 2}}, 0.90, 1},
		{"both sides", fakeInjuries{out: map[string]int{"BOS": 1, "NYK": 9}}, 0.95, 0.75},
		{"source down", fakeInjuries{err: &models.DataUnavailableError{Source: "fake", Err: errors.New("503")}}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "v1")
			env.p.opts.Injuries = tt.source
			env.feed.addGame(day1, "BOS", "NYK")

			preds, err := env.p.GeneratePredictions(context.Background(), models.SportNBA, dayPeriod(day1))
			if err != nil {
				t.Fatalf("GeneratePredictions: %v", err)
			}
			if len(preds) != 1 {
				t.Fatalf("got %d predictions", len(preds))
			}
			p := preds[0]
			if math.Abs(p.HomeInjuryFactor-tt.wantHome) > 1e-9 || math.Abs(p.AwayInjuryFactor-tt.wantAway) > 1e-9 {
				t.Errorf("factors = %v/%v, want %v/%v", p.HomeInjuryFactor, p.AwayInjuryFactor, tt.wantHome, tt.wantAway)
			}
			stored := env.load(t).Predictions.Periods[day1]
			if len(stored) != 1 || stored[0].HomeInjuryFactor != p.HomeInjuryFactor {
				t.Errorf("stored = %+v", stored)
			}
		})
	}
}
