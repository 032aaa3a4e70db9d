// Package ledger keeps the running accuracy record of issued predictions.
package ledger

import (
	"fmt"
	"math"
	"sort"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

// Ledger reconciles predictions against outcomes into a stats document.
type Ledger struct {
	doc *models.StatsDocument
}

// New returns a Ledger writing to doc.
func New(doc *models.StatsDocument) *Ledger {
	if doc.Reconciled == nil {
		doc.Reconciled = make(map[string]bool)
	}
	if doc.History == nil {
		doc.History = []models.AccuracyEntry{}
	}
	return &Ledger{doc: doc}
}

// IsReconciled reports whether the matchup key has already been scored.
func (l *Ledger) IsReconciled(key string) bool {
	return l.doc.Reconciled[key]
}

// Reconcile scores every prediction that has an outcome and has not been scored before.
// Predictions without an outcome stay issued. A tied game counts as a miss. It returns the
// number of newly reconciled predictions.
func (l *Ledger) Reconcile(predictions []models.Prediction, outcomes []models.Outcome) int {
	byKey := make(map[string]models.Outcome, len(outcomes))
	for _, o := range outcomes {
		byKey[o.Matchup.Key()] = o
	}

	sorted := make([]models.Prediction, len(predictions))
	copy(sorted, predictions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })

	n := 0
	for _, p := range sorted {
		key := p.Key()
		if l.doc.Reconciled[key] {
			continue
		}
		o, ok := byKey[key]
		if !ok {
			continue
		}
		correct := !o.Tied() && p.PredictedWinner == o.Winner

		l.doc.TotalPredictions++
		if correct {
			l.doc.CorrectPredictions++
		}
		l.doc.History = append(l.doc.History, models.AccuracyEntry{
			Key:        key,
			Period:     p.Matchup.Period.Key(),
			HomeTeam:   p.Matchup.HomeTeam,
			AwayTeam:   p.Matchup.AwayTeam,
			Predicted:  p.PredictedWinner,
			Actual:     o.Winner,
			Correct:    correct,
			Confidence: p.Confidence,
			HomeScore:  o.HomeScore,
			AwayScore:  o.AwayScore,
		})
		l.doc.Reconciled[key] = true
		n++
	}
	return n
}

// Summary returns totals, accuracy percent and the W-L record.
func (l *Ledger) Summary() models.AccuracySummary {
	total, correct := l.doc.TotalPredictions, l.doc.CorrectPredictions
	var pct float64
	if total > 0 {
		pct = math.Round(float64(correct)/float64(total)*1000) / 10
	}
	history := make([]models.AccuracyEntry, len(l.doc.History))
	copy(history, l.doc.History)
	return models.AccuracySummary{
		Sport:       l.doc.Sport,
		Total:       total,
		Correct:     correct,
		AccuracyPct: pct,
		Record:      fmt.Sprintf("%d-%d", correct, total-correct),
		History:     history,
	}
}
