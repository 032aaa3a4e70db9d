package models

// Document names, one per persisted concern.
const (
	DocPredictions = "predictions"
	DocStats       = "stats"
	DocTeams       = "teams"
)

// PredictionsDocument holds issued predictions keyed by Period.Key().
type PredictionsDocument struct {
	Sport   Sport                   `json:"sport"`
	Periods map[string][]Prediction `json:"periods"`
}

// StatsDocument holds the cumulative accuracy record and the set of reconciled matchup keys.
type StatsDocument struct {
	Sport              Sport           `json:"sport"`
	TotalPredictions   int             `json:"total_predictions"`
	CorrectPredictions int             `json:"correct_predictions"`
	History            []AccuracyEntry `json:"predictions_history"`
	Reconciled         map[string]bool `json:"reconciled"`
}

// TeamsDocument holds the current TeamStatLine set and the outcome keys already folded in.
type TeamsDocument struct {
	Sport   Sport                   `json:"sport"`
	Teams   map[string]TeamStatLine `json:"teams"`
	Applied map[string]bool         `json:"applied"`
}

// Documents is the unit of a run's read-modify-write: all three are committed together.
type Documents struct {
	Predictions *PredictionsDocument
	Stats       *StatsDocument
	Teams       *TeamsDocument
}

// NewDocuments returns empty documents for a sport.
func NewDocuments(sport Sport) *Documents {
	d := &Documents{
		Predictions: &PredictionsDocument{Sport: sport},
		Stats:       &StatsDocument{Sport: sport},
		Teams:       &TeamsDocument{Sport: sport},
	}
	d.Normalize()
	return d
}

// Normalize allocates nil maps and slices so decoded documents are usable and encode stably.
func (d *Documents) Normalize() {
	if d.Predictions == nil {
		d.Predictions = &PredictionsDocument{}
	}
	if d.Stats == nil {
		d.Stats = &StatsDocument{}
	}
	if d.Teams == nil {
		d.Teams = &TeamsDocument{}
	}
	if d.Predictions.Periods == nil {
		d.Predictions.Periods = make(map[string][]Prediction)
	}
	if d.Stats.History == nil {
		d.Stats.History = []AccuracyEntry{}
	}
	if d.Stats.Reconciled == nil {
		d.Stats.Reconciled = make(map[string]bool)
	}
	if d.Teams.Teams == nil {
		d.Teams.Teams = make(map[string]TeamStatLine)
	}
	if d.Teams.Applied == nil {
		d.Teams.Applied = make(map[string]bool)
	}
}
