package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

type injuryBoard struct {
	Injuries []teamInjuries `json:"injuries"`
}

type teamInjuries struct {
	DisplayName  string        `json:"displayName"`
	Abbreviation string        `json:"abbreviation"`
	Injuries     []injuryEntry `json:"injuries"`
}

type injuryEntry struct {
	Status  string `json:"status"`
	Athlete struct {
		DisplayName string `json:"displayName"`
		Team        struct {
			Abbreviation string `json:"abbreviation"`
		} `json:"team"`
	} `json:"athlete"`
}

// ruledOut reports whether an injury status keeps the player out of the next game.
func ruledOut(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "out", "injured reserve", "suspension":
		return true
	}
	return false
}

// Injuries returns the number of players currently ruled out per team abbreviation. Teams
// without anyone out are absent.
func (c *Client) Injuries(ctx context.Context, sport models.Sport) (map[string]int, error) {
	league, err := leaguePath(sport)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(c.baseURL + "/" + league + "/injuries")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, &models.DataUnavailableError{Source: source, Err: err}
	}
	defer resp.Body.Close()

	var board injuryBoard
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		return nil, &models.DataUnavailableError{Source: source, Err: fmt.Errorf("failed to decode injuries: %w", err)}
	}

	out := make(map[string]int)
	for _, team := range board.Injuries {
		for _, inj := range team.Injuries {
			if !ruledOut(inj.Status) {
				continue
			}
			abbr := inj.Athlete.Team.Abbreviation
			if abbr == "" {
				abbr = team.Abbreviation
			}
			if abbr == "" {
				continue
			}
			out[abbr]++
		}
	}
	return out, nil
}
