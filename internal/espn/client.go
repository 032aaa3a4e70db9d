// Package espn reads schedules, final scores and team box scores from the ESPN
// scoreboard API.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

// DefaultBaseURL is the public ESPN site API root.
const DefaultBaseURL = "https://site.api.espn.com/apis/site/v2/sports"

const source = "espn"

// Client fetches scoreboards for a period.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates an ESPN client. Every request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, retryDelayBase time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// Schedule returns every game scheduled in the period, final or not.
func (c *Client) Schedule(ctx context.Context, sport models.Sport, period models.Period) ([]models.Matchup, error) {
	board, err := c.scoreboard(ctx, sport, period)
	if err != nil {
		return nil, err
	}
	var out []models.Matchup
	for _, ev := range board.Events {
		g, ok := ev.game(sport, period)
		if !ok {
			continue
		}
		out = append(out, g.matchup)
	}
	return out, nil
}

// Outcomes returns the period's completed games. Games still in progress are absent.
func (c *Client) Outcomes(ctx context.Context, sport models.Sport, period models.Period) ([]models.Outcome, error) {
	board, err := c.scoreboard(ctx, sport, period)
	if err != nil {
		return nil, err
	}
	var out []models.Outcome
	for _, ev := range board.Events {
		if !ev.Status.Type.Completed {
			continue
		}
		g, ok := ev.game(sport, period)
		if !ok {
			continue
		}
		season := period.Season
		if !period.IsWeekly() {
			season = models.SeasonFor(sport, period.Time())
		}
		out = append(out, models.NewOutcome(g.matchup, season, g.homeScore, g.awayScore, g.homeBox, g.awayBox))
	}
	return out, nil
}

func leaguePath(sport models.Sport) (string, error) {
	switch sport {
	case models.SportNBA:
		return "basketball/nba", nil
	case models.SportNFL:
		return "football/nfl", nil
	default:
		return "", fmt.Errorf("unsupported sport %q", sport)
	}
}

func (c *Client) scoreboardURL(sport models.Sport, period models.Period) (string, error) {
	league, err := leaguePath(sport)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(c.baseURL + "/" + league + "/scoreboard")
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	if period.IsWeekly() {
		q.Set("seasontype", "2")
		q.Set("week", strconv.Itoa(period.Week))
		q.Set("dates", strconv.Itoa(period.Season))
	} else {
		q.Set("dates", strings.ReplaceAll(period.Date, "-", ""))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) scoreboard(ctx context.Context, sport models.Sport, period models.Period) (*scoreboard, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	u, err := c.scoreboardURL(sport, period)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, u)
	if err != nil {
		return nil, &models.DataUnavailableError{Source: source, Err: err}
	}
	defer resp.Body.Close()

	var board scoreboard
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		return nil, &models.DataUnavailableError{Source: source, Err: fmt.Errorf("failed to decode scoreboard: %w", err)}
	}
	return &board, nil
}

// doRequest performs a GET with retries on transport errors, 429 and 5xx responses.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			if err := sleep(ctx, time.Duration(i)*c.retryDelayBase); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "gameoracle/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
