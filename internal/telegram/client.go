// Package telegram posts predictions, accuracy summaries and run failures to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications.
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return newClient(bot, chatIDInt, maxRetries, retryDelayBase), nil
}

func newClient(bot sender, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a run failure notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(ctx context.Context, sport models.Sport, runErr error) error {
	stage := models.FailedStage(runErr)
	if stage == "" {
		stage = "unknown"
	}
	text := fmt.Sprintf("⚠️ *%s run failed* at stage `%s`\n`%s`",
		escapeMarkdownV2(strings.ToUpper(string(sport))), escapeMarkdownV2(stage), escapeMarkdownV2(runErr.Error()))
	return c.sendMarkdownV2(ctx, text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(ctx context.Context, sport models.Sport, failureCount int) error {
	text := fmt.Sprintf("✅ *%s run recovered* after %d consecutive failure\\(s\\)",
		escapeMarkdownV2(strings.ToUpper(string(sport))), failureCount)
	return c.sendMarkdownV2(ctx, text)
}

// SendPredictions posts a period's predictions. An empty slate is not sent.
func (c *Client) SendPredictions(ctx context.Context, sport models.Sport, period models.Period, preds []models.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	return c.sendMarkdownV2(ctx, formatPredictions(sport, period, preds))
}

// SendAccuracy posts the cumulative accuracy summary.
func (c *Client) SendAccuracy(ctx context.Context, summary models.AccuracySummary) error {
	return c.sendMarkdownV2(ctx, formatAccuracy(summary))
}

// formatPredictions formats a slate into a Telegram MarkdownV2 message.
func formatPredictions(sport models.Sport, period models.Period, preds []models.Prediction) string {
	icon := "🏀"
	if sport == models.SportNFL {
		icon = "🏈"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s picks for %s*\n\n",
		icon, escapeMarkdownV2(strings.ToUpper(string(sport))), escapeMarkdownV2(period.Key()))

	for i, p := range preds {
		m := p.Matchup
		away, home := escapeMarkdownV2(m.AwayTeam), escapeMarkdownV2(m.HomeTeam)
		if p.PredictedWinner == m.HomeTeam {
			home = "*" + home + "*"
		} else {
			away = "*" + away + "*"
		}
		conf := escapeMarkdownV2(fmt.Sprintf("%.1f%%", p.Confidence*100))
		fmt.Fprintf(&b, "%d\\. %s @ %s \\(%s\\)\n", i+1, away, home, conf)
	}
	return b.String()
}

// formatAccuracy formats the accuracy summary into a Telegram MarkdownV2 message.
func formatAccuracy(s models.AccuracySummary) string {
	pct := escapeMarkdownV2(fmt.Sprintf("%.1f%%", s.AccuracyPct))
	return fmt.Sprintf("📊 *%s accuracy*: %s \\(%s\\) over %d predictions",
		escapeMarkdownV2(strings.ToUpper(string(s.Sport))), pct, escapeMarkdownV2(s.Record), s.Total)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
