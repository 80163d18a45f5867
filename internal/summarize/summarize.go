// Package summarize turns a day of sessions into a short prose summary
// via an OpenAI-compatible chat completion endpoint. Summaries are an
// optional garnish: every failure degrades to an empty string and the
// rest of the system never notices.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/glancelabs/glance/backend/internal/config"
	"github.com/glancelabs/glance/backend/internal/logging"
	"github.com/glancelabs/glance/backend/internal/types"
)

// Summarizer produces a prose summary for a day. An empty string means
// no summary is available.
type Summarizer interface {
	SummarizeDay(ctx context.Context, summary types.DaySummary, sessions []types.ActivitySession) string
}

// Disabled is the no-op Summarizer used when no endpoint is configured.
type Disabled struct{}

// SummarizeDay always returns the empty string.
func (Disabled) SummarizeDay(context.Context, types.DaySummary, []types.ActivitySession) string {
	return ""
}

const systemPrompt = "You summarize a person's day at their computer. " +
	"Write 2-3 sentences, plain and factual, second person. " +
	"Mention the dominant applications and how the time split across them. " +
	"Do not mention percentages or exact minutes."

// maxPromptSessions caps how many sessions go into the prompt.
const maxPromptSessions = 40

// Client calls an OpenAI-compatible /v1/chat/completions endpoint.
type Client struct {
	http  *resty.Client
	model string
	log   *logging.Logger
}

// NewClient builds a summarizer from configuration. Returns Disabled
// when no base URL is set.
func NewClient(cfg config.SummarizerConfig, log *logging.Logger) Summarizer {
	if cfg.BaseURL == "" {
		return Disabled{}
	}

	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)
	if cfg.APIKey != "" {
		http.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		http:  http,
		model: cfg.Model,
		log:   log.Component("summarize"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// SummarizeDay requests a prose summary. Any failure returns "".
func (c *Client) SummarizeDay(ctx context.Context, summary types.DaySummary, sessions []types.ActivitySession) string {
	if summary.ActivityCount == 0 {
		return ""
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: buildPrompt(summary, sessions)},
			},
			MaxTokens:   200,
			Temperature: 0.4,
		}).
		SetResult(&out).
		Post("/v1/chat/completions")
	if err != nil {
		c.log.Warn("summary request failed", zap.Error(err))
		return ""
	}
	if resp.IsError() {
		c.log.Warn("summary request rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", truncateBody(resp.String())))
		return ""
	}
	if len(out.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(out.Choices[0].Message.Content)
}

// buildPrompt renders the day as plain text the model can work from.
func buildPrompt(summary types.DaySummary, sessions []types.ActivitySession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", summary.Date)
	fmt.Fprintf(&b, "Total screen time: %s across %d sessions\n", summary.TotalScreenTime.Round(time.Minute), summary.ActivityCount)

	if len(summary.TopApps) > 0 {
		b.WriteString("Top applications:\n")
		for _, app := range summary.TopApps {
			fmt.Fprintf(&b, "- %s (%s): %s\n", app.AppName, app.Category, app.Duration.Round(time.Minute))
		}
	}

	if len(sessions) > 0 {
		b.WriteString("Session titles in order:\n")
		n := len(sessions)
		if n > maxPromptSessions {
			n = maxPromptSessions
		}
		for _, s := range sessions[:n] {
			title := s.Title
			if title == "" {
				title = s.App.Name
			}
			fmt.Fprintf(&b, "- %s\n", title)
		}
	}

	return b.String()
}

func truncateBody(s string) string {
	if len(s) > 256 {
		return s[:256]
	}
	return s
}
