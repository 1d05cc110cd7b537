// Package advisor produces an optional short AI rationale for non-HOLD
// sell recommendations. Failures degrade to empty commentary; analysis
// snapshots never depend on the advisor being reachable.
package advisor

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/config"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/logger"
)

type Client struct {
	client  *openai.Client
	model   string
	enabled bool
	cfg     *config.Config
	logger  *logger.Logger
}

// PositionBrief is the context handed to the model for one position.
type PositionBrief struct {
	Symbol         string
	CompanyName    string
	Quantity       float64
	AverageCost    float64
	CurrentPrice   float64
	ProfitPct      float64
	CompositeScore float64
	Recommendation string
	RiskLevel      string
	HoldingDays    int
}

func New(cfg *config.Config, log *logger.Logger) *Client {
	if !cfg.Advisor.Enabled {
		return &Client{enabled: false, cfg: cfg, logger: log}
	}

	ocfg := openai.DefaultConfig(cfg.Advisor.APIKey)
	if cfg.Advisor.BaseURL != "" {
		ocfg.BaseURL = cfg.Advisor.BaseURL
	}

	return &Client{
		client:  openai.NewClientWithConfig(ocfg),
		model:   cfg.Advisor.Model,
		enabled: true,
		cfg:     cfg,
		logger:  log,
	}
}

func (c *Client) Enabled() bool { return c.enabled }

// Commentary asks the model for a one-paragraph rationale. Returns "" when
// the advisor is disabled.
func (c *Client) Commentary(ctx context.Context, brief PositionBrief) (string, error) {
	if !c.enabled {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.AdvisorTimeout())
	defer cancel()

	c.logger.Debug("requesting advisor commentary",
		"symbol", brief.Symbol, "recommendation", brief.Recommendation)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildUserPrompt(brief)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("advisor API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("advisor returned no choices")
	}

	commentary, err := ParseCommentary(resp.Choices[0].Message.Content)
	if err != nil {
		return "", fmt.Errorf("parse advisor response: %w", err)
	}
	return commentary, nil
}
