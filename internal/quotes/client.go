package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/logger"
)

// Client fetches live CEDEAR quotes from the market-data feed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// MarketQuote is one live observation from the feed.
type MarketQuote struct {
	Symbol string
	Price  float64
	Volume float64
}

type feedRow struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"c"`
	Bid    float64 `json:"px_bid"`
	Ask    float64 `json:"px_ask"`
	Volume float64 `json:"q"`
}

// FetchCEDEARQuotes downloads the full live CEDEAR board. Rows without a
// usable price (suspended or untraded symbols) are skipped.
func (c *Client) FetchCEDEARQuotes(ctx context.Context) ([]MarketQuote, error) {
	url := c.baseURL + "/live/arg_cedears"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cedear quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rows []feedRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse quote feed response: %w", err)
	}

	result := make([]MarketQuote, 0, len(rows))
	for _, row := range rows {
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if symbol == "" {
			continue
		}

		price := row.Close
		if price == 0 && row.Bid > 0 && row.Ask > 0 {
			price = (row.Bid + row.Ask) / 2
		}
		if price == 0 {
			continue // suspended or untraded
		}

		result = append(result, MarketQuote{
			Symbol: symbol,
			Price:  price,
			Volume: row.Volume,
		})
	}

	return result, nil
}
