// Package uva fetches the inflation-indexed UVA unit and adjusts historical
// amounts for purchasing-power changes.
package uva

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/logger"
)

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

// Value is one published UVA observation.
type Value struct {
	Date  time.Time
	Value float64
}

type indexRow struct {
	Fecha string  `json:"fecha"` // YYYY-MM-DD
	Valor float64 `json:"valor"`
}

// FetchLatest returns the most recent published UVA value.
func (c *Client) FetchLatest(ctx context.Context) (*Value, error) {
	values, err := c.fetch(ctx, "/v1/finanzas/indices/uva/ultimo")
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("uva feed returned no values")
	}
	return &values[len(values)-1], nil
}

// FetchHistory returns the full published series, oldest first.
func (c *Client) FetchHistory(ctx context.Context) ([]Value, error) {
	values, err := c.fetch(ctx, "/v1/finanzas/indices/uva")
	if err != nil {
		return nil, err
	}
	sort.Slice(values, func(i, j int) bool { return values[i].Date.Before(values[j].Date) })
	return values, nil
}

func (c *Client) fetch(ctx context.Context, path string) ([]Value, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch uva index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("uva feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// The endpoint serves either a single object or an array.
	var rows []indexRow
	if err := json.Unmarshal(body, &rows); err != nil {
		var single indexRow
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("parse uva response: %w", err)
		}
		rows = []indexRow{single}
	}

	values := make([]Value, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse("2006-01-02", row.Fecha)
		if err != nil || row.Valor <= 0 {
			continue
		}
		values = append(values, Value{Date: date, Value: row.Valor})
	}
	return values, nil
}

// Adjust converts an amount from the purchasing power at fromValue to the
// purchasing power at toValue: amount * to/from.
func Adjust(amount, fromValue, toValue float64) (float64, error) {
	if amount <= 0 {
		return 0, domain.Validationf("amount", "must be positive, got %v", amount)
	}
	if fromValue <= 0 || toValue <= 0 {
		return 0, domain.Validationf("uva", "values must be positive, got from=%v to=%v", fromValue, toValue)
	}
	return amount * toValue / fromValue, nil
}
