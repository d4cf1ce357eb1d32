// Package feeds talks to the external informational sources: the public
// inflation index and the investment-rate page. Both are display-only and
// best effort; nothing in the ledger depends on them.
package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/log"
)

// ErrInvalidMonths rejects non-positive month counts before any fetch.
var ErrInvalidMonths = errors.New("months must be greater than zero")

// InflationReading is one matched monthly index value.
type InflationReading struct {
	Rate  decimal.Decimal `json:"rate"`
	Month int             `json:"month"`
	Year  int             `json:"year"`
	Date  string          `json:"date"`
}

// InflationReport covers the N months preceding the current one. Months the
// feed has not published yet are listed in MissingMonths instead of failing
// the whole request.
type InflationReport struct {
	Data            []InflationReading `json:"data"`
	MissingMonths   []string           `json:"missingMonths,omitempty"`
	Note            string             `json:"note"`
	TotalMonths     int                `json:"totalMonths"`
	RequestedMonths int                `json:"requestedMonths"`
}

// feedEntry is the upstream wire format: one index value per month, dated on
// the last day of the month it covers.
type feedEntry struct {
	Fecha string          `json:"fecha"`
	Valor decimal.Decimal `json:"valor"`
}

// InflationClient fetches and matches monthly inflation readings.
type InflationClient struct {
	feedURL string
	client  *http.Client
	clock   core.Clock
	logger  *log.Logger
}

func NewInflationClient(feedURL string, timeout time.Duration, clock core.Clock, logger *log.Logger) *InflationClient {
	return &InflationClient{
		feedURL: feedURL,
		client:  &http.Client{Timeout: timeout},
		clock:   clock,
		logger:  logger.WithComponent(log.ComponentFeeds),
	}
}

// Recent returns the readings for the `months` calendar months before the
// current one, oldest first.
func (c *InflationClient) Recent(ctx context.Context, months int) (InflationReport, error) {
	if months <= 0 {
		return InflationReport{}, ErrInvalidMonths
	}

	entries, err := c.fetch(ctx)
	if err != nil {
		return InflationReport{}, err
	}

	// Index the feed by calendar month. The upstream list is sorted
	// most-recent-first; the map makes ordering irrelevant.
	byPeriod := make(map[core.Period]feedEntry, len(entries))
	for _, e := range entries {
		t, err := time.Parse("2006-01-02", e.Fecha)
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping unparsable feed date", "fecha", e.Fecha)
			continue
		}
		byPeriod[core.PeriodOf(t)] = e
	}

	report := InflationReport{RequestedMonths: months}
	period := core.PeriodOf(c.clock.Now())
	for i := months; i >= 1; i-- {
		target := period
		for j := 0; j < i; j++ {
			target = target.Previous()
		}
		entry, ok := byPeriod[target]
		if !ok {
			report.MissingMonths = append(report.MissingMonths, target.String())
			continue
		}
		report.Data = append(report.Data, InflationReading{
			Rate:  entry.Valor,
			Month: int(target.Month),
			Year:  target.Year,
			Date:  entry.Fecha,
		})
	}

	report.TotalMonths = len(report.Data)
	if len(report.MissingMonths) > 0 {
		report.Note = fmt.Sprintf("%d de %d meses sin dato publicado", len(report.MissingMonths), months)
	} else {
		report.Note = "índice mensual publicado por el INDEC"
	}
	return report, nil
}

func (c *InflationClient) fetch(ctx context.Context) ([]feedEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch inflation feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inflation feed returned %d", resp.StatusCode)
	}
	var entries []feedEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode inflation feed: %w", err)
	}
	return entries, nil
}
