package feeds

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"presupuesto/internal/core"
	"presupuesto/internal/log"
)

// Investment describes the best available savings-account rate. Field names
// match the client wire format.
type Investment struct {
	Nombre     string  `json:"nombre"`
	Imagen     string  `json:"imagen"`
	Tasa       string  `json:"tasa"`
	TasaNumero float64 `json:"tasaNumero"`
	Link       string  `json:"link"`
}

// DefaultInvestment is served whenever scraping fails or finds no qualifying
// rate. Investments never error towards the client.
var DefaultInvestment = Investment{
	Nombre:     "Cuenta remunerada Mercado Pago",
	Imagen:     "https://http2.mlstatic.com/frontend-assets/mp-web-navigation/ui-navigation/5.21.22/mercadopago/logo__large.png",
	Tasa:       "32%",
	TasaNumero: 32,
	Link:       "https://www.mercadopago.com.ar/cuenta",
}

// ratePattern matches percentage figures like "39,5%" or "41.2 %" in the
// scraped page. The leading boundary and two-digit cap keep three-digit
// year-over-year figures from being misread as rates.
var ratePattern = regexp.MustCompile(`\b(\d{1,2}(?:[.,]\d{1,2})?)\s*%`)

// limits on what counts as a plausible annual rate.
const (
	minPlausibleRate = 10
	maxPlausibleRate = 99
)

// scrapeReadLimit bounds how much of the page body is scanned.
const scrapeReadLimit = 1 << 20

// InvestmentsClient scrapes the best rate from a comparison page.
type InvestmentsClient struct {
	pageURL string
	client  *http.Client
	clock   core.Clock
	logger  *log.Logger
}

func NewInvestmentsClient(pageURL string, timeout time.Duration, clock core.Clock, logger *log.Logger) *InvestmentsClient {
	return &InvestmentsClient{
		pageURL: pageURL,
		client:  &http.Client{Timeout: timeout},
		clock:   clock,
		logger:  logger.WithComponent(log.ComponentFeeds),
	}
}

// Best returns the highest plausible rate found on the page, or the default
// record when the page is unreachable, unconfigured or yields nothing.
func (c *InvestmentsClient) Best(ctx context.Context) (Investment, time.Time) {
	now := c.clock.Now()
	if c.pageURL == "" {
		return DefaultInvestment, now
	}

	body, err := c.fetch(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Investments scrape failed, serving default",
			log.FieldError, err)
		return DefaultInvestment, now
	}

	best, ok := bestRate(body)
	if !ok {
		c.logger.WarnContext(ctx, "No qualifying rate on investments page, serving default")
		return DefaultInvestment, now
	}

	inv := DefaultInvestment
	inv.Tasa = strconv.FormatFloat(best, 'f', -1, 64) + "%"
	inv.TasaNumero = best
	inv.Link = c.pageURL
	return inv, now
}

func (c *InvestmentsClient) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &scrapeStatusError{status: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, scrapeReadLimit))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// bestRate extracts the highest plausible percentage from the page text.
func bestRate(body string) (float64, bool) {
	var best float64
	var found bool
	for _, m := range ratePattern.FindAllStringSubmatch(body, -1) {
		raw := strings.ReplaceAll(m[1], ",", ".")
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if rate < minPlausibleRate || rate > maxPlausibleRate {
			continue
		}
		if !found || rate > best {
			best = rate
			found = true
		}
	}
	return best, found
}

type scrapeStatusError struct {
	status int
}

func (e *scrapeStatusError) Error() string {
	return "investments page returned " + strconv.Itoa(e.status)
}
