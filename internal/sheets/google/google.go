// Package google backs transactions up to a Google spreadsheet, one
// year-prefixed sheet per calendar year.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"presupuesto/internal/core"
	ports "presupuesto/internal/sheets"
)

// Row layout in the backup sheet: id, date, type, category or goal,
// description, amount, user id.
const rowWidth = "G"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var (
	_ ports.TransactionWriter  = (*Client)(nil)
	_ ports.TransactionDeleter = (*Client)(nil)
)

// NewFromEnv creates a backup client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus credentials, either a service account
// (GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS) or an OAuth client with a stored token
// (GOOGLE_OAUTH_CLIENT_JSON/FILE plus GOOGLE_OAUTH_TOKEN_JSON/FILE, see
// cmd/oauth-init). Optional: GOOGLE_SHEET_NAME (default "Movimientos"); the
// current year is prefixed automatically.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	base := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if base == "" {
		base = "Movimientos"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     base,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inline != "":
		credentialsJSON = []byte(inline)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return newOAuthSheetsService(ctx)
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// newOAuthSheetsService authenticates with an OAuth client and a previously
// stored user token. cmd/oauth-init produces the token file.
func newOAuthSheetsService(ctx context.Context) (*gsheet.Service, error) {
	clientJSON, err := readEnvOrFile("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, err
	}
	if clientJSON == nil {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_* or GOOGLE_OAUTH_CLIENT_* plus GOOGLE_OAUTH_TOKEN_*)")
	}
	tokenJSON, err := readEnvOrFile("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, err
	}
	if tokenJSON == nil {
		return nil, errors.New("missing OAuth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE, or run cmd/oauth-init)")
	}

	oauthCfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// readEnvOrFile returns the inline env value, the named file's contents, or
// nil when neither variable is set.
func readEnvOrFile(inlineKey, fileKey string) ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv(inlineKey)); inline != "" {
		return []byte(inline), nil
	}
	if file := strings.TrimSpace(os.Getenv(fileKey)); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fileKey, err)
		}
		return data, nil
	}
	return nil, nil
}

// Append writes the transaction to the next empty row of the year's sheet
// and returns the row reference.
func (c *Client) Append(ctx context.Context, t core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.sheetBase, t.Date.Year())
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, sheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	nextRow := len(resp.Values) + 1

	rng := fmt.Sprintf("%s!A%d:%s%d", sheet, nextRow, rowWidth, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{transactionRow(t)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	return rng, nil
}

// Delete clears the row holding the transaction id. The current and previous
// year sheets are checked; older rows are left alone.
func (c *Client) Delete(ctx context.Context, txID string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	year := time.Now().Year()
	for _, sheet := range []string{
		yearPrefixedName(c.sheetBase, year),
		yearPrefixedName(c.sheetBase, year-1),
	} {
		row, err := c.findRow(ctx, sheet, txID)
		if err != nil {
			return err
		}
		if row == 0 {
			continue
		}
		rng := fmt.Sprintf("%s!A%d:%s%d", sheet, row, rowWidth, row)
		_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("clear row in sheet %s: %w", sheet, err)
		}
		return nil
	}
	// Already gone, or never synced. Either way the backup holds no row.
	return nil
}

// findRow returns the 1-based row whose id column equals txID, or 0. A sheet
// that does not exist yet counts as a miss rather than an error.
func (c *Client) findRow(ctx context.Context, sheet, txID string) (int, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, sheet+"!A:A").Context(ctx).Do()
	if err != nil {
		if isMissingSheet(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	for i, row := range resp.Values {
		if len(row) > 0 && fmt.Sprint(row[0]) == txID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func isMissingSheet(err error) bool {
	return strings.Contains(err.Error(), "Unable to parse range")
}

func transactionRow(t core.Transaction) []any {
	label := t.Category
	if t.Type == core.Savings {
		label = string(t.SavingsType) + ":" + t.GoalID
	}
	amount, _ := t.Amount.Float64()
	return []any{
		t.ID,
		t.Date.Format("2006-01-02"),
		string(t.Type),
		label,
		t.Description,
		amount,
		t.UserID,
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a
// four-digit year.
func yearPrefixedName(base string, year int) string {
	trimmed := strings.TrimSpace(base)
	if len(trimmed) >= 4 {
		prefix := trimmed[:4]
		if _, ok := parseYear(prefix); ok {
			return trimmed
		}
	}
	return fmt.Sprintf("%d %s", year, trimmed)
}

func parseYear(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	y := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		y = y*10 + int(r-'0')
	}
	return y, y >= 1900
}
