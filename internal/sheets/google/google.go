package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"horas/internal/core"
	ports "horas/internal/sheets"
)

// Options configures the Sheets client. OAuth credentials take precedence
// over a service account when both are set.
type Options struct {
	SpreadsheetID string
	// SheetName is the base name of the export sheet; the current year is prefixed.
	SheetName    string
	CatalogSheet string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string

	ServiceAccountJSON string
	ServiceAccountFile string

	RowCacheTTL time.Duration
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	daysSheet     string
	catalogSheet  string

	mu                 sync.Mutex
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var (
	_ ports.DayExporter   = (*Client)(nil)
	_ ports.CatalogSource = (*Client)(nil)
)

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Horas"
	}
	catalog := strings.TrimSpace(opts.CatalogSheet)
	if catalog == "" {
		catalog = "Catalog"
	}
	ttl := opts.RowCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      opts.SpreadsheetID,
		daysSheet:          yearPrefixedName(base, time.Now().Year()),
		catalogSheet:       catalog,
		cacheValidDuration: ttl,
	}, nil
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientJSON, err := readInlineOrFile(opts.OAuthClientJSON, opts.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if len(clientJSON) > 0 {
		cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("oauth config: %w", err)
		}
		tokenJSON, err := readInlineOrFile(opts.OAuthTokenJSON, opts.OAuthTokenFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth token: %w", err)
		}
		if len(tokenJSON) == 0 {
			return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
		}
		var tok oauth2.Token
		if err := json.Unmarshal(tokenJSON, &tok); err != nil {
			return nil, fmt.Errorf("decode oauth token: %w", err)
		}
		// The pooled client becomes the transport under the token source.
		ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
		slog.InfoContext(ctx, "Using OAuth credentials for Google Sheets")
		return gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, &tok)))
	}

	saJSON, err := readInlineOrFile(opts.ServiceAccountJSON, opts.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}
	if len(saJSON) == 0 {
		return nil, errors.New("missing google credentials (set GOOGLE_OAUTH_CLIENT_JSON/FILE or GOOGLE_SERVICE_ACCOUNT_JSON/FILE)")
	}
	slog.InfoContext(ctx, "Using service account credentials for Google Sheets")
	return gsheet.NewService(ctx,
		goption.WithCredentialsJSON(saJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if p := strings.TrimSpace(path); p != "" {
		return os.ReadFile(p)
	}
	return nil, nil
}

// newHTTPClientWithPooling keeps connections to the Sheets API warm between
// exports.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// ExportDay writes one row per allocation of the day (or a single summary
// row when there are none) below the last used row of the export sheet.
func (c *Client) ExportDay(ctx context.Context, day ports.DayExport) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rows := dayRows(day)

	start, err := c.nextRow(ctx)
	if err != nil {
		return "", err
	}
	end := start + len(rows) - 1
	rng := fmt.Sprintf("%s!A%d:K%d", c.daysSheet, start, end)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.invalidateRowCache()
		return "", fmt.Errorf("write %s: %w", rng, err)
	}
	c.advanceRowCache(len(rows))

	slog.InfoContext(ctx, "Exported day to Google Sheets",
		"user_id", day.UserID,
		"date", day.Date.String(),
		"rows", len(rows),
		"range", rng)
	return rng, nil
}

// nextRow returns the first empty row, reading column A only when the cached
// count has expired.
func (c *Client) nextRow(ctx context.Context) (int, error) {
	c.mu.Lock()
	if time.Now().Before(c.cacheExpiresAt) {
		n := c.cachedRowCount + 1
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!A:A", c.daysSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedRowCount = len(resp.Values)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return c.cachedRowCount + 1, nil
}

func (c *Client) advanceRowCache(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().Before(c.cacheExpiresAt) {
		c.cachedRowCount += n
	}
}

func (c *Client) invalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedRowCount = 0
	c.cacheExpiresAt = time.Time{}
}

// FetchCatalog reads the catalog sheet. See parseCatalogRows for the layout.
func (c *Client) FetchCatalog(ctx context.Context) (core.Catalog, error) {
	if c.svc == nil {
		return core.Catalog{}, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:E", c.catalogSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return core.Catalog{}, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseCatalogRows(resp.Values)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
