package mercadopublico

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/licitaciones-ranker/internal/tender"
)

const (
	baseURL   = "https://transparenciachc.blob.core.windows.net/lic-da/"
	userAgent = "spigell/licitaciones-ranker"
	// Source tags tenders coming from the monthly open data archives.
	Source = "mercado-publico"
)

type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
}

func New(logger *zap.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &Client{
		logger:     logger,
		BaseURL:    baseURL,
		UserAgent:  userAgent,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Month identifies one monthly archive.
type Month struct {
	Year  int
	Month time.Month
}

func (m Month) String() string {
	return fmt.Sprintf("%d-%02d", m.Year, int(m.Month))
}

// RecentMonths returns the month of now and the count-1 months before it, newest first.
func RecentMonths(now time.Time, count int) []Month {
	if count <= 0 {
		count = 1
	}

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	months := make([]Month, 0, count)
	for i := 0; i < count; i++ {
		m := first.AddDate(0, -i, 0)
		months = append(months, Month{Year: m.Year(), Month: m.Month()})
	}
	return months
}

// URL returns the archive location for the month.
func (c *Client) URL(m Month) string {
	base := c.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return fmt.Sprintf("%s%s.zip", base, m)
}

// FetchRecent downloads the archives of the recent months concurrently. A month that fails is logged
// and skipped; the call fails only when no month could be fetched.
func (c *Client) FetchRecent(ctx context.Context, now time.Time, count int) (*tender.Tenders, error) {
	months := RecentMonths(now, count)
	results := make([]*tender.Tenders, len(months))
	failures := make([]error, len(months))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range months {
		g.Go(func() error {
			tenders, err := c.FetchMonth(gctx, m)
			if err != nil {
				c.logger.Error("downloading monthly tenders failed",
					zap.String("month", m.String()),
					zap.String("url", c.URL(m)),
					zap.Error(err),
				)
				failures[i] = fmt.Errorf("%s: %w", m, err)
				return nil
			}
			results[i] = tenders
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := tender.New()
	fetched := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		fetched++
		all.Append(r)
	}

	if fetched == 0 {
		return nil, fmt.Errorf("no monthly archive could be downloaded: %w", errors.Join(failures...))
	}

	c.logger.Info("monthly tenders downloaded",
		zap.Int("months", fetched),
		zap.Int("count", all.Len()),
	)

	return all, nil
}

// FetchMonth downloads a single monthly archive and parses every CSV inside it.
func (c *Client) FetchMonth(ctx context.Context, m Month) (*tender.Tenders, error) {
	url := c.URL(m)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	c.logger.Info("downloading tenders", zap.String("url", url))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	// zip needs random access; the archives are too large to keep in memory comfortably.
	spool, err := os.CreateTemp("", "licitaciones_*.zip")
	if err != nil {
		return nil, err
	}
	defer os.Remove(spool.Name())
	defer spool.Close()

	size, err := io.Copy(spool, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}

	c.logger.Debug("archive downloaded", zap.String("url", url), zap.Int64("bytes", size))

	return parseArchive(spool, size, Source, c.logger)
}
