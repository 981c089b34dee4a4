package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	valueInputOption = "USER_ENTERED"
	defaultMaxTries  = 5
)

// Google talks to a Google Sheets spreadsheet with a service account.
type Google struct {
	service       *gsheets.Service
	spreadsheetID string
	logger        *zap.Logger

	// NewBackOff builds the retry policy for every API call.
	NewBackOff func() backoff.BackOff
	MaxTries   uint
}

// NewGoogle authenticates with the service-account JSON and binds to one spreadsheet.
func NewGoogle(ctx context.Context, credentialsJSON []byte, spreadsheetID string, logger *zap.Logger) (*Google, error) {
	if len(credentialsJSON) == 0 {
		return nil, fmt.Errorf("service account credentials are empty")
	}
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is empty")
	}

	service, err := gsheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(gsheets.SpreadsheetsScope, gsheets.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &Google{
		service:       service,
		spreadsheetID: spreadsheetID,
		logger:        logger,
		NewBackOff:    DefaultBackOff,
		MaxTries:      defaultMaxTries,
	}, nil
}

// DefaultBackOff waits between 4 and 10 seconds between attempts.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 4 * time.Second
	b.MaxInterval = 10 * time.Second
	return b
}

func (g *Google) Tabs(ctx context.Context) ([]string, error) {
	resp, err := retry(ctx, g.retryOptions(), g.logger, "tabs", func() (*gsheets.Spreadsheet, error) {
		return g.service.Spreadsheets.Get(g.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	tabs := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			tabs = append(tabs, s.Properties.Title)
		}
	}
	return tabs, nil
}

func (g *Google) Values(ctx context.Context, tab, a1 string) ([][]string, error) {
	rng := qualify(tab, a1)
	resp, err := retry(ctx, g.retryOptions(), g.logger, "get "+rng, func() (*gsheets.ValueRange, error) {
		return g.service.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	return toStrings(resp.Values), nil
}

func (g *Google) BatchValues(ctx context.Context, tab string, ranges []string) ([][][]string, error) {
	qualified := make([]string, 0, len(ranges))
	for _, r := range ranges {
		qualified = append(qualified, qualify(tab, r))
	}

	resp, err := retry(ctx, g.retryOptions(), g.logger, "batch get "+tab, func() (*gsheets.BatchGetValuesResponse, error) {
		return g.service.Spreadsheets.Values.BatchGet(g.spreadsheetID).Ranges(qualified...).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	if len(resp.ValueRanges) != len(ranges) {
		return nil, fmt.Errorf("batch get %s: asked for %d ranges, got %d", tab, len(ranges), len(resp.ValueRanges))
	}

	out := make([][][]string, 0, len(resp.ValueRanges))
	for _, vr := range resp.ValueRanges {
		out = append(out, toStrings(vr.Values))
	}
	return out, nil
}

func (g *Google) Update(ctx context.Context, tab, a1 string, rows [][]any) error {
	rng := qualify(tab, a1)
	body := &gsheets.ValueRange{Values: SerializeRows(rows)}

	_, err := retry(ctx, g.retryOptions(), g.logger, "update "+rng, func() (*gsheets.UpdateValuesResponse, error) {
		return g.service.Spreadsheets.Values.Update(g.spreadsheetID, rng, body).
			ValueInputOption(valueInputOption).Context(ctx).Do()
	})
	return err
}

func (g *Google) retryOptions() []backoff.RetryOption {
	newBackOff := g.NewBackOff
	if newBackOff == nil {
		newBackOff = DefaultBackOff
	}
	tries := g.MaxTries
	if tries == 0 {
		tries = defaultMaxTries
	}
	return []backoff.RetryOption{backoff.WithBackOff(newBackOff()), backoff.WithMaxTries(tries)}
}

// Retryable reports whether an API error is worth another attempt: rate limits and server errors.
func Retryable(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
}

func retry[T any](ctx context.Context, opts []backoff.RetryOption, logger *zap.Logger, op string, fn func() (T, error)) (T, error) {
	attempt := 0
	v, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !Retryable(err) {
			return v, backoff.Permanent(err)
		}
		logger.Warn("spreadsheet call failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return v, err
	}, opts...)
	if err != nil {
		return v, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

func toStrings(values [][]interface{}) [][]string {
	rows := make([][]string, 0, len(values))
	for _, row := range values {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, cellString(cell))
		}
		rows = append(rows, cells)
	}
	return rows
}
