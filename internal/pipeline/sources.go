package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/licitaciones-ranker/internal/sheets"
	"github.com/spigell/licitaciones-ranker/internal/tender"
)

const SicepSource = "sicep"

// sicepRenames maps the SICEP export headers onto Mercado Público column names.
var sicepRenames = map[string]string{
	"Titulo":               tender.ColumnName,
	"Fecha de Publicacion": tender.ColumnPublishedAt,
	"Fecha de Publicación": tender.ColumnPublishedAt,
	"Fecha de Cierre":      tender.ColumnClosesAt,
}

// ReadSicep decodes the SICEP tab: a header row followed by one tender per row.
func ReadSicep(ctx context.Context, s sheets.Spreadsheet, tab string, logger *zap.Logger) (*tender.Tenders, error) {
	rows, err := s.Values(ctx, tab, "")
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", tab, err)
	}

	ts := tender.New()
	if len(rows) < 2 {
		logger.Warn("sicep tab has no tenders", zap.String("tab", tab))
		return ts, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if renamed, ok := sicepRenames[h]; ok {
			h = renamed
		}
		header[i] = h
	}

	for n, row := range rows[1:] {
		record := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(row) {
				record[h] = row[i]
			} else {
				record[h] = ""
			}
		}

		t, err := tender.Decode(record, SicepSource)
		if err != nil {
			logger.Warn("skipping sicep row", zap.Int("row", n+2), zap.Error(err))
			continue
		}
		if t.Code == "" {
			continue
		}
		ts.Items = append(ts.Items, t)
	}

	return ts, nil
}
