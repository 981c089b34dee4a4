package mercadopublico

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/spigell/licitaciones-ranker/internal/tender"
)

const separator = ';'

func parseArchive(r io.ReaderAt, size int64, source string, logger *zap.Logger) (*tender.Tenders, error) {
	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	tenders := tender.New()
	for _, f := range archive.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			continue
		}

		items, skipped, err := parseEntry(f, source)
		if err != nil {
			logger.Error("processing archive entry failed", zap.String("file", f.Name), zap.Error(err))
			continue
		}

		logger.Info("archive entry processed",
			zap.String("file", f.Name),
			zap.Int("count", len(items)),
			zap.Int("skipped_lines", skipped),
		)
		tenders.Items = append(tenders.Items, items...)
	}

	if tenders.Len() == 0 {
		logger.Warn("no tenders found in archive")
	}

	return tenders, nil
}

func parseEntry(f *zip.File, source string) ([]*tender.Tender, int, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()

	return ParseCSV(rc, source)
}

// ParseCSV reads a Latin-1, semicolon separated listing. Lines with more fields than the header are
// skipped, shorter lines are padded with empty values. It returns the tenders and the skipped line count.
func ParseCSV(r io.Reader, source string) ([]*tender.Tender, int, error) {
	reader := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))
	reader.Comma = separator
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(strings.TrimPrefix(header[0], "\ufeff"), "\u00ef\u00bb\u00bf")
	}

	var (
		items   []*tender.Tender
		skipped int
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, skipped, err
		}

		if len(record) > len(header) {
			skipped++
			continue
		}

		row := make(map[string]string, len(header))
		for i, column := range header {
			if i < len(record) {
				row[column] = record[i]
			} else {
				row[column] = ""
			}
		}

		t, err := tender.Decode(row, source)
		if err != nil {
			skipped++
			continue
		}
		items = append(items, t)
	}

	return items, skipped, nil
}
