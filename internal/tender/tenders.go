package tender

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spigell/licitaciones-ranker/internal/utils"
)

type Tenders struct {
	Items []*Tender
}

func New(items ...*Tender) *Tenders {
	return &Tenders{Items: items}
}

func (ts *Tenders) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.Items)
}

func (ts *Tenders) Append(other *Tenders) {
	if other == nil {
		return
	}
	ts.Items = append(ts.Items, other.Items...)
}

// FindByCode returns the first row with the given code, compared in normalized form.
func (ts *Tenders) FindByCode(code string) *Tender {
	want := utils.Normalize(code)
	if want == "" {
		return nil
	}
	for _, t := range ts.Items {
		if t.Normalized.Code == want || t.Code == code {
			return t
		}
	}
	return nil
}

// Exclude removes every tender matching the predicate and returns the removed codes.
// Unlike a swap-remove, the order of the remaining tenders is preserved; ranking ties depend on it.
func (ts *Tenders) Exclude(match func(*Tender) bool) []string {
	var excluded []string
	kept := ts.Items[:0]
	for _, t := range ts.Items {
		if match(t) {
			excluded = append(excluded, t.Code)
			continue
		}
		kept = append(kept, t)
	}

	for i := len(kept); i < len(ts.Items); i++ {
		ts.Items[i] = nil
	}
	ts.Items = kept

	return excluded
}

// Rows renders the tenders as spreadsheet rows, header first.
func (ts *Tenders) Rows(columns []string) [][]any {
	rows := make([][]any, 0, ts.Len()+1)

	header := make([]any, 0, len(columns))
	for _, c := range columns {
		header = append(header, c)
	}
	rows = append(rows, header)

	for _, t := range ts.Items {
		row := make([]any, 0, len(columns))
		for _, c := range columns {
			row = append(row, t.Column(c))
		}
		rows = append(rows, row)
	}

	return rows
}

// ReportByOrganism groups tenders by buying organism for the interactive report.
func (ts *Tenders) ReportByOrganism() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, t := range ts.Items {
		entry := map[string]string{
			"code":     t.Code,
			"name":     t.Name,
			"link":     t.Link,
			"category": t.Category,
			"closes":   t.Closes,
		}

		if t.AI != nil {
			if t.AI.Error != "" {
				entry["ai_error"] = t.AI.Error
			} else {
				entry["ai_fit"] = strconv.FormatBool(t.AI.Fit)
				entry["ai_score"] = strconv.FormatFloat(t.AI.Score, 'f', -1, 64)
				if t.AI.Reason != "" {
					entry["ai_reason"] = t.AI.Reason
				}
			}
		}

		report[t.Organism] = append(report[t.Organism], entry)
	}
	return report
}

// DumpToTmpFile writes v as indented JSON into a new temporary file and returns its name.
func DumpToTmpFile(pattern string, v any) (string, error) {
	file, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode %s: %w", file.Name(), err)
	}
	return file.Name(), nil
}
