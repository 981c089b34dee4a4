package sheets

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Spreadsheet is the subset of spreadsheet operations the ranking run needs.
// Ranges are A1 notation relative to the tab, e.g. "C6:C7" or "B2:B".
type Spreadsheet interface {
	Tabs(ctx context.Context) ([]string, error)
	Values(ctx context.Context, tab, a1 string) ([][]string, error)
	BatchValues(ctx context.Context, tab string, ranges []string) ([][][]string, error)
	Update(ctx context.Context, tab, a1 string, rows [][]any) error
}

// CheckTabs fails when any of the given tabs does not exist.
func CheckTabs(ctx context.Context, s Spreadsheet, tabs ...string) error {
	existing, err := s.Tabs(ctx)
	if err != nil {
		return fmt.Errorf("listing tabs: %w", err)
	}

	known := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		known[t] = struct{}{}
	}

	var missing []string
	for _, t := range tabs {
		if _, ok := known[t]; !ok {
			missing = append(missing, t)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("tabs not found: %s", strings.Join(missing, ", "))
	}
	return nil
}

// FirstColumn returns the first cell of every row, keeping empty cells as "".
func FirstColumn(rows [][]string) []string {
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			values = append(values, "")
			continue
		}
		values = append(values, row[0])
	}
	return values
}

// FirstCell returns the top-left value of a range or "".
func FirstCell(rows [][]string) string {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return ""
	}
	return rows[0][0]
}

// Serialize converts a Go value into something the spreadsheet accepts as a cell.
func Serialize(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format(time.RFC3339)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return v
	}
}

// SerializeRows applies Serialize to every cell.
func SerializeRows(rows [][]any) [][]any {
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		serialized := make([]any, 0, len(row))
		for _, cell := range row {
			serialized = append(serialized, Serialize(cell))
		}
		out = append(out, serialized)
	}
	return out
}

func cellString(v any) string {
	switch val := Serialize(v).(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// qualify prefixes an A1 range with the quoted tab name. An empty range addresses the whole tab.
func qualify(tab, a1 string) string {
	quoted := "'" + strings.ReplaceAll(tab, "'", "''") + "'"
	if strings.TrimSpace(a1) == "" {
		return quoted
	}
	return quoted + "!" + a1
}
