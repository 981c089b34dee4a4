package sheets

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is a zero-based, inclusive cell rectangle. EndRow is -1 for open ranges such as "B2:B".
type Range struct {
	StartCol, StartRow int
	EndCol, EndRow     int
}

// ParseA1 parses the A1 subset used by the workbook layout: "C13", "C6:C7", "B2:B".
func ParseA1(a1 string) (Range, error) {
	a1 = strings.ToUpper(strings.TrimSpace(a1))
	if a1 == "" {
		return Range{}, fmt.Errorf("empty range")
	}

	start, end, hasEnd := strings.Cut(a1, ":")

	sc, sr, err := parseCell(start)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", a1, err)
	}
	if sr < 0 {
		return Range{}, fmt.Errorf("range %q: start cell needs a row", a1)
	}

	if !hasEnd {
		return Range{StartCol: sc, StartRow: sr, EndCol: sc, EndRow: sr}, nil
	}

	ec, er, err := parseCell(end)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", a1, err)
	}
	if ec < sc || (er >= 0 && er < sr) {
		return Range{}, fmt.Errorf("range %q: end before start", a1)
	}

	return Range{StartCol: sc, StartRow: sr, EndCol: ec, EndRow: er}, nil
}

// String renders the range back to A1 notation.
func (r Range) String() string {
	start := ColumnName(r.StartCol) + strconv.Itoa(r.StartRow+1)
	if r.EndRow < 0 {
		return start + ":" + ColumnName(r.EndCol)
	}
	if r.StartCol == r.EndCol && r.StartRow == r.EndRow {
		return start
	}
	return start + ":" + ColumnName(r.EndCol) + strconv.Itoa(r.EndRow+1)
}

// Offset returns the single cell n rows below the range start.
func (r Range) Offset(rows int) Range {
	row := r.StartRow + rows
	return Range{StartCol: r.StartCol, StartRow: row, EndCol: r.StartCol, EndRow: row}
}

// parseCell returns zero-based column and row; row is -1 when the cell has no row part.
func parseCell(cell string) (int, int, error) {
	i := 0
	col := 0
	for i < len(cell) && cell[i] >= 'A' && cell[i] <= 'Z' {
		col = col*26 + int(cell[i]-'A'+1)
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("cell %q has no column", cell)
	}

	if i == len(cell) {
		return col - 1, -1, nil
	}

	row, err := strconv.Atoi(cell[i:])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("cell %q has an invalid row", cell)
	}

	return col - 1, row - 1, nil
}

// ColumnName converts a zero-based column index into letters: 0 -> A, 27 -> AB.
func ColumnName(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}
