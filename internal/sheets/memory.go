package sheets

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Spreadsheet used by tests and dry local runs.
// Reads trim trailing empty cells and rows the way the Sheets API does.
type Memory struct {
	mu    sync.Mutex
	order []string
	tabs  map[string][][]string

	// FailOn makes the named operation ("tabs", "values", "update") return an error.
	FailOn map[string]error
	Writes []Write
}

// Write records one Update call.
type Write struct {
	Op   string
	Tab  string
	A1   string
	Rows int
}

func NewMemory(tabs ...string) *Memory {
	m := &Memory{tabs: map[string][][]string{}, FailOn: map[string]error{}}
	for _, t := range tabs {
		m.addTab(t)
	}
	return m
}

func (m *Memory) addTab(tab string) {
	if _, ok := m.tabs[tab]; ok {
		return
	}
	m.order = append(m.order, tab)
	m.tabs[tab] = nil
}

// Set writes plain string values starting at a1, creating the tab if needed.
func (m *Memory) Set(tab, a1 string, rows ...[]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := ParseA1(a1)
	if err != nil {
		panic(err)
	}

	m.addTab(tab)
	for i, row := range rows {
		for j, v := range row {
			m.put(tab, r.StartRow+i, r.StartCol+j, v)
		}
	}
}

// SetColumn writes values downwards starting at a1.
func (m *Memory) SetColumn(tab, a1 string, values ...string) {
	rows := make([][]string, 0, len(values))
	for _, v := range values {
		rows = append(rows, []string{v})
	}
	m.Set(tab, a1, rows...)
}

// Tab returns a copy of the whole grid of a tab.
func (m *Memory) Tab(tab string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	grid := m.tabs[tab]
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = append([]string(nil), row...)
	}
	return trim(out)
}

func (m *Memory) Tabs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("tabs"); err != nil {
		return nil, err
	}
	return append([]string(nil), m.order...), nil
}

func (m *Memory) Values(ctx context.Context, tab, a1 string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("values"); err != nil {
		return nil, err
	}
	return m.read(tab, a1)
}

func (m *Memory) BatchValues(ctx context.Context, tab string, ranges []string) ([][][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("values"); err != nil {
		return nil, err
	}

	out := make([][][]string, 0, len(ranges))
	for _, a1 := range ranges {
		rows, err := m.read(tab, a1)
		if err != nil {
			return nil, err
		}
		out = append(out, rows)
	}
	return out, nil
}

func (m *Memory) Update(ctx context.Context, tab, a1 string, rows [][]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("update"); err != nil {
		return err
	}
	if _, ok := m.tabs[tab]; !ok {
		return fmt.Errorf("update: tab %q not found", tab)
	}

	r, err := ParseA1(a1)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	for i, row := range rows {
		for j, v := range row {
			m.put(tab, r.StartRow+i, r.StartCol+j, cellString(v))
		}
	}

	m.Writes = append(m.Writes, Write{Op: "update", Tab: tab, A1: a1, Rows: len(rows)})
	return nil
}

func (m *Memory) fail(op string) error {
	if err, ok := m.FailOn[op]; ok {
		return err
	}
	return nil
}

func (m *Memory) read(tab, a1 string) ([][]string, error) {
	grid, ok := m.tabs[tab]
	if !ok {
		return nil, fmt.Errorf("tab %q not found", tab)
	}

	if a1 == "" {
		return m.copyGrid(grid, Range{EndCol: widest(grid) - 1, EndRow: -1}), nil
	}

	r, err := ParseA1(a1)
	if err != nil {
		return nil, err
	}
	return m.copyGrid(grid, r), nil
}

func (m *Memory) copyGrid(grid [][]string, r Range) [][]string {
	end := r.EndRow
	if end < 0 || end >= len(grid) {
		end = len(grid) - 1
	}

	var out [][]string
	for i := r.StartRow; i <= end; i++ {
		row := grid[i]
		var cells []string
		for j := r.StartCol; j <= r.EndCol; j++ {
			if j < len(row) {
				cells = append(cells, row[j])
			} else {
				cells = append(cells, "")
			}
		}
		out = append(out, cells)
	}
	return trim(out)
}

func (m *Memory) put(tab string, row, col int, v string) {
	grid := m.tabs[tab]
	for len(grid) <= row {
		grid = append(grid, nil)
	}
	for len(grid[row]) <= col {
		grid[row] = append(grid[row], "")
	}
	grid[row][col] = v
	m.tabs[tab] = grid
}

func widest(grid [][]string) int {
	w := 0
	for _, row := range grid {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// trim drops trailing empty cells of every row and trailing empty rows.
func trim(rows [][]string) [][]string {
	for i, row := range rows {
		n := len(row)
		for n > 0 && row[n-1] == "" {
			n--
		}
		if n == 0 {
			rows[i] = []string{}
			continue
		}
		rows[i] = row[:n]
	}

	n := len(rows)
	for n > 0 && len(rows[n-1]) == 0 {
		n--
	}
	return rows[:n]
}
