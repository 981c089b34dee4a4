package ranking

import (
	"math"
	"sort"

	"github.com/spigell/licitaciones-ranker/internal/criteria"
	"github.com/spigell/licitaciones-ranker/internal/scoring"
	"github.com/spigell/licitaciones-ranker/internal/tender"
	"github.com/spigell/licitaciones-ranker/internal/utils"
)

const DefaultSize = 100

// Columns is the header of the published ranking table.
var Columns = []string{
	"#", tender.ColumnCode, tender.ColumnName, tender.ColumnOrganism, tender.ColumnLink,
	"Rubro", "Palabra", "Monto", "Clientes", "Puntaje Final",
}

// Entry is one ranked tender. Sub-scores are relative: every column of the top sums to 100.
type Entry struct {
	Position int
	Scored   scoring.Scored

	Rubro   float64
	Keyword float64
	Amount  float64
	Client  float64
	Final   float64
}

type Ranking struct {
	Entries []Entry
	Weights criteria.Weights
}

// Build selects the top tenders and ranks them by the weighted sum of their relative scores.
// scored is expected to hold one row per tender code.
func Build(scored []scoring.Scored, weights criteria.Weights, size int) *Ranking {
	top := Top(scored, size)

	rubro := Relative(column(top, func(s scoring.Scored) float64 { return s.Rubro }))
	keyword := Relative(column(top, func(s scoring.Scored) float64 { return s.Keyword }))
	amount := Relative(column(top, func(s scoring.Scored) float64 { return s.Amount }))
	client := Relative(column(top, func(s scoring.Scored) float64 { return s.Client }))

	entries := make([]Entry, 0, len(top))
	for i, s := range top {
		e := Entry{
			Scored:  s,
			Rubro:   rubro[i],
			Keyword: keyword[i],
			Amount:  amount[i],
			Client:  client[i],
		}
		e.Final = e.Rubro*weights.Rubro + e.Keyword*weights.Keyword + e.Amount*weights.Amount + e.Client*weights.Client
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Final > entries[j].Final
	})
	for i := range entries {
		entries[i].Position = i + 1
	}

	return &Ranking{Entries: entries, Weights: weights}
}

// Top orders by rubro, then keyword, amount and client score, all descending, and keeps the first n.
// n is capped at DefaultSize. Equal tenders keep their input order.
func Top(scored []scoring.Scored, n int) []scoring.Scored {
	if n <= 0 || n > DefaultSize {
		n = DefaultSize
	}

	sorted := append([]scoring.Scored(nil), scored...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		switch {
		case a.Rubro != b.Rubro:
			return a.Rubro > b.Rubro
		case a.Keyword != b.Keyword:
			return a.Keyword > b.Keyword
		case a.Amount != b.Amount:
			return a.Amount > b.Amount
		default:
			return a.Client > b.Client
		}
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Relative rescales values so they sum to 100. A column that sums to zero or less stays at zero.
func Relative(values []float64) []float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	out := make([]float64, len(values))
	if sum <= 0 {
		return out
	}
	for i, v := range values {
		out[i] = v / sum * 100
	}
	return out
}

// Round rounds half away from zero to two decimals.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

func (r *Ranking) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Entries)
}

// Find returns the entry of the given code or nil.
func (r *Ranking) Find(code string) *Entry {
	if r == nil {
		return nil
	}
	want := utils.Normalize(code)
	for i := range r.Entries {
		if r.Entries[i].Scored.Tender.Normalized.Code == want {
			return &r.Entries[i]
		}
	}
	return nil
}

// Rows renders the ranking table, header first. Palabra, Monto and Puntaje Final are rounded to two
// decimals; Rubro and Clientes are written as computed.
func (r *Ranking) Rows() [][]any {
	rows := make([][]any, 0, r.Len()+1)

	header := make([]any, 0, len(Columns))
	for _, c := range Columns {
		header = append(header, c)
	}
	rows = append(rows, header)

	if r == nil {
		return rows
	}

	for _, e := range r.Entries {
		t := e.Scored.Tender
		rows = append(rows, []any{
			e.Position, t.Code, t.Name, t.Organism, t.Link,
			e.Rubro, Round(e.Keyword), Round(e.Amount), e.Client, Round(e.Final),
		})
	}
	return rows
}

// Tenders returns the ranked tenders in ranking order.
func (r *Ranking) Tenders() *tender.Tenders {
	ts := tender.New()
	if r == nil {
		return ts
	}
	for _, e := range r.Entries {
		ts.Items = append(ts.Items, e.Scored.Tender)
	}
	return ts
}

func column(scored []scoring.Scored, get func(scoring.Scored) float64) []float64 {
	values := make([]float64, len(scored))
	for i, s := range scored {
		values[i] = get(s)
	}
	return values
}
