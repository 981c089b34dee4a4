package ranking

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/spigell/licitaciones-ranker/internal/criteria"
	"github.com/spigell/licitaciones-ranker/internal/scoring"
	"github.com/spigell/licitaciones-ranker/internal/tender"
)

func scored(code string, rubro, keyword, amount, client float64) scoring.Scored {
	t := &tender.Tender{Code: code, Name: "Licitación " + code, Organism: "Municipalidad", Link: "https://example.cl/" + code}
	t.Normalize()
	return scoring.Scored{
		Tender:  t,
		Rubro:   rubro,
		Keyword: keyword,
		Amount:  amount,
		Client:  client,
		Total:   rubro + keyword + amount + client,
	}
}

func codes(r *Ranking) []string {
	out := make([]string, 0, r.Len())
	for _, e := range r.Entries {
		out = append(out, e.Scored.Tender.Code)
	}
	return out
}

func TestTopOrdersLexicographically(t *testing.T) {
	in := []scoring.Scored{
		scored("A", 5, 0, 0, 0),
		scored("B", 10, 0, 0, 0),
		scored("C", 10, 20, 0, 0),
		scored("D", 10, 20, 5, 0),
		scored("E", 10, 20, 5, 10),
		scored("F", 5, 0, 0, 0),
	}

	got := Top(in, 4)

	var order []string
	for _, s := range got {
		order = append(order, s.Tender.Code)
	}
	if diff := cmp.Diff([]string{"E", "D", "C", "B"}, order); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}

	if in[0].Tender.Code != "A" {
		t.Fatal("Top must not reorder its input")
	}
}

func TestTopIsBounded(t *testing.T) {
	in := make([]scoring.Scored, 0, 150)
	for i := 0; i < 150; i++ {
		in = append(in, scored(fmt.Sprintf("T-%03d", i), float64(i%7), float64(i%3), 1, 0))
	}

	if got := len(Top(in, 0)); got != DefaultSize {
		t.Fatalf("expected default size %d, got %d", DefaultSize, got)
	}
	if got := len(Top(in, 150)); got != DefaultSize {
		t.Fatalf("size above %d must be capped, got %d", DefaultSize, got)
	}

	r := Build(in, criteria.Weights{Rubro: 0.5, Keyword: 0.5}, 100)
	if r.Len() != 100 {
		t.Fatalf("expected 100 entries, got %d", r.Len())
	}
	for i, e := range r.Entries {
		if e.Position != i+1 {
			t.Fatalf("unexpected position %d at index %d", e.Position, i)
		}
	}
}

func TestRelative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{name: "scaled", in: []float64{10, 30, 0, 60}, want: []float64{10, 30, 0, 60}},
		{name: "sum to 100", in: []float64{1, 1, 2}, want: []float64{25, 25, 50}},
		{name: "zero column", in: []float64{0, 0}, want: []float64{0, 0}},
		{name: "empty", in: nil, want: []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Relative(tt.in)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Fatalf("unexpected relative scores (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	in := []scoring.Scored{
		scored("A", 10, 10, 0, 10),
		scored("B", 10, 30, 0, 0),
		scored("C", 0, 0, 0, 10),
	}
	weights := criteria.Weights{Rubro: 0.4, Keyword: 0.3, Amount: 0.2, Client: 0.1}

	r := Build(in, weights, 100)

	// Top: B (10,30) before A (10,10) before C.
	// Relative: rubro B 50 A 50 C 0; keyword B 75 A 25 C 0; amount 0; client A 50 C 50.
	// Final: B 20+22.5 = 42.5; A 20+7.5+5 = 32.5; C 5.
	if diff := cmp.Diff([]string{"B", "A", "C"}, codes(r)); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}

	finals := []float64{r.Entries[0].Final, r.Entries[1].Final, r.Entries[2].Final}
	if diff := cmp.Diff([]float64{42.5, 32.5, 5}, finals, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("unexpected final scores (-want +got):\n%s", diff)
	}

	if e := r.Find("a"); e == nil || e.Position != 2 {
		t.Fatalf("unexpected entry for A: %+v", e)
	}
	if r.Find("Z") != nil {
		t.Fatal("unexpected entry for unknown code")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	in := []scoring.Scored{
		scored("A", 5, 10, 1, 0),
		scored("B", 5, 10, 1, 0),
		scored("C", 5, 10, 1, 0),
	}

	first := codes(Build(in, criteria.Weights{Rubro: 1}, 100))
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, codes(Build(in, criteria.Weights{Rubro: 1}, 100))); diff != "" {
			t.Fatalf("ranking changed between runs (-first +now):\n%s", diff)
		}
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, first); diff != "" {
		t.Fatalf("ties must keep input order (-want +got):\n%s", diff)
	}
}

func TestRows(t *testing.T) {
	r := Build([]scoring.Scored{scored("A", 1, 0, 0, 0), scored("B", 2, 0, 0, 0)}, criteria.Weights{Rubro: 1}, 100)

	rows := r.Rows()
	if diff := cmp.Diff(Columns, toStrings(rows[0])); diff != "" {
		t.Fatalf("unexpected header (-want +got):\n%s", diff)
	}

	// Rubro keeps full precision, Final is rounded.
	b, sum := 2.0, 3.0
	want := []any{1, "B", "Licitación B", "Municipalidad", "https://example.cl/B", b / sum * 100, 0.0, 0.0, 0.0, 66.67}
	if diff := cmp.Diff(want, rows[1]); diff != "" {
		t.Fatalf("unexpected first row (-want +got):\n%s", diff)
	}

	var empty *Ranking
	if got := empty.Rows(); len(got) != 1 {
		t.Fatalf("expected header only for an empty ranking, got %d rows", len(got))
	}
}

func TestRound(t *testing.T) {
	for in, want := range map[float64]float64{33.333333: 33.33, 66.666666: 66.67, 12.5: 12.5, -0.126: -0.13, 0: 0} {
		if got := Round(in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("Round(%v) = %v, want %v", in, got, want)
		}
	}
}

func toStrings(row []any) []string {
	out := make([]string, 0, len(row))
	for _, v := range row {
		out = append(out, fmt.Sprint(v))
	}
	return out
}
