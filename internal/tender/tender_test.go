package tender

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDecode(t *testing.T) {
	row := map[string]string{
		" CodigoExterno ":         "5482-99-LE24",
		"Nombre":                  "Suministro de ÁRIDOS",
		"FechaInicio":             "2024-10-01 10:00:00.000",
		"FechaCierre":             "15/10/2024",
		"NombreOrganismo":         "Municipalidad de Peñalolén",
		"Rubro3":                  "Materiales de Construcción",
		"CodigoProductoONU":       "30111601.0",
		"TiempoDuracionContrato":  "12",
		"Tipo":                    "LE",
		"ColumnaQueNoConocemos":   "ignored",
		"Nombre producto genrico": "Arena",
	}

	got, err := Decode(row, "mercado-publico")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Code != "5482-99-LE24" || got.Source != "mercado-publico" {
		t.Fatalf("unexpected identity: %+v", got)
	}

	want := Normalized{
		Code:        "5482-99-le24",
		Name:        "suministro de aridos",
		Organism:    "municipalidad de penalolen",
		Category:    "materiales de construccion",
		Product:     "arena",
		ProductCode: "30111601",
	}
	if diff := cmp.Diff(want, got.Normalized); diff != "" {
		t.Fatalf("unexpected normalized fields (-want +got):\n%s", diff)
	}

	if !got.PublishedAt.Equal(time.Date(2024, 10, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published at: %v", got.PublishedAt)
	}
	if !got.ClosesAt.Equal(time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected closes at: %v", got.ClosesAt)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{input: "2024-10-01", want: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), ok: true},
		{input: "2024-10-01T08:30:00", want: time.Date(2024, 10, 1, 8, 30, 0, 0, time.UTC), ok: true},
		{input: "03/02/2024", want: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), ok: true},
		{input: "03-02-2024", want: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), ok: true},
		{input: "", ok: false},
		{input: "pronto", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseDate(tt.input)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTendersExcludePreservesOrder(t *testing.T) {
	ts := New(
		&Tender{Code: "A"},
		&Tender{Code: "B"},
		&Tender{Code: "C"},
		&Tender{Code: "D"},
	)

	excluded := ts.Exclude(func(t *Tender) bool { return t.Code == "B" || t.Code == "D" })

	if diff := cmp.Diff([]string{"B", "D"}, excluded); diff != "" {
		t.Fatalf("unexpected excluded codes (-want +got):\n%s", diff)
	}

	var left []string
	for _, item := range ts.Items {
		left = append(left, item.Code)
	}
	if diff := cmp.Diff([]string{"A", "C"}, left); diff != "" {
		t.Fatalf("unexpected remaining codes (-want +got):\n%s", diff)
	}
}

func TestFindByCode(t *testing.T) {
	first := &Tender{Code: "1509-5-LP24"}
	first.Normalize()
	ts := New(first)

	if ts.FindByCode("1509-5-lp24") != first {
		t.Fatalf("expected to find tender ignoring case")
	}
	if ts.FindByCode("other") != nil {
		t.Fatalf("expected nil for unknown code")
	}
	if ts.FindByCode(" ") != nil {
		t.Fatalf("expected nil for empty code")
	}
}

func TestRows(t *testing.T) {
	ts := New(&Tender{Code: "A", Name: "Asfalto", Link: "https://example.com/A"})

	rows := ts.Rows([]string{ColumnCode, ColumnName, ColumnLink})

	want := [][]any{
		{"CodigoExterno", "Nombre", "Link"},
		{"A", "Asfalto", "https://example.com/A"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("unexpected rows (-want +got):\n%s", diff)
	}
}

func TestReportByOrganismIncludesAIResults(t *testing.T) {
	ts := New(
		&Tender{Code: "1", Name: "Asfalto", Organism: "MOP", AI: &AIAssessment{Fit: true, Score: 0.91, Reason: "Matches rubro"}},
		&Tender{Code: "2", Name: "Áridos", Organism: "MOP", AI: &AIAssessment{Error: "quota exceeded"}},
		&Tender{Code: "3", Name: "Grúa", Organism: "Municipalidad"},
	)

	report := ts.ReportByOrganism()

	mop := report["MOP"]
	if len(mop) != 2 {
		t.Fatalf("expected 2 entries for MOP, got %d", len(mop))
	}
	if mop[0]["ai_fit"] != "true" || mop[0]["ai_score"] != "0.91" || mop[0]["ai_reason"] != "Matches rubro" {
		t.Fatalf("unexpected ai fields: %v", mop[0])
	}
	if mop[1]["ai_error"] != "quota exceeded" {
		t.Fatalf("unexpected ai error: %v", mop[1])
	}
	if _, ok := mop[1]["ai_fit"]; ok {
		t.Fatalf("did not expect ai_fit for error case")
	}
	if _, ok := report["Municipalidad"][0]["ai_fit"]; ok {
		t.Fatalf("did not expect ai fields without assessment")
	}
}

func TestDumpToTmpFile(t *testing.T) {
	name, err := DumpToTmpFile("tenders_*.json", New(&Tender{Code: "A"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer os.Remove(name)

	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"code": "A"`) {
		t.Fatalf("unexpected dump: %s", data)
	}
}
