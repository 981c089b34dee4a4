package mercadopublico

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

const header = "CodigoExterno;Nombre;FechaInicio;FechaCierre;NombreOrganismo;Rubro3;CodigoProductoONU;Tipo;TiempoDuracionContrato\n"

func latin1(t *testing.T, s string) []byte {
	t.Helper()
	encoded, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return []byte(encoded)
}

func buildArchive(t *testing.T, files map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRecentMonths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		now   time.Time
		count int
		want  []string
	}{
		{name: "same year", now: time.Date(2024, 10, 19, 12, 0, 0, 0, time.UTC), count: 2, want: []string{"2024-10", "2024-09"}},
		{name: "january rolls over", now: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), count: 2, want: []string{"2025-01", "2024-12"}},
		{name: "non-positive count", now: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), count: 0, want: []string{"2025-03"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got []string
			for _, m := range RecentMonths(tt.now, tt.count) {
				got = append(got, m.String())
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected months (-want +got):\n%s", diff)
			}
		})
	}
}

func TestURL(t *testing.T) {
	c := New(zap.NewNop(), 0)
	c.BaseURL = "https://example.com/lic-da"

	if got := c.URL(Month{Year: 2024, Month: time.March}); got != "https://example.com/lic-da/2024-03.zip" {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestParseCSV(t *testing.T) {
	content := latin1(t, header+
		"1-1-LE24;Suministro de áridos;2024-10-01;2024-10-20;Municipalidad de Ñuñoa;Construcción;30111601.0;LE;6\n"+
		"1-2-LP24;Sobran;campos;en;esta;linea;1;2;3;4;5\n"+
		"1-3-LP24;Corta\n")

	items, skipped, err := ParseCSV(bytes.NewReader(content), Source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if skipped != 1 {
		t.Fatalf("expected 1 skipped line, got %d", skipped)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 tenders, got %d", len(items))
	}

	first := items[0]
	if first.Organism != "Municipalidad de Ñuñoa" {
		t.Fatalf("latin-1 text was not decoded: %q", first.Organism)
	}
	if first.Normalized.ProductCode != "30111601" {
		t.Fatalf("unexpected product code: %q", first.Normalized.ProductCode)
	}
	if items[1].Code != "1-3-LP24" || items[1].Organism != "" {
		t.Fatalf("short line must be padded: %+v", items[1])
	}
}

func TestFetchRecentSkipsMissingMonth(t *testing.T) {
	archive := buildArchive(t, map[string][]byte{
		"lic_2024-10.csv": latin1(t, header+"1-1-LE24;Asfalto;2024-10-01;2024-10-20;MOP;Vialidad;1;LE;6\n"),
		"readme.txt":      []byte("not a listing"),
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/2024-10.zip" {
			_, _ = w.Write(archive)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(zap.NewNop(), time.Second)
	c.BaseURL = srv.URL

	got, err := c.FetchRecent(context.Background(), time.Date(2024, 10, 19, 0, 0, 0, 0, time.UTC), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Len() != 1 || got.Items[0].Code != "1-1-LE24" {
		t.Fatalf("unexpected tenders: %+v", got.Items)
	}
	if got.Items[0].Source != Source {
		t.Fatalf("unexpected source: %q", got.Items[0].Source)
	}
}

func TestFetchRecentFailsWhenNothingDownloaded(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := New(zap.NewNop(), time.Second)
	c.BaseURL = srv.URL

	_, err := c.FetchRecent(context.Background(), time.Date(2024, 10, 19, 0, 0, 0, 0, time.UTC), 2)
	if err == nil {
		t.Fatal("expected error when every month fails")
	}
	if !strings.Contains(err.Error(), "2024-09") || !strings.Contains(err.Error(), "2024-10") {
		t.Fatalf("expected both months in error, got %v", err)
	}
}

func TestFetchMonthRejectsBrokenArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("definitely not a zip"))
	}))
	defer srv.Close()

	c := New(zap.NewNop(), time.Second)
	c.BaseURL = srv.URL

	if _, err := c.FetchMonth(context.Background(), Month{Year: 2024, Month: time.October}); err == nil {
		t.Fatal("expected error for a broken archive")
	}
}
