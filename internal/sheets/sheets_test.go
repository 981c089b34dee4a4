package sheets

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/api/googleapi"
)

func TestParseA1(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  Range
	}{
		{input: "C13", want: Range{StartCol: 2, StartRow: 12, EndCol: 2, EndRow: 12}},
		{input: "C6:C7", want: Range{StartCol: 2, StartRow: 5, EndCol: 2, EndRow: 6}},
		{input: "B2:B", want: Range{StartCol: 1, StartRow: 1, EndCol: 1, EndRow: -1}},
		{input: "k11:k43", want: Range{StartCol: 10, StartRow: 10, EndCol: 10, EndRow: 42}},
		{input: "A3:J", want: Range{StartCol: 0, StartRow: 2, EndCol: 9, EndRow: -1}},
		{input: "AB1", want: Range{StartCol: 27, StartRow: 0, EndCol: 27, EndRow: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseA1(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected range (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseA1Invalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "12", "B", "C7:C6", "D4:B9", "A0"} {
		if _, err := ParseA1(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestRangeString(t *testing.T) {
	r, _ := ParseA1("K11:K43")
	if got := r.String(); got != "K11:K43" {
		t.Fatalf("unexpected string %q", got)
	}
	if got := r.Offset(14).String(); got != "K25" {
		t.Fatalf("unexpected offset %q", got)
	}
	open, _ := ParseA1("B2:B")
	if got := open.String(); got != "B2:B" {
		t.Fatalf("unexpected open range %q", got)
	}
}

func TestSerialize(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 10, 1, 9, 30, 0, 0, time.UTC)
	row := SerializeRows([][]any{{nil, ts, time.Time{}, math.NaN(), 12.5, "x", 3}})
	want := [][]any{{"", "2024-10-01T09:30:00Z", "", "", 12.5, "x", 3}}

	if diff := cmp.Diff(want, row); diff != "" {
		t.Fatalf("unexpected serialization (-want +got):\n%s", diff)
	}
}

func TestMemoryReadsTrimmedRanges(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("Inicio")
	m.SetColumn("Inicio", "C6", "", "01/10/2024")
	m.SetColumn("Inicio", "B2", "uno", "dos", "", "tres", "")

	got, err := m.Values(ctx, "Inicio", "C6:C7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([][]string{{}, {"01/10/2024"}}, got); diff != "" {
		t.Fatalf("unexpected values (-want +got):\n%s", diff)
	}

	batch, err := m.BatchValues(ctx, "Inicio", []string{"B2:B", "Z1:Z9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"uno", "dos", "", "tres"}, FirstColumn(batch[0])); diff != "" {
		t.Fatalf("unexpected column (-want +got):\n%s", diff)
	}
	if len(batch[1]) != 0 {
		t.Fatalf("expected empty range, got %v", batch[1])
	}
}

func TestMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("Ranking")
	m.Set("Ranking", "A1", []string{"Ranking de licitaciones"})

	if err := m.Update(ctx, "Ranking", "A3", [][]any{{"#", "CodigoExterno"}, {1, 45.5}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [][]string{{"Ranking de licitaciones"}, {}, {"#", "CodigoExterno"}, {"1", "45.5"}}
	if diff := cmp.Diff(want, m.Tab("Ranking")); diff != "" {
		t.Fatalf("unexpected grid (-want +got):\n%s", diff)
	}

	if err := m.Update(ctx, "Ranking", "A2", [][]any{{}, {"", ""}, {"", ""}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([][]string{{"Ranking de licitaciones"}}, m.Tab("Ranking")); diff != "" {
		t.Fatalf("blank cells should read back as empty (-want +got):\n%s", diff)
	}

	if err := m.Update(ctx, "Missing", "A1", nil); err == nil {
		t.Fatal("expected error for unknown tab")
	}

	if diff := cmp.Diff([]Write{{Op: "update", Tab: "Ranking", A1: "A3", Rows: 2}, {Op: "update", Tab: "Ranking", A1: "A2", Rows: 3}}, m.Writes); diff != "" {
		t.Fatalf("unexpected writes (-want +got):\n%s", diff)
	}
}

func TestCheckTabs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("Inicio", "Ranking")

	if err := CheckTabs(ctx, m, "Inicio", "Ranking"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := CheckTabs(ctx, m, "Inicio", "Clientes", "Selección")
	if err == nil || err.Error() != "tabs not found: Clientes, Selección" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQualify(t *testing.T) {
	if got := qualify("Ranking no relativo", "A1"); got != "'Ranking no relativo'!A1" {
		t.Fatalf("unexpected range %q", got)
	}
	if got := qualify("O'Higgins", ""); got != "'O''Higgins'" {
		t.Fatalf("unexpected range %q", got)
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limit", err: &googleapi.Error{Code: 429}, want: true},
		{name: "server error", err: &googleapi.Error{Code: 503}, want: true},
		{name: "not found", err: &googleapi.Error{Code: 404}, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Fatalf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	opts := []backoff.RetryOption{backoff.WithBackOff(&backoff.ZeroBackOff{}), backoff.WithMaxTries(5)}

	calls := 0
	_, err := retry(context.Background(), opts, zap.New(core), "get", func() (int, error) {
		calls++
		return 0, &googleapi.Error{Code: 400}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
	if logs.Len() != 0 {
		t.Fatalf("unexpected retry logs: %d", logs.Len())
	}
}

func TestRetryRecoversFromRateLimit(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	opts := []backoff.RetryOption{backoff.WithBackOff(&backoff.ZeroBackOff{}), backoff.WithMaxTries(5)}

	calls := 0
	got, err := retry(context.Background(), opts, zap.New(core), "update", func() (string, error) {
		calls++
		if calls < 3 {
			return "", &googleapi.Error{Code: 429}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("unexpected result %q after %d calls", got, calls)
	}
	if logs.FilterMessage("spreadsheet call failed, retrying").Len() != 2 {
		t.Fatalf("expected two retry logs, got %d", logs.Len())
	}
}

func TestRetryGivesUpAfterMaxTries(t *testing.T) {
	opts := []backoff.RetryOption{backoff.WithBackOff(&backoff.ZeroBackOff{}), backoff.WithMaxTries(5)}

	calls := 0
	_, err := retry(context.Background(), opts, zap.NewNop(), "clear", func() (struct{}, error) {
		calls++
		return struct{}{}, &googleapi.Error{Code: 500}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 5 {
		t.Fatalf("expected 5 attempts, got %d", calls)
	}
}
