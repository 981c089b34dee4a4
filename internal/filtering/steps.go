package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/licitaciones-ranker/internal/tender"
	"github.com/spigell/licitaciones-ranker/internal/utils"
)

// DefaultHealthTerms are organism name fragments of the public health network. Tenders from those
// buyers are never bid on.
var DefaultHealthTerms = []string{
	"CENTRO DE SALUD", "PREHOSPITALARIA", "REFERENCIA DE SALUD",
	"REFERENCIAL DE SALUD", "ONCOLOGICO", "CESFAM", "COMPLEJO ASISTENCIAL",
	"CONSULTORIO", "CRS", "HOSPITAL", "INSTITUTO DE NEUROCIRUGÍA",
	"INSTITUTO DE SALUD PÚBLICA DE CHILE", "INSTITUTO NACIONAL DE GERIATRIA",
	"INSTITUTO NACIONAL DE REHABILITACION", "INSTITUTO NACIONAL DEL CANCER",
	"INSTITUTO NACIONAL DEL TORAX", "INSTITUTO PSIQUIÁTRICO",
	"SERV NAC SALUD", "SERV SALUD", "SERVICIO DE SALUD",
	"SERVICIO NACIONAL DE SALUD", "SERVICIO SALUD", "INSTITUTO DE DESARROLLO AGROPECUARIO",
}

type dateWindowFilter struct {
	toggle
	minPublished time.Time
	minClosing   time.Time
}

// NewDateWindow creates a filter that keeps tenders published and closing after the configured dates.
func NewDateWindow() Filter {
	return &dateWindowFilter{}
}

func (f *dateWindowFilter) Name() string { return StepDateWindow }

func (f *dateWindowFilter) Validate(cfg *Config) error {
	if cfg == nil || cfg.Criteria == nil {
		return fmt.Errorf("criteria are required")
	}
	if cfg.Criteria.MinPublished.IsZero() || cfg.Criteria.MinClosing.IsZero() {
		return fmt.Errorf("minimum publication and closing dates are required")
	}
	f.minPublished = cfg.Criteria.MinPublished
	f.minClosing = cfg.Criteria.MinClosing
	return nil
}

func (f *dateWindowFilter) Apply(_ context.Context, deps Deps, ts *tender.Tenders) (*tender.Tenders, Step, error) {
	initial := ts.Len()

	// Unparseable dates are zero and therefore outside the window.
	excluded := ts.Exclude(func(t *tender.Tender) bool {
		return t.PublishedAt.Before(f.minPublished) || t.ClosesAt.Before(f.minClosing)
	})
	if deps.Logger != nil {
		deps.Logger.Debug("excluding tenders outside the date window",
			zap.Time("min_published", f.minPublished),
			zap.Time("min_closing", f.minClosing),
			zap.Int("excluded", len(excluded)),
			zap.Int("tenders_left", ts.Len()),
		)
	}

	return ts, Step{Initial: initial, Dropped: len(excluded), Left: ts.Len()}, nil
}

func (f *dateWindowFilter) Status() Status {
	details := map[string]string{}
	if !f.minPublished.IsZero() {
		details["min_published"] = f.minPublished.Format(time.DateOnly)
		details["min_closing"] = f.minClosing.Format(time.DateOnly)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type selectedFilter struct {
	toggle
	codes map[string]struct{}
}

// NewSelected creates a filter that removes tenders the operator already picked.
func NewSelected() Filter {
	return &selectedFilter{}
}

func (f *selectedFilter) Name() string { return StepSelected }

func (f *selectedFilter) Validate(cfg *Config) error {
	f.codes = nil
	if cfg != nil && cfg.Criteria != nil {
		f.codes = cfg.Criteria.Selected
	}
	return nil
}

func (f *selectedFilter) Apply(_ context.Context, deps Deps, ts *tender.Tenders) (*tender.Tenders, Step, error) {
	initial := ts.Len()
	if len(f.codes) == 0 {
		return ts, Step{Initial: initial, Dropped: 0, Left: ts.Len()}, nil
	}

	excluded := ts.Exclude(func(t *tender.Tender) bool {
		_, ok := f.codes[t.Normalized.Code]
		return ok
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding already selected tenders",
			zap.Strings("excluded_tenders", unique(excluded)),
			zap.Int("tenders_left", ts.Len()),
		)
	}

	return ts, Step{Initial: initial, Dropped: len(excluded), Left: ts.Len()}, nil
}

func (f *selectedFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"codes": strconv.Itoa(len(f.codes))},
	}
}

type healthOrganismsFilter struct {
	toggle
	terms []string
}

// NewHealthOrganisms creates a filter that removes tenders from health network buyers.
func NewHealthOrganisms() Filter {
	return &healthOrganismsFilter{}
}

func (f *healthOrganismsFilter) Name() string { return StepHealthOrganisms }

func (f *healthOrganismsFilter) Validate(cfg *Config) error {
	terms := DefaultHealthTerms
	if cfg != nil && len(cfg.HealthTerms) > 0 {
		terms = cfg.HealthTerms
	}
	f.terms = utils.NormalizeAll(terms)
	if len(f.terms) == 0 {
		return fmt.Errorf("at least one organism term is required")
	}
	return nil
}

func (f *healthOrganismsFilter) Apply(_ context.Context, deps Deps, ts *tender.Tenders) (*tender.Tenders, Step, error) {
	initial := ts.Len()

	excluded := ts.Exclude(func(t *tender.Tender) bool {
		for _, term := range f.terms {
			if strings.Contains(t.Normalized.Organism, term) {
				return true
			}
		}
		return false
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding tenders from health organisms",
			zap.Int("excluded", len(excluded)),
			zap.Int("tenders_left", ts.Len()),
		)
	}

	return ts, Step{Initial: initial, Dropped: len(excluded), Left: ts.Len()}, nil
}

func (f *healthOrganismsFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"terms": strconv.Itoa(len(f.terms))},
	}
}

type zeroDurationFilter struct {
	toggle
}

// NewZeroDuration creates a filter that removes tenders whose contract lasts zero months.
func NewZeroDuration() Filter {
	return &zeroDurationFilter{}
}

func (f *zeroDurationFilter) Name() string { return StepZeroDuration }

func (f *zeroDurationFilter) Validate(*Config) error { return nil }

func (f *zeroDurationFilter) Apply(_ context.Context, deps Deps, ts *tender.Tenders) (*tender.Tenders, Step, error) {
	initial := ts.Len()

	excluded := ts.Exclude(func(t *tender.Tender) bool {
		d, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t.Duration), ",", "."), 64)
		return err == nil && d == 0
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding tenders with zero contract duration",
			zap.Strings("excluded_tenders", unique(excluded)),
			zap.Int("tenders_left", ts.Len()),
		)
	}

	return ts, Step{Initial: initial, Dropped: len(excluded), Left: ts.Len()}, nil
}

func (f *zeroDurationFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

// unique keeps the first occurrence of every code; Mercado Público repeats codes once per item.
func unique(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
