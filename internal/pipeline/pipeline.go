package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/licitaciones-ranker/internal/ai"
	"github.com/spigell/licitaciones-ranker/internal/criteria"
	"github.com/spigell/licitaciones-ranker/internal/filtering"
	"github.com/spigell/licitaciones-ranker/internal/logger"
	"github.com/spigell/licitaciones-ranker/internal/mercadopublico"
	"github.com/spigell/licitaciones-ranker/internal/ranking"
	"github.com/spigell/licitaciones-ranker/internal/scoring"
	"github.com/spigell/licitaciones-ranker/internal/sheets"
	"github.com/spigell/licitaciones-ranker/internal/tender"
)

// rankingBodyRow is the first row below the ranking title.
const rankingBodyRow = 1

// Fetcher downloads the most recent tender listings.
type Fetcher interface {
	FetchRecent(ctx context.Context, now time.Time, months int) (*tender.Tenders, error)
}

// Options control a single run.
type Options struct {
	Layout      criteria.Layout
	RankingSize int

	MercadoPublico bool
	Months         int
	Sicep          bool

	HealthTerms  []string
	HealthFilter bool
	ZeroDuration bool
	AI           *filtering.AIConfig

	DryRun    bool
	TraceCode string
}

type Pipeline struct {
	Sheet   sheets.Spreadsheet
	Fetcher Fetcher
	Matcher ai.Matcher
	// Profile is sent to the matcher; rubros and keywords are filled from the criteria.
	Profile *ai.Profile
	Logger  *zap.Logger
	Options Options

	Now func() time.Time
}

// Result is everything a run computed before publishing.
type Result struct {
	Criteria *criteria.Criteria
	// Active is what the active tenders tab received.
	Active *tender.Tenders
	// Candidates survived every filter and were scored.
	Candidates *tender.Tenders
	Steps      []filtering.Applied
	Scored     []scoring.Scored
	Ranking    *ranking.Ranking
}

// Run computes the ranking. It writes the active tenders and non-relative scores tabs but never
// the ranking tab; that is left to Publish.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	log := p.log()
	layout := p.Options.Layout

	if err := sheets.CheckTabs(ctx, p.Sheet, layout.Tabs(p.Options.Sicep)...); err != nil {
		return nil, fmt.Errorf("checking workbook: %w", err)
	}

	crit, err := criteria.Load(ctx, p.Sheet, layout, logger.WithFields(log, zap.String(logger.FieldStage, "criteria")))
	if err != nil {
		return nil, fmt.Errorf("loading criteria: %w", err)
	}

	ts, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}
	p.trace("downloaded", ts)

	// The active tab lists the tenders left once the selected ones are removed, before any exclusion by buyer.
	var active *tender.Tenders
	trace := func(stage string, ts *tender.Tenders) {
		p.trace(stage, ts)
		if stage == filtering.StepSelected {
			active = tender.New(append([]*tender.Tender(nil), ts.Items...)...)
		}
	}

	cfg := &filtering.Config{Criteria: crit, HealthTerms: p.Options.HealthTerms, AI: p.Options.AI}
	deps := filtering.Deps{
		Logger:  logger.WithFields(log, zap.String(logger.FieldStage, "filter")),
		Matcher: p.Matcher,
		Profile: p.profile(crit),
		Trace:   trace,
	}

	steps := p.steps()
	candidates, applied, err := filtering.Run(ctx, cfg, deps, steps, ts)
	if err != nil {
		return nil, fmt.Errorf("filtering tenders: %w", err)
	}
	log.Debug("filter steps", zap.Any("filters", filtering.Describe(steps)))
	if candidates.Len() == 0 {
		log.Warn("no tenders left after filtering")
	}
	if active == nil {
		active = candidates
	}

	if err := p.replace(ctx, layout.ActiveTab, 0, active.Rows(tender.ActiveColumns)); err != nil {
		return nil, fmt.Errorf("writing active tenders: %w", err)
	}

	scored := scoring.Deduplicate(scoring.ScoreAll(candidates, crit))
	log.Info("tenders scored", zap.String(logger.FieldStage, "score"), zap.Int("count", len(scored)))
	p.traceScored(scored)

	if err := p.replace(ctx, layout.NonRelativeTab, 0, scoring.Rows(scored)); err != nil {
		return nil, fmt.Errorf("writing non-relative scores: %w", err)
	}

	rank := ranking.Build(scored, crit.Weights, p.Options.RankingSize)
	log.Info("ranking built", zap.String(logger.FieldStage, "rank"), zap.Int("count", rank.Len()))
	p.traceRanking(rank)

	return &Result{
		Criteria:   crit,
		Active:     active,
		Candidates: candidates,
		Steps:      applied,
		Scored:     scored,
		Ranking:    rank,
	}, nil
}

// Publish replaces the ranking tab with the result, keeping its title cell.
func (p *Pipeline) Publish(ctx context.Context, result *Result) error {
	log := logger.WithFields(p.log(), logger.StageFields("publish", p.Options.Layout.RankingTab)...)
	tab := p.Options.Layout.RankingTab

	var rank *ranking.Ranking
	if result != nil {
		rank = result.Ranking
	}

	if p.Options.DryRun {
		log.Info("dry run, ranking not published", zap.Int("count", rank.Len()))
		return nil
	}

	// Row 2 is blanked and the table starts on row 3; the title in A1 is never written.
	rows := append([][]any{{}}, rank.Rows()...)
	if err := p.overwrite(ctx, tab, rankingBodyRow, rows); err != nil {
		return fmt.Errorf("writing ranking: %w", err)
	}

	log.Info("ranking published", zap.Int("count", rank.Len()))
	return nil
}

func (p *Pipeline) fetch(ctx context.Context) (*tender.Tenders, error) {
	log := logger.WithFields(p.log(), zap.String(logger.FieldStage, "download"))
	ts := tender.New()

	var errs []error
	enabled := 0

	if p.Options.MercadoPublico {
		enabled++
		got, err := p.Fetcher.FetchRecent(ctx, p.now(), p.Options.Months)
		if err != nil {
			log.Error("mercado publico download failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", mercadopublico.Source, err))
		} else {
			log.Info("mercado publico tenders downloaded", zap.Int("count", got.Len()))
			ts.Append(got)
		}
	}

	if p.Options.Sicep {
		enabled++
		got, err := ReadSicep(ctx, p.Sheet, p.Options.Layout.SicepTab, log)
		if err != nil {
			log.Error("sicep tab could not be read", zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", SicepSource, err))
		} else {
			log.Info("sicep tenders read", zap.Int("count", got.Len()))
			ts.Append(got)
		}
	}

	if enabled == 0 {
		return nil, errors.New("no tender source is enabled")
	}
	if len(errs) == enabled {
		return nil, fmt.Errorf("every tender source failed: %w", errors.Join(errs...))
	}

	return ts, nil
}

func (p *Pipeline) steps() []filtering.Filter {
	steps := filtering.Default()
	if !p.Options.HealthFilter {
		filtering.DisableByName(steps, filtering.StepHealthOrganisms, "disabled in config")
	}
	if !p.Options.ZeroDuration {
		filtering.DisableByName(steps, filtering.StepZeroDuration, "disabled in config")
	}
	if p.Options.AI == nil || !p.Options.AI.Enabled {
		filtering.DisableByName(steps, filtering.StepAIFit, "disabled in config")
	}
	return steps
}

func (p *Pipeline) profile(crit *criteria.Criteria) *ai.Profile {
	profile := &ai.Profile{}
	if p.Profile != nil {
		*profile = *p.Profile
	}

	profile.Rubros = nil
	for _, r := range crit.Rubros {
		profile.Rubros = append(profile.Rubros, r.Name)
	}

	profile.Keywords = make([]string, 0, len(crit.Keywords))
	for k := range crit.Keywords {
		profile.Keywords = append(profile.Keywords, k)
	}
	sort.Strings(profile.Keywords)

	return profile
}

// replace overwrites a tab from row (zero-based) down. Dry runs only log.
func (p *Pipeline) replace(ctx context.Context, tab string, row int, rows [][]any) error {
	log := logger.WithFields(p.log(), logger.StageFields("write", tab)...)

	if p.Options.DryRun {
		log.Info("dry run, tab not written", zap.Int("rows", len(rows)))
		return nil
	}

	if err := p.overwrite(ctx, tab, row, rows); err != nil {
		return err
	}

	log.Info("tab written", zap.Int("rows", len(rows)))
	return nil
}

// overwrite writes rows from row down in a single update, padded with blank cells over whatever the
// tab held before. A failed update leaves the tab as it was.
func (p *Pipeline) overwrite(ctx context.Context, tab string, row int, rows [][]any) error {
	old, err := p.Sheet.Values(ctx, tab, "")
	if err != nil {
		return fmt.Errorf("reading %s: %w", tab, err)
	}

	return p.Sheet.Update(ctx, tab, sheets.Range{}.Offset(row).String(), pad(rows, old, row))
}

// pad extends rows with empty cells so they cover old from row down.
func pad(rows [][]any, old [][]string, row int) [][]any {
	width := 0
	for _, r := range old {
		width = max(width, len(r))
	}

	height := max(len(rows), len(old)-row)
	padded := make([][]any, height)
	for i := range padded {
		var cells []any
		if i < len(rows) {
			cells = rows[i]
		}
		out := make([]any, max(len(cells), width))
		copy(out, cells)
		for j := len(cells); j < len(out); j++ {
			out[j] = ""
		}
		padded[i] = out
	}
	return padded
}

func (p *Pipeline) log() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
