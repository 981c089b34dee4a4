package criteria

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/licitaciones-ranker/internal/sheets"
	"github.com/spigell/licitaciones-ranker/internal/tender"
	"github.com/spigell/licitaciones-ranker/internal/utils"
)

const (
	ClientActive   = "vigente"
	ClientInactive = "no vigente"
)

// Criteria are the operator-maintained inputs of a ranking run, all in normalized form.
type Criteria struct {
	MinPublished time.Time
	MinClosing   time.Time

	Keywords  map[string]struct{}
	Blacklist map[string]struct{}
	Rubros    []RubroProducts
	Clients   map[string]float64
	Selected  map[string]struct{}
	Weights   Weights
}

// RubroProducts is one configured rubro with the product codes that score for it.
type RubroProducts struct {
	Name     string
	Products map[string]struct{}
}

// Weights are the fractions applied to each relative score.
type Weights struct {
	Rubro   float64 `json:"rubro"`
	Keyword float64 `json:"keyword"`
	Amount  float64 `json:"amount"`
	Client  float64 `json:"client"`
}

// Load reads every criterion from the workbook.
func Load(ctx context.Context, s sheets.Spreadsheet, layout Layout, logger *zap.Logger) (*Criteria, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Criteria{}
	var err error

	if c.MinPublished, c.MinClosing, err = loadDates(ctx, s, layout); err != nil {
		return nil, err
	}
	logger.Info("date window loaded",
		zap.Time("min_published", c.MinPublished),
		zap.Time("min_closing", c.MinClosing),
	)

	if c.Keywords, err = loadSet(ctx, s, layout.StartTab, layout.Keywords...); err != nil {
		return nil, fmt.Errorf("keywords: %w", err)
	}
	logger.Info("keywords loaded", zap.Strings("keywords", sortedKeys(c.Keywords)))

	if c.Blacklist, err = loadSet(ctx, s, layout.BlacklistTab, layout.BlacklistRange); err != nil {
		return nil, fmt.Errorf("blacklist: %w", err)
	}
	logger.Info("blacklist loaded", zap.Int("count", len(c.Blacklist)))

	if c.Rubros, err = loadRubros(ctx, s, layout, logger); err != nil {
		return nil, fmt.Errorf("rubros: %w", err)
	}

	if c.Clients, err = loadClients(ctx, s, layout, logger); err != nil {
		return nil, fmt.Errorf("clients: %w", err)
	}
	logger.Info("clients loaded", zap.Int("count", len(c.Clients)))

	if c.Weights, err = loadWeights(ctx, s, layout); err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}
	logger.Info("weights loaded",
		zap.Float64("rubro", c.Weights.Rubro),
		zap.Float64("keyword", c.Weights.Keyword),
		zap.Float64("client", c.Weights.Client),
		zap.Float64("amount", c.Weights.Amount),
	)

	if c.Selected, err = loadSet(ctx, s, layout.SelectedTab, layout.SelectedRange); err != nil {
		return nil, fmt.Errorf("selected tenders: %w", err)
	}
	logger.Info("selected tenders loaded", zap.Int("count", len(c.Selected)))

	return c, nil
}

func loadDates(ctx context.Context, s sheets.Spreadsheet, layout Layout) (time.Time, time.Time, error) {
	rows, err := s.Values(ctx, layout.StartTab, layout.Dates)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("reading dates: %w", err)
	}

	values := sheets.FirstColumn(rows)
	if len(values) < 2 || strings.TrimSpace(values[0]) == "" || strings.TrimSpace(values[1]) == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("minimum publication and closing dates are required in %s!%s", layout.StartTab, layout.Dates)
	}

	published, ok := tender.ParseDate(values[0])
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid minimum publication date %q", values[0])
	}
	closing, ok := tender.ParseDate(values[1])
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid minimum closing date %q", values[1])
	}

	return published, closing, nil
}

func loadSet(ctx context.Context, s sheets.Spreadsheet, tab string, ranges ...string) (map[string]struct{}, error) {
	batch, err := s.BatchValues(ctx, tab, ranges)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, rows := range batch {
		for _, row := range rows {
			for _, v := range utils.NormalizeAll(row) {
				set[v] = struct{}{}
			}
		}
	}
	return set, nil
}

func loadRubros(ctx context.Context, s sheets.Spreadsheet, layout Layout, logger *zap.Logger) ([]RubroProducts, error) {
	if len(layout.Rubros) == 0 {
		return nil, nil
	}

	ranges := make([]string, 0, len(layout.Rubros)*2)
	for _, r := range layout.Rubros {
		ranges = append(ranges, r.Name, r.Products)
	}

	batch, err := s.BatchValues(ctx, layout.StartTab, ranges)
	if err != nil {
		return nil, err
	}

	rubros := make([]RubroProducts, 0, len(layout.Rubros))
	for i, r := range layout.Rubros {
		name := utils.Normalize(sheets.FirstCell(batch[i*2]))
		if name == "" {
			logger.Warn("rubro cell is empty", zap.String("range", r.Name))
			continue
		}

		products := make(map[string]struct{})
		for _, v := range sheets.FirstColumn(batch[i*2+1]) {
			if code := tender.NormalizeProductCode(v); code != "" {
				products[code] = struct{}{}
			}
		}

		rubros = append(rubros, RubroProducts{Name: name, Products: products})
		logger.Info("rubro loaded", zap.String("rubro", name), zap.Int("products", len(products)))
	}

	return rubros, nil
}

func loadClients(ctx context.Context, s sheets.Spreadsheet, layout Layout, logger *zap.Logger) (map[string]float64, error) {
	batch, err := s.BatchValues(ctx, layout.ClientsTab, []string{layout.ClientNames, layout.ClientStatuses})
	if err != nil {
		return nil, err
	}

	names := sheets.FirstColumn(batch[0])
	statuses := sheets.FirstColumn(batch[1])
	if len(names) != len(statuses) {
		logger.Warn("client names and statuses differ in length",
			zap.Int("names", len(names)),
			zap.Int("statuses", len(statuses)),
		)
	}

	clients := make(map[string]float64, len(names))
	for i, name := range names {
		normalized := utils.Normalize(name)
		if normalized == "" {
			continue
		}
		status := ""
		if i < len(statuses) {
			status = statuses[i]
		}
		clients[normalized] = ClientScore(status)
	}
	return clients, nil
}

// ClientScore maps a client status to its score.
func ClientScore(status string) float64 {
	switch utils.Normalize(status) {
	case ClientActive:
		return 10
	case ClientInactive:
		return 5
	default:
		return 0
	}
}

func loadWeights(ctx context.Context, s sheets.Spreadsheet, layout Layout) (Weights, error) {
	rows, err := s.Values(ctx, layout.StartTab, layout.Weights)
	if err != nil {
		return Weights{}, err
	}
	values := sheets.FirstColumn(rows)

	get := func(name string, offset int) (float64, error) {
		if offset >= len(values) {
			return 0, fmt.Errorf("%s weight missing at offset %d of %s", name, offset, layout.Weights)
		}
		w, err := ParseWeight(values[offset])
		if err != nil {
			return 0, fmt.Errorf("%s weight: %w", name, err)
		}
		return w, nil
	}

	var w Weights
	if w.Rubro, err = get("rubro", layout.WeightOffset.Rubro); err != nil {
		return Weights{}, err
	}
	if w.Keyword, err = get("keyword", layout.WeightOffset.Keyword); err != nil {
		return Weights{}, err
	}
	if w.Client, err = get("client", layout.WeightOffset.Client); err != nil {
		return Weights{}, err
	}
	if w.Amount, err = get("amount", layout.WeightOffset.Amount); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// ParseWeight turns a percentage cell into a fraction: "40%" -> 0.4, "12,5" -> 0.125.
func ParseWeight(value string) (float64, error) {
	v := strings.TrimSpace(value)
	v = strings.TrimSpace(strings.TrimSuffix(v, "%"))
	v = strings.ReplaceAll(v, ",", ".")
	if v == "" {
		return 0, fmt.Errorf("empty weight")
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid weight %q", value)
	}
	return f / 100, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
