package scoring

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spigell/licitaciones-ranker/internal/criteria"
	"github.com/spigell/licitaciones-ranker/internal/tender"
	"github.com/spigell/licitaciones-ranker/internal/utils"
)

const (
	pointsPerKeyword = 10
	pointsPerRubro   = 5
	pointsPerProduct = 10
)

// AmountBase is the nominal amount score per tender type, later spread over the contract duration.
var AmountBase = map[string]float64{
	"L1": 0, "LE": 100, "LP": 1000, "LQ": 2000, "LR": 5000, "LS": 0,
	"E2": 0, "CO": 100, "B2": 1000, "H2": 2000, "I2": 5000,
}

// NonRelativeColumns is the header of the non-relative scores tab.
var NonRelativeColumns = []string{
	tender.ColumnCode, tender.ColumnName, tender.ColumnOrganism,
	"Puntaje Rubro", "Puntaje Palabra", "Puntaje Monto", "Puntaje Clientes", "Puntaje Total",
}

// Scored is a tender with its four sub-scores.
type Scored struct {
	Tender  *tender.Tender
	Rubro   float64
	Keyword float64
	Amount  float64
	Client  float64
	Total   float64
}

// Score computes every sub-score of a tender.
func Score(t *tender.Tender, c *criteria.Criteria) Scored {
	s := Scored{
		Tender:  t,
		Rubro:   Rubro(t, c.Rubros),
		Keyword: Keyword(t, c.Keywords, c.Blacklist),
		Amount:  Amount(t.Type, t.Duration),
		Client:  Client(t, c.Clients),
	}
	s.Total = s.Rubro + s.Keyword + s.Amount + s.Client
	return s
}

// ScoreAll scores every tender, keeping input order.
func ScoreAll(ts *tender.Tenders, c *criteria.Criteria) []Scored {
	scored := make([]Scored, 0, ts.Len())
	if ts == nil {
		return scored
	}
	for _, t := range ts.Items {
		scored = append(scored, Score(t, c))
	}
	return scored
}

// Keyword gives 10 points per distinct keyword found among the words of the name and description.
// Blacklisted words never count.
func Keyword(t *tender.Tender, keywords, blacklist map[string]struct{}) float64 {
	if len(keywords) == 0 {
		return 0
	}

	words := utils.Words(t.Normalized.Name + " " + t.Normalized.Description)

	hits := 0
	for w := range words {
		if _, banned := blacklist[w]; banned {
			continue
		}
		if _, ok := keywords[w]; ok {
			hits++
		}
	}
	return float64(hits * pointsPerKeyword)
}

// Rubro gives 5 points per configured rubro contained in the tender category and 10 points when
// the product code belongs to any rubro.
func Rubro(t *tender.Tender, rubros []criteria.RubroProducts) float64 {
	score := 0
	productHit := false

	for _, r := range rubros {
		if r.Name != "" && strings.Contains(t.Normalized.Category, r.Name) {
			score += pointsPerRubro
		}
		if t.Normalized.ProductCode != "" {
			if _, ok := r.Products[t.Normalized.ProductCode]; ok {
				productHit = true
			}
		}
	}

	if productHit {
		score += pointsPerProduct
	}
	return float64(score)
}

// Amount divides the type's base amount by the contract duration. Unknown types, unparseable,
// non-finite or non-positive durations score zero.
func Amount(tenderType, duration string) float64 {
	base := AmountBase[strings.ToUpper(strings.TrimSpace(tenderType))]

	d, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(duration), ",", "."), 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 0
	}
	return base / d
}

// Client returns the score of the buying organism in the client table.
func Client(t *tender.Tender, clients map[string]float64) float64 {
	if t.Normalized.Organism == "" {
		return 0
	}
	return clients[t.Normalized.Organism]
}

// Deduplicate keeps the best scored row of every tender code and sorts the result by total,
// highest first. Ties keep the order in which codes were first seen.
func Deduplicate(scored []Scored) []Scored {
	best := make(map[string]int, len(scored))
	unique := make([]Scored, 0, len(scored))

	for _, s := range scored {
		code := s.Tender.Normalized.Code
		if i, ok := best[code]; ok {
			if s.Total > unique[i].Total {
				unique[i] = s
			}
			continue
		}
		best[code] = len(unique)
		unique = append(unique, s)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Total > unique[j].Total
	})
	return unique
}

// Rows renders the non-relative scores tab, header first.
func Rows(scored []Scored) [][]any {
	rows := make([][]any, 0, len(scored)+1)

	header := make([]any, 0, len(NonRelativeColumns))
	for _, c := range NonRelativeColumns {
		header = append(header, c)
	}
	rows = append(rows, header)

	for _, s := range scored {
		rows = append(rows, []any{
			s.Tender.Code, s.Tender.Name, s.Tender.Organism,
			s.Rubro, s.Keyword, s.Amount, s.Client, s.Total,
		})
	}
	return rows
}
