package tender

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/licitaciones-ranker/internal/utils"
)

// Source column names as they appear in the Mercado Público CSV files and in the active tenders tab.
const (
	ColumnCode        = "CodigoExterno"
	ColumnName        = "Nombre"
	ColumnStatusCode  = "CodigoEstado"
	ColumnPublishedAt = "FechaInicio"
	ColumnClosesAt    = "FechaCierre"
	ColumnDescription = "Descripcion"
	ColumnOrganism    = "NombreOrganismo"
	ColumnCategory    = "Rubro3"
	ColumnProduct     = "Nombre producto genrico"
	ColumnType        = "Tipo"
	ColumnClaims      = "CantidadReclamos"
	ColumnDuration    = "TiempoDuracionContrato"
	ColumnLink        = "Link"
	ColumnProductCode = "CodigoProductoONU"
)

// ActiveColumns is the column order of the active tenders tab.
var ActiveColumns = []string{
	ColumnCode, ColumnName, ColumnStatusCode, ColumnPublishedAt, ColumnClosesAt,
	ColumnDescription, ColumnOrganism, ColumnCategory, ColumnProduct, ColumnType,
	ColumnClaims, ColumnDuration, ColumnLink, ColumnProductCode,
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006 15:04:05",
	"02-01-2006",
	"2006/01/02",
}

// Tender is a single row of a tender listing. Mercado Público publishes one row per tender item,
// so several rows may share the same Code.
type Tender struct {
	Code        string `mapstructure:"CodigoExterno" json:"code"`
	Name        string `mapstructure:"Nombre" json:"name,omitempty"`
	StatusCode  string `mapstructure:"CodigoEstado" json:"status_code,omitempty"`
	Published   string `mapstructure:"FechaInicio" json:"published,omitempty"`
	Closes      string `mapstructure:"FechaCierre" json:"closes,omitempty"`
	Description string `mapstructure:"Descripcion" json:"description,omitempty"`
	Organism    string `mapstructure:"NombreOrganismo" json:"organism,omitempty"`
	Category    string `mapstructure:"Rubro3" json:"category,omitempty"`
	Product     string `mapstructure:"Nombre producto genrico" json:"product,omitempty"`
	Type        string `mapstructure:"Tipo" json:"type,omitempty"`
	Claims      string `mapstructure:"CantidadReclamos" json:"claims,omitempty"`
	Duration    string `mapstructure:"TiempoDuracionContrato" json:"duration,omitempty"`
	Link        string `mapstructure:"Link" json:"link,omitempty"`
	ProductCode string `mapstructure:"CodigoProductoONU" json:"product_code,omitempty"`

	Source      string        `mapstructure:"-" json:"source,omitempty"`
	PublishedAt time.Time     `mapstructure:"-" json:"-"`
	ClosesAt    time.Time     `mapstructure:"-" json:"-"`
	Normalized  Normalized    `mapstructure:"-" json:"-"`
	AI          *AIAssessment `mapstructure:"-" json:"ai,omitempty"`
}

// Normalized holds accent-free, lower-cased copies of the fields used for matching.
type Normalized struct {
	Code        string
	Name        string
	Description string
	Organism    string
	Category    string
	Product     string
	ProductCode string
}

// AIAssessment is the outcome of the optional AI relevance evaluation.
type AIAssessment struct {
	Fit    bool    `json:"fit"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Decode builds a tender from a header -> value row. Unknown columns are ignored.
func Decode(row map[string]string, source string) (*Tender, error) {
	trimmed := make(map[string]string, len(row))
	for k, v := range row {
		trimmed[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	var t Tender
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &t,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(trimmed); err != nil {
		return nil, fmt.Errorf("decode tender row: %w", err)
	}

	t.Source = source
	t.Normalize()

	return &t, nil
}

// Normalize fills the normalized shadow fields and parses the dates.
func (t *Tender) Normalize() {
	t.Normalized = Normalized{
		Code:        utils.Normalize(t.Code),
		Name:        utils.Normalize(t.Name),
		Description: utils.Normalize(t.Description),
		Organism:    utils.Normalize(t.Organism),
		Category:    utils.Normalize(t.Category),
		Product:     utils.Normalize(t.Product),
		ProductCode: NormalizeProductCode(t.ProductCode),
	}

	t.PublishedAt, _ = ParseDate(t.Published)
	t.ClosesAt, _ = ParseDate(t.Closes)
}

// NormalizeProductCode drops the float suffix spreadsheets and CSV exports add to numeric codes.
// "42131606.0" -> "42131606"
func NormalizeProductCode(code string) string {
	code = strings.TrimSpace(code)
	if idx := strings.Index(code, "."); idx != -1 {
		code = code[:idx]
	}
	return utils.Normalize(code)
}

// ParseDate parses the date formats found in the CSV exports and in operator-edited cells.
// Ambiguous numeric dates are read day first, the way the spreadsheet locale writes them.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}

	return time.Time{}, false
}

// Column returns the raw value stored under the given source column name.
func (t *Tender) Column(name string) string {
	switch name {
	case ColumnCode:
		return t.Code
	case ColumnName:
		return t.Name
	case ColumnStatusCode:
		return t.StatusCode
	case ColumnPublishedAt:
		return t.Published
	case ColumnClosesAt:
		return t.Closes
	case ColumnDescription:
		return t.Description
	case ColumnOrganism:
		return t.Organism
	case ColumnCategory:
		return t.Category
	case ColumnProduct:
		return t.Product
	case ColumnType:
		return t.Type
	case ColumnClaims:
		return t.Claims
	case ColumnDuration:
		return t.Duration
	case ColumnLink:
		return t.Link
	case ColumnProductCode:
		return t.ProductCode
	default:
		return ""
	}
}
