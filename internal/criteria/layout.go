package criteria

// Layout tells where the operator-maintained inputs live in the workbook.
type Layout struct {
	StartTab     string   `mapstructure:"start-tab" yaml:"start-tab" validate:"required"`
	Dates        string   `mapstructure:"dates" yaml:"dates" validate:"required"`
	Keywords     []string `mapstructure:"keywords" yaml:"keywords" validate:"required,min=1"`
	Rubros       []Rubro  `mapstructure:"rubros" yaml:"rubros" validate:"dive"`
	Weights      string   `mapstructure:"weights" yaml:"weights" validate:"required"`
	WeightOffset Offsets  `mapstructure:"weight-offsets" yaml:"weight-offsets"`

	ClientsTab     string `mapstructure:"clients-tab" yaml:"clients-tab" validate:"required"`
	ClientNames    string `mapstructure:"client-names" yaml:"client-names" validate:"required"`
	ClientStatuses string `mapstructure:"client-statuses" yaml:"client-statuses" validate:"required"`

	BlacklistTab   string `mapstructure:"blacklist-tab" yaml:"blacklist-tab" validate:"required"`
	BlacklistRange string `mapstructure:"blacklist" yaml:"blacklist" validate:"required"`

	SelectedTab   string `mapstructure:"selected-tab" yaml:"selected-tab" validate:"required"`
	SelectedRange string `mapstructure:"selected" yaml:"selected" validate:"required"`

	RankingTab     string `mapstructure:"ranking-tab" yaml:"ranking-tab" validate:"required"`
	NonRelativeTab string `mapstructure:"non-relative-tab" yaml:"non-relative-tab" validate:"required"`
	ActiveTab      string `mapstructure:"active-tab" yaml:"active-tab" validate:"required"`
	SicepTab       string `mapstructure:"sicep-tab" yaml:"sicep-tab"`
}

// Rubro points at a rubro name cell and the column of product codes that belongs to it.
type Rubro struct {
	Name     string `mapstructure:"name" yaml:"name" validate:"required"`
	Products string `mapstructure:"products" yaml:"products" validate:"required"`
}

// Offsets are row offsets inside the weights range.
type Offsets struct {
	Rubro   int `mapstructure:"rubro" yaml:"rubro" validate:"min=0"`
	Keyword int `mapstructure:"keyword" yaml:"keyword" validate:"min=0"`
	Client  int `mapstructure:"client" yaml:"client" validate:"min=0"`
	Amount  int `mapstructure:"amount" yaml:"amount" validate:"min=0"`
}

func DefaultLayout() Layout {
	return Layout{
		StartTab: "Inicio",
		Dates:    "C6:C7",
		Keywords: []string{"C27:C32", "F27:F35", "I27:I34"},
		Rubros: []Rubro{
			{Name: "C13", Products: "D14:D23"},
			{Name: "F13", Products: "G14:G23"},
			{Name: "I13", Products: "J14:J23"},
		},
		Weights:      "K11:K43",
		WeightOffset: Offsets{Rubro: 0, Keyword: 14, Client: 28, Amount: 32},

		ClientsTab:     "Clientes",
		ClientNames:    "D4:D",
		ClientStatuses: "E4:E",

		BlacklistTab:   "LNegra Palabras",
		BlacklistRange: "B2:B",

		SelectedTab:   "Selección",
		SelectedRange: "A4:A",

		RankingTab:     "Ranking",
		NonRelativeTab: "Ranking no relativo",
		ActiveTab:      "Licitaciones MP",
		SicepTab:       "Licitaciones Sicep",
	}
}

// Tabs lists every tab a run reads or writes. The SICEP tab is only required when that source is on.
func (l Layout) Tabs(withSicep bool) []string {
	tabs := []string{l.StartTab, l.ClientsTab, l.BlacklistTab, l.SelectedTab, l.RankingTab, l.NonRelativeTab, l.ActiveTab}
	if withSicep && l.SicepTab != "" {
		tabs = append(tabs, l.SicepTab)
	}

	seen := make(map[string]struct{}, len(tabs))
	unique := tabs[:0]
	for _, t := range tabs {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}
	return unique
}
