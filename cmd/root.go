package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/licitaciones-ranker/internal/criteria"
	"github.com/spigell/licitaciones-ranker/internal/filtering"
	"github.com/spigell/licitaciones-ranker/internal/ranking"
)

const (
	app            = "licitaciones-ranker"
	defaultLogFile = app + ".log"
)

type Config struct {
	SpreadsheetID   string `mapstructure:"spreadsheet-id" yaml:"spreadsheet-id" validate:"required"`
	Credentials     string `mapstructure:"credentials" yaml:"credentials,omitempty"`
	CredentialsFile string `mapstructure:"credentials-file" yaml:"credentials-file,omitempty"`
	LogFile         string `mapstructure:"log-file" yaml:"log-file"`
	TraceCode       string `mapstructure:"trace-code" yaml:"trace-code,omitempty"`

	Ranking RankingConfig   `mapstructure:"ranking" yaml:"ranking"`
	Sources SourcesConfig   `mapstructure:"sources" yaml:"sources"`
	Filters FiltersConfig   `mapstructure:"filters" yaml:"filters"`
	Layout  criteria.Layout `mapstructure:"layout" yaml:"layout"`
	Portal  PortalConfig    `mapstructure:"portal" yaml:"portal,omitempty"`
	AI      *AIConfig       `mapstructure:"ai" yaml:"ai,omitempty"`
}

type RankingConfig struct {
	Size int `mapstructure:"size" yaml:"size" validate:"min=1,max=100"`
}

type SourcesConfig struct {
	MercadoPublico MercadoPublicoConfig `mapstructure:"mercado-publico" yaml:"mercado-publico"`
	SicepSheet     SicepSheetConfig     `mapstructure:"sicep-sheet" yaml:"sicep-sheet"`
}

type MercadoPublicoConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	BaseURL string        `mapstructure:"base-url" yaml:"base-url" validate:"required,url"`
	Months  int           `mapstructure:"months" yaml:"months" validate:"min=1,max=12"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type SicepSheetConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

type FiltersConfig struct {
	HealthOrganisms HealthOrganismsConfig `mapstructure:"health-organisms" yaml:"health-organisms"`
	ZeroDuration    ToggleConfig          `mapstructure:"zero-duration" yaml:"zero-duration"`
}

type HealthOrganismsConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Terms   []string `mapstructure:"terms" yaml:"terms,omitempty"`
}

type ToggleConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// PortalConfig holds the SICEP portal login of the extractor that fills the SICEP tab.
type PortalConfig struct {
	User     string `mapstructure:"user" yaml:"user,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
}

// Configured reports whether both halves of the login are present.
func (p PortalConfig) Configured() bool {
	return strings.TrimSpace(p.User) != "" && strings.TrimSpace(p.Password) != ""
}

type AIConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Provider        string        `mapstructure:"provider" yaml:"provider,omitempty"`
	MinimumFitScore float64       `mapstructure:"minimum-fit-score" yaml:"minimum-fit-score" validate:"min=0,max=1"`
	Profile         string        `mapstructure:"profile" yaml:"profile,omitempty"`
	Gemini          *GeminiConfig `mapstructure:"gemini" yaml:"gemini,omitempty"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file" yaml:"api-key-file,omitempty"`
	Model        string `mapstructure:"model" yaml:"model"`
	MaxRetries   int    `mapstructure:"max-retries" yaml:"max-retries" validate:"min=0"`
	MaxLogLength int    `mapstructure:"max-log-length" yaml:"max-log-length" validate:"min=0"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "licitaciones-ranker downloads public tenders, scores them against the criteria in a spreadsheet and publishes a ranking",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is licitaciones-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

// envBindings maps config keys onto the environment variables CI injects.
var envBindings = map[string]string{
	"credentials":            "GOOGLE_APPLICATION_CREDENTIALS_JSON",
	"credentials-file":       "GOOGLE_APPLICATION_CREDENTIALS_FILE",
	"spreadsheet-id":         "SPREADSHEET_ID",
	"portal.user":            "PORTAL_USER",
	"portal.password":        "PORTAL_PASSWORD",
	"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
	"log-file":               "RANKER_LOG_FILE",
}

func bindEnv() {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}
}

func setDefaults() {
	layout := criteria.DefaultLayout()

	viper.SetDefault("log-file", defaultLogFile)
	viper.SetDefault("ranking.size", ranking.DefaultSize)

	viper.SetDefault("sources.mercado-publico.enabled", true)
	viper.SetDefault("sources.mercado-publico.base-url", "https://transparenciachc.blob.core.windows.net/lic-da/")
	viper.SetDefault("sources.mercado-publico.months", 2)
	viper.SetDefault("sources.mercado-publico.timeout", 10*time.Minute)
	viper.SetDefault("sources.sicep-sheet.enabled", true)

	viper.SetDefault("filters.health-organisms.enabled", true)
	viper.SetDefault("filters.health-organisms.terms", filtering.DefaultHealthTerms)
	viper.SetDefault("filters.zero-duration.enabled", false)

	viper.SetDefault("layout.start-tab", layout.StartTab)
	viper.SetDefault("layout.dates", layout.Dates)
	viper.SetDefault("layout.keywords", layout.Keywords)
	rubros := make([]map[string]string, 0, len(layout.Rubros))
	for _, r := range layout.Rubros {
		rubros = append(rubros, map[string]string{"name": r.Name, "products": r.Products})
	}
	viper.SetDefault("layout.rubros", rubros)
	viper.SetDefault("layout.weights", layout.Weights)
	viper.SetDefault("layout.weight-offsets.rubro", layout.WeightOffset.Rubro)
	viper.SetDefault("layout.weight-offsets.keyword", layout.WeightOffset.Keyword)
	viper.SetDefault("layout.weight-offsets.client", layout.WeightOffset.Client)
	viper.SetDefault("layout.weight-offsets.amount", layout.WeightOffset.Amount)
	viper.SetDefault("layout.clients-tab", layout.ClientsTab)
	viper.SetDefault("layout.client-names", layout.ClientNames)
	viper.SetDefault("layout.client-statuses", layout.ClientStatuses)
	viper.SetDefault("layout.blacklist-tab", layout.BlacklistTab)
	viper.SetDefault("layout.blacklist", layout.BlacklistRange)
	viper.SetDefault("layout.selected-tab", layout.SelectedTab)
	viper.SetDefault("layout.selected", layout.SelectedRange)
	viper.SetDefault("layout.ranking-tab", layout.RankingTab)
	viper.SetDefault("layout.non-relative-tab", layout.NonRelativeTab)
	viper.SetDefault("layout.active-tab", layout.ActiveTab)
	viper.SetDefault("layout.sicep-tab", layout.SicepTab)

	viper.SetDefault("ai.enabled", false)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.minimum-fit-score", 0.6)
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-log-length", 200)
}

func initConfig() {
	// Only run and config need the configuration.
	if runCmd.CalledAs() == "" && configCmd.CalledAs() == "" {
		return
	}

	// A local .env is optional; CI passes real environment variables.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}
	bindEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit --config the defaults and the environment are enough.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}

	if err := validator.New().Struct(config); err != nil {
		return config, err
	}

	return config, nil
}
