package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/licitaciones-ranker/internal/ai"
	"github.com/spigell/licitaciones-ranker/internal/ai/gemini"
	"github.com/spigell/licitaciones-ranker/internal/filtering"
	"github.com/spigell/licitaciones-ranker/internal/logger"
	"github.com/spigell/licitaciones-ranker/internal/mercadopublico"
	"github.com/spigell/licitaciones-ranker/internal/pipeline"
	"github.com/spigell/licitaciones-ranker/internal/secrets"
	"github.com/spigell/licitaciones-ranker/internal/sheets"
	"github.com/spigell/licitaciones-ranker/internal/tender"
)

const (
	PromptPublish          = "Publish ranking"
	PromptNo               = "No"
	PromptReportByOrganism = "Report by organismo"
	PromptRankingToFile    = "Dump ranking to file"

	credentialsEnv = "GOOGLE_APPLICATION_CREDENTIALS_JSON"
	geminiKeyEnv   = "GEMINI_API_KEY"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Publish the ranking?",
	Items: []string{PromptPublish, PromptNo, PromptReportByOrganism, PromptRankingToFile},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download, filter, score and rank tenders",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "publish the ranking without asking for confirmation")
	runCmd.Flags().Bool("dry-run", false, "compute everything but never write to the spreadsheet")
	runCmd.Flags().String("trace-code", "", "log whether the tender with this CodigoExterno survives every stage")
	runCmd.Flags().String("log-file", defaultLogFile, "rotating log file, empty disables it")

	viper.BindPFlag("dry-run", runCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("trace-code", runCmd.Flags().Lookup("trace-code"))
	viper.BindPFlag("log-file", runCmd.Flags().Lookup("log-file"))
}

// publisher writes a computed ranking.
type publisher interface {
	Publish(ctx context.Context, result *pipeline.Result) error
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), viper.GetString("log-file"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the licitaciones-ranker", zap.String("version", version))

	if dump, err := dumpConfig(config); err == nil {
		logger.Debug(fmt.Sprintf("starting with config: \n%s", dump))
	}

	p, err := preparePipeline(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the run", zap.Error(err))
	}

	result, err := p.Run(ctx)
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	logger.Info("ranking ready", zap.Int("count", result.Ranking.Len()), zap.Int("active", result.Active.Len()))

	action := PromptPublish
	for {
		var err error
		if cmd.Flag("auto-approve").Value.String() == "false" {
			_, action, err = prompt.Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}

		if err := handleAction(ctx, action, p, result, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, action string, p publisher, result *pipeline.Result, logger *zap.Logger) error {
	switch action {
	case PromptPublish:
		if err := p.Publish(ctx, result); err != nil {
			return fmt.Errorf("publishing ranking: %w", err)
		}
		return errExit
	case PromptNo:
		logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return errExit
	case PromptReportByOrganism:
		ranked := result.Ranking.Tenders()
		pretty, _ := json.MarshalIndent(ranked.ReportByOrganism(), "", "  ")
		logger.Info(string(pretty), zap.Int("tenders count", ranked.Len()))
		return nil
	case PromptRankingToFile:
		filename, err := tender.DumpToTmpFile("licitaciones-ranking-*.json", result.Ranking.Entries)
		if err != nil {
			return fmt.Errorf("dump ranking to file: %w", err)
		}
		logger.Info("dumping ranking to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func preparePipeline(ctx context.Context, config *Config, log *zap.Logger) (*pipeline.Pipeline, error) {
	credentials, err := resolveCredentials(config)
	if err != nil {
		return nil, err
	}

	sheet, err := sheets.NewGoogle(ctx, []byte(credentials), config.SpreadsheetID,
		logger.WithFields(log, zap.String(logger.FieldStage, "sheets")))
	if err != nil {
		return nil, fmt.Errorf("connecting to the spreadsheet: %w", err)
	}

	if config.Sources.SicepSheet.Enabled && !config.Portal.Configured() {
		log.Warn("sicep portal login is not configured, the sicep tab is read as the extractor last left it",
			zap.String("hint", "set PORTAL_USER and PORTAL_PASSWORD"))
	}

	mp := config.Sources.MercadoPublico
	fetcher := mercadopublico.New(log, mp.Timeout)
	if mp.BaseURL != "" {
		fetcher.BaseURL = mp.BaseURL
	}

	matcher, aiConfig := prepareAI(ctx, config.AI, log)

	return &pipeline.Pipeline{
		Sheet:   sheet,
		Fetcher: fetcher,
		Matcher: matcher,
		Profile: aiProfile(config.AI),
		Logger:  log,
		Options: pipeline.Options{
			Layout:         config.Layout,
			RankingSize:    config.Ranking.Size,
			MercadoPublico: mp.Enabled,
			Months:         mp.Months,
			Sicep:          config.Sources.SicepSheet.Enabled,
			HealthTerms:    config.Filters.HealthOrganisms.Terms,
			HealthFilter:   config.Filters.HealthOrganisms.Enabled,
			ZeroDuration:   config.Filters.ZeroDuration.Enabled,
			AI:             aiConfig,
			DryRun:         viper.GetBool("dry-run"),
			TraceCode:      strings.TrimSpace(config.TraceCode),
		},
	}, nil
}

func resolveCredentials(config *Config) (string, error) {
	if config == nil {
		return "", errors.New("config is required")
	}

	credentials, err := secrets.Load(secrets.Source{
		Name:  "google service account credentials",
		Value: config.Credentials,
		File:  config.CredentialsFile,
		Env:   credentialsEnv,
	})
	if err != nil {
		return "", fmt.Errorf("%w (set credentials-file or %s)", err, credentialsEnv)
	}
	return credentials, nil
}

// prepareAI builds the matcher for the ai_fit step. A matcher that cannot be built disables the step.
func prepareAI(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Matcher, *filtering.AIConfig) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	if cfg.Gemini == nil {
		logger.Warn("skipping AI filter", zap.String("reason", "gemini configuration is required when ai filter is enabled"))
		return nil, nil
	}

	matcher, err := newAIMatcher(ctx, cfg, logger)
	if err != nil {
		logger.Warn("skipping AI filter", zap.Error(err))
		return nil, nil
	}

	return matcher, &filtering.AIConfig{
		Enabled:         cfg.Enabled,
		Provider:        cfg.Provider,
		MinimumFitScore: cfg.MinimumFitScore,
		Gemini: &filtering.GeminiConfig{
			Model:        cfg.Gemini.Model,
			MaxRetries:   cfg.Gemini.MaxRetries,
			MaxLogLength: cfg.Gemini.MaxLogLength,
		},
	}
}

func newAIMatcher(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Matcher, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != gemini.Provider {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  geminiKeyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.WithFields(log, logger.AIFields(gemini.Provider, cfg.Gemini.Model)...).
		With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries))

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	minScore := cfg.MinimumFitScore
	if minScore < 0 {
		minScore = 0
	}

	matcherLogger := logger.WithFields(log, logger.AIFields(gemini.Provider, generator.Model())...).
		With(zap.Float64("minimum_fit_score", minScore))

	return gemini.NewMatcher(generator, minScore, cfg.Gemini.MaxLogLength, matcherLogger), nil
}

func aiProfile(cfg *AIConfig) *ai.Profile {
	if cfg == nil {
		return nil
	}
	return &ai.Profile{Description: strings.TrimSpace(cfg.Profile)}
}
