package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/licitaciones-ranker/internal/ai"
	"github.com/spigell/licitaciones-ranker/internal/tender"
)

type aiFitFilter struct {
	toggle
	config *AIConfig
}

// NewAIFit creates the AI-based filtering step.
func NewAIFit() Filter {
	return &aiFitFilter{}
}

func (f *aiFitFilter) Name() string { return StepAIFit }

func (f *aiFitFilter) Validate(cfg *Config) error {
	f.config = nil
	if cfg != nil {
		f.config = cfg.AI
	}
	if !f.IsEnabled() {
		return nil
	}
	if cfg == nil || cfg.AI == nil {
		return fmt.Errorf("ai configuration is required when ai filter is enabled")
	}
	if cfg.AI.Gemini == nil {
		return fmt.Errorf("gemini configuration is required when ai filter is enabled")
	}
	if strings.TrimSpace(cfg.AI.Gemini.Model) == "" {
		return fmt.Errorf("gemini model is required when ai filter is enabled")
	}
	return nil
}

func (f *aiFitFilter) Apply(ctx context.Context, deps Deps, ts *tender.Tenders) (*tender.Tenders, Step, error) {
	initial := ts.Len()
	if deps.Matcher == nil {
		if deps.Logger != nil {
			deps.Logger.Info("ai matcher is not configured; skipping ai_fit filter")
		}
		return ts, Step{Initial: initial, Dropped: 0, Left: ts.Len()}, nil
	}
	if deps.Profile == nil {
		return ts, Step{}, fmt.Errorf("buyer profile is required for AI evaluation")
	}

	if err := evaluateTenders(ctx, deps.Logger, deps.Matcher, deps.Profile, ts); err != nil {
		return ts, Step{}, err
	}

	left := ts.Len()
	return ts, Step{Initial: initial, Dropped: initial - left, Left: left}, nil
}

func (f *aiFitFilter) Status() Status {
	details := map[string]string{}
	if f.config != nil {
		details["minimum_fit_score"] = fmt.Sprintf("%.2f", f.config.MinimumFitScore)
		if f.config.Gemini != nil {
			details["model"] = f.config.Gemini.Model
			details["max_retries"] = strconv.Itoa(f.config.Gemini.MaxRetries)
			details["max_log_length"] = strconv.Itoa(f.config.Gemini.MaxLogLength)
		}
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

// evaluateTenders asks the matcher once per tender code. Rejected codes are dropped; codes the
// provider could not evaluate are kept with the error recorded.
func evaluateTenders(ctx context.Context, logger *zap.Logger, matcher ai.Matcher, profile *ai.Profile, ts *tender.Tenders) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	verdicts := make(map[string]*tender.AIAssessment)
	for _, t := range ts.Items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, done := verdicts[t.Normalized.Code]; done {
			continue
		}

		assessment, err := matcher.Evaluate(ctx, profile, t)
		if err != nil {
			logger.Warn("AI evaluation failed",
				zap.String("code", t.Code),
				zap.Error(err),
			)
			verdicts[t.Normalized.Code] = &tender.AIAssessment{Error: err.Error()}
			continue
		}

		if assessment.Fit {
			logger.Info("tender approved by AI",
				zap.String("code", t.Code),
				zap.Float64("ai_score", assessment.Score),
			)
		} else {
			logger.Info("tender rejected by AI provider",
				zap.String("code", t.Code),
				zap.Float64("ai_score", assessment.Score),
				zap.String("reason", assessment.Reason),
			)
		}

		verdicts[t.Normalized.Code] = &tender.AIAssessment{
			Fit:    assessment.Fit,
			Score:  assessment.Score,
			Reason: assessment.Reason,
		}
	}

	initial := ts.Len()
	for _, t := range ts.Items {
		t.AI = verdicts[t.Normalized.Code]
	}
	ts.Exclude(func(t *tender.Tender) bool {
		return t.AI != nil && t.AI.Error == "" && !t.AI.Fit
	})

	if initial != ts.Len() {
		logger.Info("AI filtering completed",
			zap.Int("initial_tenders", initial),
			zap.Int("approved_tenders", ts.Len()),
		)
	}

	return nil
}
