package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/licitaciones-ranker/internal/ai"
	"github.com/spigell/licitaciones-ranker/internal/criteria"
	"github.com/spigell/licitaciones-ranker/internal/tender"
)

// Step names, in the order Default runs them.
const (
	StepDateWindow      = "date_window"
	StepSelected        = "selected"
	StepHealthOrganisms = "health_organisms"
	StepZeroDuration    = "zero_duration"
	StepAIFit           = "ai_fit"
)

// Filter represents a single filtering step applied to tenders.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, ts *tender.Tenders) (*tender.Tenders, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger  *zap.Logger
	Matcher ai.Matcher
	Profile *ai.Profile

	// Trace is called after every applied step with the step name.
	Trace func(stage string, ts *tender.Tenders)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Applied is a Step tagged with the filter that produced it.
type Applied struct {
	Name string
	Step
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	Criteria    *criteria.Criteria
	HealthTerms []string
	AI          *AIConfig
}

// AIConfig stores AI-related configuration used by the filters.
type AIConfig struct {
	Enabled         bool
	Provider        string
	MinimumFitScore float64
	Gemini          *GeminiConfig
}

// GeminiConfig stores Gemini provider configuration.
type GeminiConfig struct {
	Model        string
	MaxRetries   int
	MaxLogLength int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns every known step in the order they run.
func Default() []Filter {
	return []Filter{
		NewDateWindow(),
		NewSelected(),
		NewHealthOrganisms(),
		NewZeroDuration(),
		NewAIFit(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially and reports what every enabled step dropped.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, ts *tender.Tenders) (*tender.Tenders, []Applied, error) {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	applied := make([]Applied, 0, len(steps))
	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, ts)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		ts = next
		applied = append(applied, Applied{Name: step.Name(), Step: info})

		if deps.Trace != nil {
			deps.Trace(step.Name(), ts)
		}
	}

	return ts, applied, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// toggle is embedded by steps that can be switched off from config.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }
