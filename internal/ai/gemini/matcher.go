package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/licitaciones-ranker/internal/ai"
	"github.com/spigell/licitaciones-ranker/internal/tender"
	"github.com/spigell/licitaciones-ranker/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

type Matcher struct {
	generator contentGenerator
	minScore  float64
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var systemPrompt string

const defaultMaxLogLength = 200

func NewMatcher(generator contentGenerator, minScore float64, maxLogLength int, logger *zap.Logger) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Matcher{
		generator: generator,
		minScore:  minScore,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// tenderPayload is what the model sees of a tender.
type tenderPayload struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Organism    string `json:"organism,omitempty"`
	Category    string `json:"category,omitempty"`
	Product     string `json:"product,omitempty"`
	ProductCode string `json:"product_code,omitempty"`
	Type        string `json:"type,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

func (m *Matcher) Evaluate(ctx context.Context, profile *ai.Profile, t *tender.Tender) (*ai.FitAssessment, error) {
	if profile == nil {
		return nil, fmt.Errorf("buyer profile is required")
	}
	if t == nil {
		return nil, fmt.Errorf("tender is required")
	}

	message, err := buildMessage(profile, t)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("gemini generate content request",
		zap.String("code", t.Code),
		zap.Int("message_length", utf8.RuneCountInString(message)),
		zap.String("message_preview", utils.TruncateForLog(message, m.maxLogLen)),
	)

	raw, err := m.generator.GenerateContent(ctx, systemPrompt, message)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("gemini generate content response",
		zap.String("code", t.Code),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)

	assessment, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	if m.minScore > 0 && assessment.Score < m.minScore {
		if assessment.Fit {
			m.logger.Debug("set fit to false by score threshold",
				zap.String("code", t.Code),
				zap.Float64("score", assessment.Score),
				zap.Float64("threshold", m.minScore),
			)
		}
		assessment.Fit = false
	}

	assessment.Raw = raw
	return assessment, nil
}

func buildMessage(profile *ai.Profile, t *tender.Tender) (string, error) {
	payload := struct {
		Profile *ai.Profile   `json:"profile"`
		Tender  tenderPayload `json:"tender"`
	}{
		Profile: profile,
		Tender: tenderPayload{
			Code:        t.Code,
			Name:        t.Name,
			Description: t.Description,
			Organism:    t.Organism,
			Category:    t.Category,
			Product:     t.Product,
			ProductCode: t.ProductCode,
			Type:        t.Type,
			Duration:    t.Duration,
		},
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal tender payload: %w", err)
	}
	return string(data), nil
}

func parseResponse(raw string) (*ai.FitAssessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		score = 0
	}

	return &ai.FitAssessment{
		Fit:    coerceBool(data["fit"]),
		Score:  score,
		Reason: coerceString(data["reason"]),
	}, nil
}

// extractJSON strips code fences and any prose around the first JSON object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "si", "sí":
			return true
		}
		return false
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(val), ",", "."), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
