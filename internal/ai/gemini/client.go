package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/licitaciones-ranker/internal/logger"
)

const (
	Provider          = "gemini"
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 3
	// Quota errors asking to wait longer than this are not retried.
	maxQuotaDelay = 30 * time.Second
)

var retryDelay = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*s`)

type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client with retries on transient API errors.
type Generator struct {
	models     contentModels
	model      string
	maxRetries int
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &Generator{
		models:     client.Models,
		model:      model,
		maxRetries: maxRetries,
		logger:     logger.WithFields(log, logger.AIFields(Provider, model)...),
	}, nil
}

// GenerateContent sends the message with the given system instruction and returns the joined text parts.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	var config *genai.GenerateContentConfig
	if system = strings.TrimSpace(system); system != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		}
	}

	attempt := 0
	resp, err := backoff.Retry(ctx, func() (*genai.GenerateContentResponse, error) {
		attempt++
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(message), config)
		if err == nil {
			return resp, nil
		}
		if !temporary(err) {
			return nil, backoff.Permanent(err)
		}
		g.log().Warn("gemini request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		return nil, err
	}, backoff.WithBackOff(g.backOff()), backoff.WithMaxTries(uint(g.retries())))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	output := joinText(resp)
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func (g *Generator) log() *zap.Logger {
	if g.logger == nil {
		return zap.NewNop()
	}
	return g.logger
}

func (g *Generator) retries() int {
	if g.maxRetries <= 0 {
		return defaultMaxRetries
	}
	return g.maxRetries
}

func (g *Generator) backOff() backoff.BackOff {
	if g.newBackOff != nil {
		return g.newBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 10 * time.Second
	return b
}

// temporary reports whether the API error is a rate limit or server failure worth retrying.
func temporary(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if delay, ok := quotaDelay(apiErr.Message); ok && delay > maxQuotaDelay {
			return false
		}
		return true
	case apiErr.Code >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

func quotaDelay(message string) (time.Duration, bool) {
	m := retryDelay.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func joinText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}
