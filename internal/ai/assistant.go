package ai

import (
	"context"

	"github.com/spigell/licitaciones-ranker/internal/tender"
)

// FitAssessment is a provider's verdict on one tender.
type FitAssessment struct {
	Fit    bool
	Score  float64
	Reason string
	Raw    string
}

// Profile describes what the bidding company sells. It is sent along with every tender.
type Profile struct {
	Description string   `json:"description,omitempty"`
	Rubros      []string `json:"rubros,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

type Matcher interface {
	Evaluate(ctx context.Context, profile *Profile, t *tender.Tender) (*FitAssessment, error)
}
