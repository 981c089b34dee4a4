package pipeline

import (
	"go.uber.org/zap"

	"github.com/spigell/licitaciones-ranker/internal/ranking"
	"github.com/spigell/licitaciones-ranker/internal/scoring"
	"github.com/spigell/licitaciones-ranker/internal/tender"
	"github.com/spigell/licitaciones-ranker/internal/utils"
)

// trace logs whether the traced tender code survived a stage.
func (p *Pipeline) trace(stage string, ts *tender.Tenders) {
	code := p.Options.TraceCode
	if code == "" {
		return
	}

	want := utils.Normalize(code)
	rows := 0
	for _, t := range ts.Items {
		if t.Normalized.Code == want {
			rows++
		}
	}

	fields := []zap.Field{zap.String("code", code), zap.String("stage", stage), zap.Int("rows", rows)}
	if rows == 0 {
		p.log().Info("traced tender not present", fields...)
		return
	}

	t := ts.FindByCode(code)
	p.log().Info("traced tender present", append(fields,
		zap.String("published", t.Published),
		zap.String("closes", t.Closes),
		zap.String("organism", t.Organism),
		zap.String("source", t.Source),
	)...)
}

func (p *Pipeline) traceScored(scored []scoring.Scored) {
	code := p.Options.TraceCode
	if code == "" {
		return
	}

	want := utils.Normalize(code)
	for _, s := range scored {
		if s.Tender.Normalized.Code != want {
			continue
		}
		p.log().Info("traced tender scored",
			zap.String("code", code),
			zap.Float64("rubro", s.Rubro),
			zap.Float64("keyword", s.Keyword),
			zap.Float64("amount", s.Amount),
			zap.Float64("client", s.Client),
			zap.Float64("total", s.Total),
		)
		return
	}
	p.log().Info("traced tender not present", zap.String("code", code), zap.String("stage", "score"))
}

func (p *Pipeline) traceRanking(r *ranking.Ranking) {
	code := p.Options.TraceCode
	if code == "" {
		return
	}

	e := r.Find(code)
	if e == nil {
		p.log().Info("traced tender not ranked", zap.String("code", code), zap.Int("ranked", r.Len()))
		return
	}
	p.log().Info("traced tender ranked",
		zap.String("code", code),
		zap.Int("position", e.Position),
		zap.Float64("final", ranking.Round(e.Final)),
	)
}
