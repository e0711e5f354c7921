package meta

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helmtrade/helm/internal/core"
)

// Roster resolves a strategy name to its registration index. Registration
// order breaks final-score ties, so arbitration output is reproducible for
// identical inputs.
type Roster interface {
	Order(name string) int
}

// Arbiter combines scaling, weighting, hygiene and confluence into a final
// score per candidate and selects the winner.
type Arbiter struct {
	scaler     *Scaler
	weighter   *Weighter
	hygiene    *Hygiene
	confluence *Confluence
	roster     Roster
	logger     *zap.Logger
}

// NewArbiter creates an arbiter over the given scoring components.
func NewArbiter(scaler *Scaler, weighter *Weighter, hygiene *Hygiene, confluence *Confluence, roster Roster, logger ...*zap.Logger) *Arbiter {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Arbiter{
		scaler:     scaler,
		weighter:   weighter,
		hygiene:    hygiene,
		confluence: confluence,
		roster:     roster,
		logger:     l,
	}
}

// Decide scores every candidate and selects the one with the strictly
// greatest final score. Hygiene runs before confluence: confluence is the
// more expensive computation and must not run on disqualified candidates.
// The returned Decision carries every candidate with its score or rejection
// reasons; full visibility into the arbitration is required for audit, so
// nothing is omitted.
func (a *Arbiter) Decide(symbol string, candidates []core.SignalCandidate, scores core.RegimeScores, quality core.MarketQuality, higher core.RegimeScores) core.Decision {
	decision := core.Decision{
		ID:              uuid.NewString(),
		Symbol:          symbol,
		At:              time.Now(),
		Regime:          scores,
		Candidates:      make([]core.ScoredCandidate, 0, len(candidates)),
		SelectedIndex:   -1,
		RejectionCounts: make(map[core.RejectReason]int),
	}

	bestScore := 0.0
	bestOrder := 0

	for _, cand := range candidates {
		sc := core.ScoredCandidate{SignalCandidate: cand}
		sc.ScaledConfidence = a.scaler.ScaleFor(cand.Strategy, cand.Confidence)
		sc.StrategyWeight = a.weighter.Weight(cand.Strategy, scores.Label)

		if reasons := a.hygiene.Check(cand, quality); len(reasons) > 0 {
			sc.Rejected = true
			sc.RejectReason = reasons[0]
			sc.AllReasons = reasons
			for _, r := range reasons {
				decision.RejectionCounts[r]++
			}
			decision.Candidates = append(decision.Candidates, sc)
			continue
		}

		sc.ConfluenceMultiplier = a.confluence.Multiplier(cand, higher)
		if sc.ConfluenceMultiplier == 0 {
			sc.Rejected = true
			sc.RejectReason = core.RejectConfluence
			sc.AllReasons = []core.RejectReason{core.RejectConfluence}
			decision.RejectionCounts[core.RejectConfluence]++
			decision.Candidates = append(decision.Candidates, sc)
			continue
		}

		sc.FinalScore = sc.ScaledConfidence * sc.StrategyWeight * sc.ConfluenceMultiplier
		if sc.FinalScore <= 0 {
			sc.Rejected = true
			sc.RejectReason = core.RejectZeroScore
			sc.AllReasons = []core.RejectReason{core.RejectZeroScore}
			decision.RejectionCounts[core.RejectZeroScore]++
			decision.Candidates = append(decision.Candidates, sc)
			continue
		}

		idx := len(decision.Candidates)
		decision.Candidates = append(decision.Candidates, sc)

		order := a.roster.Order(cand.Strategy)
		switch {
		case sc.FinalScore > bestScore:
			decision.SelectedIndex = idx
			bestScore = sc.FinalScore
			bestOrder = order
		case sc.FinalScore == bestScore && decision.SelectedIndex >= 0 && order >= 0 && (bestOrder < 0 || order < bestOrder):
			decision.SelectedIndex = idx
			bestOrder = order
		}
	}

	if sel := decision.Selected(); sel != nil {
		decision.Candidates[decision.SelectedIndex].Selected = true
		a.logger.Debug("candidate selected",
			zap.String("symbol", symbol),
			zap.String("strategy", sel.Strategy),
			zap.Float64("final_score", sel.FinalScore),
		)
	} else {
		a.logger.Debug("no candidate survived arbitration",
			zap.String("symbol", symbol),
			zap.Int("candidates", len(candidates)),
		)
	}

	return decision
}
