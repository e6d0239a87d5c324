// Package quality judges a played move from the evaluations of the position
// before and after it.
package quality

import (
	"chess_analysis/internal/domain"
)

// Thresholds are centipawn bands. Losses are measured from the mover's side.
type Thresholds struct {
	Inaccuracy int // loss >= Inaccuracy
	Mistake    int // loss >= Mistake
	Blunder    int // loss >= Blunder
	Excellent  int // gain >= Excellent
	// Winning separates winning/losing evaluations from drawish ones.
	Winning int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Inaccuracy: 50,
		Mistake:    200,
		Blunder:    400,
		Excellent:  200,
		Winning:    200,
	}
}

type Classifier struct {
	th Thresholds
}

// NewClassifier fills zero thresholds with the defaults.
func NewClassifier(th Thresholds) *Classifier {
	d := DefaultThresholds()
	if th.Inaccuracy <= 0 {
		th.Inaccuracy = d.Inaccuracy
	}
	if th.Mistake <= 0 {
		th.Mistake = d.Mistake
	}
	if th.Blunder <= 0 {
		th.Blunder = d.Blunder
	}
	if th.Excellent <= 0 {
		th.Excellent = d.Excellent
	}
	if th.Winning <= 0 {
		th.Winning = d.Winning
	}
	return &Classifier{th: th}
}

func (c *Classifier) Thresholds() Thresholds { return c.th }

// ClassifyMove grades the move that led from before to after.
func (c *Classifier) ClassifyMove(before, after domain.UnifiedEvaluation, mover domain.Side) domain.MoveQuality {
	return c.Classify(before, after, mover).Quality
}

// IsCriticalMistake reports whether the move from before to after damaged the
// mover's result. The mover is the side to move in before.
func (c *Classifier) IsCriticalMistake(before, after domain.UnifiedEvaluation) bool {
	return c.Classify(before, after, before.SideToMove).Critical
}

// Classify returns the full judgment. Tablebase results decide Critical when
// both positions have one; engine scores decide it otherwise.
func (c *Classifier) Classify(before, after domain.UnifiedEvaluation, mover domain.Side) domain.Judgment {
	j := domain.Judgment{Source: domain.SourceNone, Quality: domain.QualityGood}

	if before.Engine != nil && after.Engine != nil {
		q, critical, delta := c.engineJudgment(*before.Engine, *after.Engine, mover)
		j.Source = domain.SourceEngine
		j.Quality = q
		j.HasQuality = true
		j.Critical = critical
		j.Delta = delta
	}

	if before.Exact != nil && after.Exact != nil {
		ej := exactJudgment(*before.Exact, *after.Exact, mover)
		j.Source = domain.SourceExact
		j.Exact = ej
		j.Critical = ej == domain.ExactCatastrophic || ej == domain.ExactMajorMistake
	}
	return j
}

// afterForMover turns the after-move evaluation into the mover's view. The
// position after the move has the opponent to move, so it is read from the
// opponent's side and negated.
func afterForMover(after domain.AbsoluteEvaluation, mover domain.Side) domain.RawEvaluation {
	return negate(after.RelativeTo(mover.Opponent()))
}

func negate(r domain.RawEvaluation) domain.RawEvaluation {
	out := domain.RawEvaluation{Score: -r.Score}
	if m, ok := r.MatePlies(); ok {
		m = -m
		out.Mate = &m
	}
	return out
}

func (c *Classifier) engineJudgment(before, after domain.AbsoluteEvaluation, mover domain.Side) (domain.MoveQuality, bool, int) {
	b := before.RelativeTo(mover)
	a := afterForMover(after, mover)
	delta := a.Score - b.Score

	bMates, bMated := mateDirection(b)
	aMates, aMated := mateDirection(a)

	switch {
	case bMates && !aMates:
		// let a forced mate slip
		return atLeastMistake(c.byDelta(delta)), true, delta
	case aMates && !bMates:
		return domain.QualityExcellent, false, delta
	case aMated && !bMated:
		return atLeastMistake(c.byDelta(delta)), true, delta
	case b.IsMate() || a.IsMate():
		return domain.QualityGood, false, delta
	}

	critical := (b.Score > 0 && a.Score < 0) || c.band(a.Score) < c.band(b.Score)
	q := c.byDelta(delta)
	if critical {
		q = atLeastMistake(q)
	}
	return q, critical, delta
}

// mateDirection splits a mate score by who delivers it. The direction comes
// from Score so that "mated now" (zero plies) is read correctly.
func mateDirection(r domain.RawEvaluation) (mates, mated bool) {
	if !r.IsMate() {
		return false, false
	}
	return r.Score > 0, r.Score < 0
}

func (c *Classifier) byDelta(delta int) domain.MoveQuality {
	loss := -delta
	switch {
	case delta >= c.th.Excellent:
		return domain.QualityExcellent
	case loss >= c.th.Blunder:
		return domain.QualityBlunder
	case loss >= c.th.Mistake:
		return domain.QualityMistake
	case loss >= c.th.Inaccuracy:
		return domain.QualityInaccuracy
	}
	return domain.QualityGood
}

// band is 1 winning, 0 drawish, -1 losing.
func (c *Classifier) band(score int) int {
	switch {
	case score >= c.th.Winning:
		return 1
	case score <= -c.th.Winning:
		return -1
	}
	return 0
}

func atLeastMistake(q domain.MoveQuality) domain.MoveQuality {
	if q < domain.QualityMistake {
		return domain.QualityMistake
	}
	return q
}

func exactJudgment(before, after domain.AbsoluteExactResult, mover domain.Side) domain.ExactJudgment {
	b := before.RelativeTo(mover)
	a := after.RelativeTo(mover.Opponent())
	a.Outcome = domain.FlipOutcome(a.Outcome)

	from, to := b.Outcome.Coarse(), a.Outcome.Coarse()
	switch {
	case from == domain.OutcomeWin && to != domain.OutcomeWin:
		return domain.ExactCatastrophic
	case from == domain.OutcomeDraw && to == domain.OutcomeLoss:
		return domain.ExactMajorMistake
	case from != domain.OutcomeWin && to == domain.OutcomeWin:
		return domain.ExactExcellent
	case from == domain.OutcomeDraw:
		return domain.ExactNeutral
	case to == domain.OutcomeDraw:
		// loss saved
		return domain.ExactGood
	}

	cmp := marginChange(b, a)
	if from == domain.OutcomeWin {
		if cmp >= 0 {
			return domain.ExactExcellent
		}
		return domain.ExactGood
	}
	if cmp >= 0 {
		return domain.ExactBestDefense
	}
	return domain.ExactWeakDefense
}

// marginChange compares two results of the same coarse outcome from the
// mover's side: > 0 improved, 0 unchanged, < 0 worsened. A change between the
// fine categories (win vs cursed win, loss vs blessed loss) decides first.
// Otherwise the distances are compared after charging the ply just played;
// a winner wants it shorter and a loser wants it longer.
func marginChange(before, after domain.ExactResult) int {
	if before.Outcome != after.Outcome {
		// higher encodings are better for the mover
		if after.Outcome > before.Outcome {
			return 1
		}
		return -1
	}
	if before.Margin == nil || after.Margin == nil {
		return 0
	}

	d := (*after.Margin + 1) - *before.Margin
	if before.Outcome.Coarse() == domain.OutcomeWin {
		d = -d
	}
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	}
	return 0
}
