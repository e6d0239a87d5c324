package quality

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"chess_analysis/internal/domain"
)

var sides = []domain.Side{domain.White, domain.Black}

// engineMove builds the before/after evaluations of a move by mover. Scores
// are given from the mover's point of view; the after position is stored the
// way the engine reports it, for the opponent who is then to move.
func engineMove(mover, ref domain.Side, before, after domain.RawEvaluation) (domain.UnifiedEvaluation, domain.UnifiedEvaluation) {
	b := domain.CorrectEvaluation(before, mover, ref)
	a := domain.CorrectEvaluation(negate(after), mover.Opponent(), ref)
	return domain.UnifiedEvaluation{SideToMove: mover, Reference: ref, Engine: &b},
		domain.UnifiedEvaluation{SideToMove: mover.Opponent(), Reference: ref, Engine: &a}
}

func exactResult(o domain.Outcome, margin int) domain.ExactResult {
	r := domain.ExactResult{Outcome: o, Precise: true}
	if margin >= 0 {
		r.Margin = &margin
	}
	return r
}

// exactMove is engineMove for tablebase results; margin < 0 means unknown.
func exactMove(mover, ref domain.Side, before, after domain.ExactResult) (domain.UnifiedEvaluation, domain.UnifiedEvaluation) {
	after.Outcome = domain.FlipOutcome(after.Outcome)
	b := domain.CorrectExactResult(before, mover, ref)
	a := domain.CorrectExactResult(after, mover.Opponent(), ref)
	return domain.UnifiedEvaluation{SideToMove: mover, Reference: ref, Exact: &b},
		domain.UnifiedEvaluation{SideToMove: mover.Opponent(), Reference: ref, Exact: &a}
}

func TestExactTransitions(t *testing.T) {
	const (
		win     = domain.OutcomeWin
		cursed  = domain.OutcomeCursedWin
		draw    = domain.OutcomeDraw
		blessed = domain.OutcomeBlessedLoss
		loss    = domain.OutcomeLoss
	)
	tests := []struct {
		name     string
		before   domain.ExactResult
		after    domain.ExactResult
		want     domain.ExactJudgment
		critical bool
	}{
		{"win to draw", exactResult(win, 10), exactResult(draw, -1), domain.ExactCatastrophic, true},
		{"win to loss", exactResult(win, 10), exactResult(loss, 3), domain.ExactCatastrophic, true},
		{"cursed win to draw", exactResult(cursed, 110), exactResult(draw, -1), domain.ExactCatastrophic, true},
		{"draw to loss", exactResult(draw, -1), exactResult(loss, 20), domain.ExactMajorMistake, true},
		{"draw to blessed loss", exactResult(draw, -1), exactResult(blessed, 120), domain.ExactMajorMistake, true},
		{"win kept on fastest path", exactResult(win, 10), exactResult(win, 9), domain.ExactExcellent, false},
		{"win kept faster", exactResult(win, 10), exactResult(win, 5), domain.ExactExcellent, false},
		{"win kept slower", exactResult(win, 10), exactResult(win, 12), domain.ExactGood, false},
		{"win to cursed win", exactResult(win, 10), exactResult(cursed, 3), domain.ExactGood, false},
		{"cursed win to win", exactResult(cursed, 102), exactResult(win, 60), domain.ExactExcellent, false},
		{"win without margins", exactResult(win, -1), exactResult(win, -1), domain.ExactExcellent, false},
		{"draw to win", exactResult(draw, -1), exactResult(win, 30), domain.ExactExcellent, false},
		{"loss to win", exactResult(loss, 4), exactResult(win, 30), domain.ExactExcellent, false},
		{"draw kept", exactResult(draw, -1), exactResult(draw, -1), domain.ExactNeutral, false},
		{"loss saved", exactResult(loss, 8), exactResult(draw, -1), domain.ExactGood, false},
		{"loss unchanged", exactResult(loss, 10), exactResult(loss, 9), domain.ExactBestDefense, false},
		{"loss prolonged", exactResult(loss, 10), exactResult(loss, 12), domain.ExactBestDefense, false},
		{"loss shortened", exactResult(loss, 10), exactResult(loss, 4), domain.ExactWeakDefense, false},
		{"loss without margins", exactResult(loss, -1), exactResult(loss, -1), domain.ExactBestDefense, false},
		{"blessed loss to loss", exactResult(blessed, 110), exactResult(loss, 80), domain.ExactWeakDefense, false},
		{"loss to blessed loss", exactResult(loss, 90), exactResult(blessed, 101), domain.ExactBestDefense, false},
	}

	c := NewClassifier(DefaultThresholds())
	for _, tt := range tests {
		for _, mover := range sides {
			for _, ref := range sides {
				t.Run(fmt.Sprintf("%s/mover=%s/ref=%s", tt.name, mover, ref), func(t *testing.T) {
					before, after := exactMove(mover, ref, tt.before, tt.after)
					j := c.Classify(before, after, mover)
					assert.Equal(t, domain.SourceExact, j.Source)
					assert.Equal(t, tt.want, j.Exact)
					assert.Equal(t, tt.critical, j.Critical)
					assert.Equal(t, tt.critical, c.IsCriticalMistake(before, after))
					assert.False(t, j.HasQuality)
				})
			}
		}
	}
}

func TestEngineTransitions(t *testing.T) {
	cp := domain.CentipawnEvaluation
	tests := []struct {
		name     string
		before   domain.RawEvaluation
		after    domain.RawEvaluation
		quality  domain.MoveQuality
		critical bool
	}{
		{"winning reduced to drawish", cp(500), cp(50), domain.QualityBlunder, true},
		{"winning stays winning", cp(500), cp(400), domain.QualityInaccuracy, false},
		{"mate lost", domain.MateFromMoves(3), cp(300), domain.QualityBlunder, true},
		{"mate lengthened", domain.MateFromMoves(2), domain.MateFromMoves(5), domain.QualityGood, false},
		{"mate shortened", domain.MateFromMoves(5), domain.MateFromMoves(2), domain.QualityGood, false},
		{"mate created", cp(50), domain.MateFromMoves(4), domain.QualityExcellent, false},
		{"mate created from losing", cp(-600), domain.MateFromMoves(6), domain.QualityExcellent, false},
		{"walked into mate", cp(50), domain.MateFromMoves(-3), domain.QualityBlunder, true},
		{"mated sooner", domain.MateFromMoves(-4), domain.MateFromMoves(-2), domain.QualityGood, false},
		{"escaped mate", domain.MateFromMoves(-4), cp(-800), domain.QualityGood, false},
		{"already mated", domain.MateFromMoves(-1), domain.MateEvaluation(0), domain.QualityGood, false},
		{"sign flip", cp(100), cp(-100), domain.QualityMistake, true},
		{"small sign flip", cp(30), cp(-10), domain.QualityMistake, true},
		{"drawish to losing", cp(0), cp(-250), domain.QualityMistake, true},
		{"losing to lost", cp(-300), cp(-800), domain.QualityBlunder, false},
		{"big gain", cp(-300), cp(10), domain.QualityExcellent, false},
		{"unchanged", cp(0), cp(0), domain.QualityGood, false},
		{"slight loss", cp(40), cp(5), domain.QualityGood, false},
		{"inaccuracy", cp(150), cp(90), domain.QualityInaccuracy, false},
	}

	c := NewClassifier(DefaultThresholds())
	for _, tt := range tests {
		for _, mover := range sides {
			for _, ref := range sides {
				t.Run(fmt.Sprintf("%s/mover=%s/ref=%s", tt.name, mover, ref), func(t *testing.T) {
					before, after := engineMove(mover, ref, tt.before, tt.after)
					j := c.Classify(before, after, mover)
					assert.Equal(t, domain.SourceEngine, j.Source)
					assert.True(t, j.HasQuality)
					assert.Equal(t, tt.quality, j.Quality)
					assert.Equal(t, tt.critical, j.Critical)
					assert.Equal(t, tt.quality, c.ClassifyMove(before, after, mover))
					assert.Equal(t, tt.critical, c.IsCriticalMistake(before, after))
					assert.Equal(t, tt.after.Score-tt.before.Score, j.Delta)
				})
			}
		}
	}
}

func TestExactDecidesCriticalWhenPresent(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	before, after := engineMove(domain.White, domain.White, domain.CentipawnEvaluation(500), domain.CentipawnEvaluation(50))
	eb, ea := exactMove(domain.White, domain.White, exactResult(domain.OutcomeWin, 20), exactResult(domain.OutcomeWin, 19))
	before.Exact, after.Exact = eb.Exact, ea.Exact

	j := c.Classify(before, after, domain.White)
	assert.Equal(t, domain.SourceExact, j.Source)
	assert.Equal(t, domain.ExactExcellent, j.Exact)
	assert.False(t, j.Critical)
	assert.True(t, j.HasQuality)
	assert.Equal(t, domain.QualityBlunder, j.Quality)
}

func TestClassifyWithoutData(t *testing.T) {
	c := NewClassifier(Thresholds{})
	before, _ := engineMove(domain.White, domain.White, domain.CentipawnEvaluation(0), domain.CentipawnEvaluation(0))

	j := c.Classify(before, domain.UnifiedEvaluation{SideToMove: domain.Black}, domain.White)
	assert.Equal(t, domain.SourceNone, j.Source)
	assert.Equal(t, domain.QualityGood, j.Quality)
	assert.False(t, j.Critical)

	j = c.Classify(domain.UnifiedEvaluation{}, domain.UnifiedEvaluation{}, domain.Black)
	assert.Equal(t, domain.SourceNone, j.Source)
	assert.False(t, j.Critical)
}

func TestClassifyToleratesUnknownOutcomes(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	before, after := exactMove(domain.White, domain.White,
		domain.ExactResult{Outcome: domain.Outcome(42)},
		domain.ExactResult{Outcome: domain.Outcome(-9)})

	assert.NotPanics(t, func() {
		j := c.Classify(before, after, domain.White)
		assert.Equal(t, domain.ExactNeutral, j.Exact)
	})
}

func TestCustomThresholds(t *testing.T) {
	c := NewClassifier(Thresholds{Inaccuracy: 10, Mistake: 20, Blunder: 30, Excellent: 40, Winning: 1000})
	assert.Equal(t, 10, c.Thresholds().Inaccuracy)

	before, after := engineMove(domain.White, domain.White, domain.CentipawnEvaluation(500), domain.CentipawnEvaluation(50))
	j := c.Classify(before, after, domain.White)
	assert.Equal(t, domain.QualityBlunder, j.Quality)
	// 500 is below the custom winning band, so nothing dropped
	assert.False(t, j.Critical)
}
