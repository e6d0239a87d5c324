package domain

import "encoding/json"

// Outcome is a tablebase result for the side to move.
type Outcome int8

const (
	OutcomeLoss        Outcome = -2
	OutcomeBlessedLoss Outcome = -1 // loss that the fifty-move rule turns into a draw
	OutcomeDraw        Outcome = 0
	OutcomeCursedWin   Outcome = 1 // win that the fifty-move rule turns into a draw
	OutcomeWin         Outcome = 2
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoss:
		return "loss"
	case OutcomeBlessedLoss:
		return "blessed-loss"
	case OutcomeCursedWin:
		return "cursed-win"
	case OutcomeWin:
		return "win"
	}
	return "draw"
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// Coarse folds cursed wins and blessed losses into Win and Loss.
func (o Outcome) Coarse() Outcome {
	switch o {
	case OutcomeWin, OutcomeCursedWin:
		return OutcomeWin
	case OutcomeLoss, OutcomeBlessedLoss:
		return OutcomeLoss
	}
	return OutcomeDraw
}

// ExactResult is a perfect-play result relative to the side to move.
// Margin is an unsigned distance in plies to the next zeroing move.
type ExactResult struct {
	Outcome Outcome `json:"outcome"`
	Margin  *int    `json:"margin,omitempty"`
	Precise bool    `json:"precise"`
}

// ExactLookup is the answer of the exact-result service for one position.
// A non-nil Err is the explicit "unavailable" state and carries the reason.
type ExactLookup struct {
	Result ExactResult
	Err    error
}

func (l ExactLookup) Available() bool { return l.Err == nil }

// AbsoluteExactResult is an ExactResult normalised to a fixed reference side.
type AbsoluteExactResult struct {
	result    ExactResult
	reference Side
}

func (a AbsoluteExactResult) Outcome() Outcome { return a.result.Outcome }

func (a AbsoluteExactResult) Margin() (int, bool) {
	if a.result.Margin == nil {
		return 0, false
	}
	return *a.result.Margin, true
}

func (a AbsoluteExactResult) Precise() bool { return a.result.Precise }

func (a AbsoluteExactResult) Reference() Side { return a.reference }

func (a AbsoluteExactResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Outcome   Outcome `json:"outcome"`
		Margin    *int    `json:"margin,omitempty"`
		Precise   bool    `json:"precise"`
		Reference Side    `json:"reference"`
	}{a.result.Outcome, a.result.Margin, a.result.Precise, a.reference})
}
