package domain

// All side-dependent sign and outcome flips live here. Everything outside this
// file (and the move-quality classifier) handles evaluations through the
// Absolute* types and RelativeTo.

// CorrectEvaluation normalises a side-to-move evaluation to reference.
func CorrectEvaluation(raw RawEvaluation, sideToMove, reference Side) AbsoluteEvaluation {
	if sideToMove != reference {
		raw = negateEvaluation(raw)
	}
	return AbsoluteEvaluation{eval: copyEvaluation(raw), reference: reference}
}

// RelativeTo expresses the evaluation from side's point of view.
func (a AbsoluteEvaluation) RelativeTo(side Side) RawEvaluation {
	if side != a.reference {
		return negateEvaluation(a.eval)
	}
	return copyEvaluation(a.eval)
}

// CorrectExactResult normalises a side-to-move tablebase result to reference.
// The margin is a distance and keeps its value; only the outcome flips.
func CorrectExactResult(result ExactResult, sideToMove, reference Side) AbsoluteExactResult {
	if sideToMove != reference {
		result.Outcome = FlipOutcome(result.Outcome)
	}
	return AbsoluteExactResult{result: copyExact(result), reference: reference}
}

// RelativeTo expresses the result from side's point of view.
func (a AbsoluteExactResult) RelativeTo(side Side) ExactResult {
	r := copyExact(a.result)
	if side != a.reference {
		r.Outcome = FlipOutcome(r.Outcome)
	}
	return r
}

// FlipOutcome maps Win<->Loss and CursedWin<->BlessedLoss; Draw and any
// unknown value map to Draw.
func FlipOutcome(o Outcome) Outcome {
	switch o {
	case OutcomeWin:
		return OutcomeLoss
	case OutcomeLoss:
		return OutcomeWin
	case OutcomeCursedWin:
		return OutcomeBlessedLoss
	case OutcomeBlessedLoss:
		return OutcomeCursedWin
	}
	return OutcomeDraw
}

func negateEvaluation(r RawEvaluation) RawEvaluation {
	out := RawEvaluation{Score: -r.Score}
	if r.Mate != nil {
		m := -*r.Mate
		out.Mate = &m
	}
	return out
}

func copyEvaluation(r RawEvaluation) RawEvaluation {
	if r.Mate != nil {
		m := *r.Mate
		r.Mate = &m
	}
	return r
}

func copyExact(r ExactResult) ExactResult {
	if r.Margin != nil {
		m := *r.Margin
		r.Margin = &m
	}
	return r
}
