package domain

import "encoding/json"

// MateScore is the centipawn magnitude mirrored into Score for mate evaluations,
// reduced by the mate distance so that shorter mates compare higher.
const MateScore = 30000

// maxCentipawns bounds plain centipawn scores below the mate band.
const maxCentipawns = MateScore - 1000

// RawEvaluation is an engine score relative to the side to move in the
// position it was computed for.
//
// For mates, Mate holds the distance in plies: positive when the side to move
// mates, negative when it is mated, zero when it is already checkmated. Score
// then carries ±(MateScore - |plies|), so its sign always tells the direction.
type RawEvaluation struct {
	Score int  `json:"score"`
	Mate  *int `json:"mate,omitempty"`
}

// CentipawnEvaluation builds a non-mate evaluation, clamped below the mate band.
func CentipawnEvaluation(cp int) RawEvaluation {
	return RawEvaluation{Score: clamp(cp, -maxCentipawns, maxCentipawns)}
}

// MateEvaluation builds a mate evaluation from a signed ply distance.
// plies > 0: the side to move mates; plies <= 0: the side to move is mated.
func MateEvaluation(plies int) RawEvaluation {
	plies = clamp(plies, -(MateScore - maxCentipawns), MateScore-maxCentipawns)
	m := plies
	if plies > 0 {
		return RawEvaluation{Score: MateScore - plies, Mate: &m}
	}
	return RawEvaluation{Score: -(MateScore + plies), Mate: &m}
}

// MateFromMoves converts a UCI "mate N" (full moves) into a ply-based evaluation.
func MateFromMoves(n int) RawEvaluation {
	switch {
	case n > 0:
		return MateEvaluation(2*n - 1)
	case n < 0:
		return MateEvaluation(2 * n)
	}
	return MateEvaluation(0)
}

func (r RawEvaluation) IsMate() bool { return r.Mate != nil }

// MatePlies returns the signed mate distance and whether a mate is present.
func (r RawEvaluation) MatePlies() (int, bool) {
	if r.Mate == nil {
		return 0, false
	}
	return *r.Mate, true
}

// Equal compares by value, including the mate distance.
func (r RawEvaluation) Equal(o RawEvaluation) bool {
	if r.Score != o.Score || r.IsMate() != o.IsMate() {
		return false
	}
	return r.Mate == nil || *r.Mate == *o.Mate
}

// AbsoluteEvaluation is an evaluation normalised to a fixed reference side.
// Only the perspective corrector in this package constructs it.
type AbsoluteEvaluation struct {
	eval      RawEvaluation
	reference Side
}

func (a AbsoluteEvaluation) Score() int { return a.eval.Score }

func (a AbsoluteEvaluation) Mate() (int, bool) { return a.eval.MatePlies() }

func (a AbsoluteEvaluation) Reference() Side { return a.reference }

func (a AbsoluteEvaluation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Score     int  `json:"score"`
		Mate      *int `json:"mate,omitempty"`
		Reference Side `json:"reference"`
	}{a.eval.Score, a.eval.Mate, a.reference})
}

// Candidate is one line of a multi-candidate search, ranked by the engine.
type Candidate struct {
	Rank  int           `json:"rank"`
	Move  string        `json:"move"`
	Depth int           `json:"depth"`
	PV    []string      `json:"pv,omitempty"`
	Eval  RawEvaluation `json:"eval"`
}

// RankedCandidate pairs a candidate with its reference-side evaluation.
type RankedCandidate struct {
	Candidate
	Absolute AbsoluteEvaluation `json:"absolute"`
}

// UnifiedEvaluation combines whatever evaluation sources answered for a position.
// Both fields nil is the valid "unavailable" state.
type UnifiedEvaluation struct {
	Position   string               `json:"fen"`
	SideToMove Side                 `json:"side_to_move"`
	Reference  Side                 `json:"reference"`
	Engine     *AbsoluteEvaluation  `json:"engine,omitempty"`
	Exact      *AbsoluteExactResult `json:"exact,omitempty"`
	EngineErr  string               `json:"engine_error,omitempty"`
	ExactErr   string               `json:"exact_error,omitempty"`
}

func (u UnifiedEvaluation) IsEmpty() bool {
	return u.Engine == nil && u.Exact == nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
