package domain

import "encoding/json"

// MoveQuality grades a move from engine score deltas.
type MoveQuality int

const (
	QualityExcellent MoveQuality = iota
	QualityGood
	QualityInaccuracy
	QualityMistake
	QualityBlunder
)

func (q MoveQuality) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityInaccuracy:
		return "inaccuracy"
	case QualityMistake:
		return "mistake"
	case QualityBlunder:
		return "blunder"
	}
	return "good"
}

func (q MoveQuality) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.String())
}

// ExactJudgment grades a move from tablebase outcome transitions. It is a
// separate scale from MoveQuality and is never mapped onto it.
type ExactJudgment int

const (
	ExactNone ExactJudgment = iota
	ExactCatastrophic
	ExactMajorMistake
	ExactExcellent
	ExactGood
	ExactNeutral
	ExactBestDefense
	ExactWeakDefense
)

func (j ExactJudgment) String() string {
	if j < ExactNone || j > ExactWeakDefense {
		return "none"
	}
	return [...]string{
		"none", "catastrophic", "major-mistake", "excellent",
		"good", "neutral", "best-defense", "weak-defense",
	}[j]
}

func (j ExactJudgment) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.String())
}

// JudgmentSource tells which data decided a Judgment.
type JudgmentSource int

const (
	SourceNone JudgmentSource = iota
	SourceEngine
	SourceExact
)

func (s JudgmentSource) String() string {
	if s < SourceNone || s > SourceExact {
		return "none"
	}
	return [...]string{"none", "engine", "exact"}[s]
}

func (s JudgmentSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Judgment is the classifier output for one move.
//
// Quality is meaningful when HasQuality is set (both sides had engine data),
// Exact when it is not ExactNone (both sides had tablebase data). Critical
// follows the exact path when available, the engine path otherwise.
type Judgment struct {
	Source     JudgmentSource `json:"source"`
	Quality    MoveQuality    `json:"quality"`
	HasQuality bool           `json:"has_quality"`
	Exact      ExactJudgment  `json:"exact"`
	Critical   bool           `json:"critical"`
	// Delta is the centipawn change seen by the mover; negative is a loss.
	Delta int `json:"delta"`
}
