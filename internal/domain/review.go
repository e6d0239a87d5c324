package domain

// MoveReview is the outcome of judging one played move.
type MoveReview struct {
	ID       string            `json:"id"`
	Move     string            `json:"move"`
	Mover    Side              `json:"mover"`
	Before   UnifiedEvaluation `json:"before"`
	After    UnifiedEvaluation `json:"after"`
	Judgment Judgment          `json:"judgment"`
}
