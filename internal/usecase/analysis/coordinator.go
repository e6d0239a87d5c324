// Package analysis combines engine and tablebase answers into evaluations
// normalised to one reference side.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chess_analysis/internal/domain"
	apperrors "chess_analysis/internal/errors"
	"chess_analysis/internal/repository/engine"
)

type EngineSession interface {
	Start(ctx context.Context) error
	Stop()
	State() (domain.EngineState, error)
	BestMove(ctx context.Context, pos domain.Position, budget time.Duration) (string, bool, error)
	Evaluate(ctx context.Context, pos domain.Position, depth int) (domain.RawEvaluation, error)
	Candidates(ctx context.Context, pos domain.Position, count int) ([]domain.Candidate, error)
}

type ExactSource interface {
	Probe(ctx context.Context, pos domain.Position) domain.ExactLookup
}

type MoveClassifier interface {
	Classify(before, after domain.UnifiedEvaluation, mover domain.Side) domain.Judgment
}

type Coordinator struct {
	engine     EngineSession
	exact      ExactSource
	classifier MoveClassifier
	log        *zap.SugaredLogger
}

// NewCoordinator wires the sources together; exact may be nil to run on the
// engine alone.
func NewCoordinator(session EngineSession, exact ExactSource, classifier MoveClassifier, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		engine:     session,
		exact:      exact,
		classifier: classifier,
		log:        log,
	}
}

// Evaluate queries the engine and the tablebase concurrently. Only a
// malformed FEN is an error; a failed source leaves its field empty and its
// reason in the matching *Err field.
func (c *Coordinator) Evaluate(ctx context.Context, fen string, ref domain.Side, depth int) (domain.UnifiedEvaluation, error) {
	pos, err := domain.ParsePosition(fen)
	if err != nil {
		return domain.UnifiedEvaluation{}, err
	}
	return c.evaluatePosition(ctx, pos, ref, depth), nil
}

func (c *Coordinator) evaluatePosition(ctx context.Context, pos domain.Position, ref domain.Side, depth int) domain.UnifiedEvaluation {
	out := domain.UnifiedEvaluation{
		Position:   pos.FEN(),
		SideToMove: pos.SideToMove(),
		Reference:  ref,
	}

	var g errgroup.Group
	g.Go(func() error {
		raw, err := c.engine.Evaluate(ctx, pos, depth)
		if err != nil {
			c.logEngineErr("evaluate", pos, err)
			out.EngineErr = err.Error()
			return nil
		}
		abs := domain.CorrectEvaluation(raw, pos.SideToMove(), ref)
		out.Engine = &abs
		return nil
	})
	if c.exact != nil {
		g.Go(func() error {
			lookup := c.exact.Probe(ctx, pos)
			if !lookup.Available() {
				out.ExactErr = lookup.Err.Error()
				return nil
			}
			abs := domain.CorrectExactResult(lookup.Result, pos.SideToMove(), ref)
			out.Exact = &abs
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// BestMove returns the engine's move for fen within budget. found is false
// when the position has no move.
func (c *Coordinator) BestMove(ctx context.Context, fen string, budget time.Duration) (move string, found bool, err error) {
	pos, err := domain.ParsePosition(fen)
	if err != nil {
		return "", false, err
	}
	move, found, err = c.engine.BestMove(ctx, pos, budget)
	if err != nil {
		c.logEngineErr("bestmove", pos, err)
		return "", false, err
	}
	return move, found, nil
}

// Candidates returns up to count ranked lines, each also expressed for ref.
func (c *Coordinator) Candidates(ctx context.Context, fen string, count int, ref domain.Side) ([]domain.RankedCandidate, error) {
	pos, err := domain.ParsePosition(fen)
	if err != nil {
		return nil, err
	}
	cands, err := c.engine.Candidates(ctx, pos, count)
	if err != nil {
		c.logEngineErr("candidates", pos, err)
		return nil, err
	}

	out := make([]domain.RankedCandidate, 0, len(cands))
	for _, cand := range cands {
		out = append(out, domain.RankedCandidate{
			Candidate: cand,
			Absolute:  domain.CorrectEvaluation(cand.Eval, pos.SideToMove(), ref),
		})
	}
	return out, nil
}

// Review plays move from fen, evaluates both positions and judges the move.
func (c *Coordinator) Review(ctx context.Context, fen, move string, ref domain.Side, depth int) (domain.MoveReview, error) {
	before, err := domain.ParsePosition(fen)
	if err != nil {
		return domain.MoveReview{}, err
	}
	after, err := domain.ApplyMove(before, move)
	if err != nil {
		return domain.MoveReview{}, err
	}

	review := domain.MoveReview{
		ID:    uuid.New().String(),
		Move:  move,
		Mover: before.SideToMove(),
	}

	var g errgroup.Group
	g.Go(func() error {
		review.Before = c.evaluatePosition(ctx, before, ref, depth)
		return nil
	})
	g.Go(func() error {
		review.After = c.evaluatePosition(ctx, after, ref, depth)
		return nil
	})
	_ = g.Wait()

	review.Judgment = c.classifier.Classify(review.Before, review.After, review.Mover)
	c.log.Infow("move reviewed",
		"review_id", review.ID,
		"move", move,
		"source", review.Judgment.Source.String(),
		"quality", review.Judgment.Quality.String(),
		"critical", review.Judgment.Critical,
	)
	return review, nil
}

func (c *Coordinator) StartEngine(ctx context.Context) error {
	if err := c.engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	return nil
}

// StopEngine tears the session down; it also clears a Failed session.
func (c *Coordinator) StopEngine() {
	c.engine.Stop()
}

func (c *Coordinator) EngineState() (domain.EngineState, error) {
	return c.engine.State()
}

func (c *Coordinator) logEngineErr(op string, pos domain.Position, err error) {
	switch {
	case engine.IsLifecycleError(err):
		c.log.Errorw("engine unusable", "op", op, "fen", pos.FEN(), "error", err)
	case errors.Is(err, apperrors.ErrInvalidPosition):
		c.log.Debugw("engine rejected position", "op", op, "fen", pos.FEN())
	default:
		c.log.Warnw("engine request failed", "op", op, "fen", pos.FEN(), "error", err)
	}
}
