package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"

	apperrors "chess_analysis/internal/errors"
)

// Side is a player colour.
type Side int8

const (
	White Side = iota
	Black
)

func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

func (s Side) String() string {
	if s == Black {
		return "b"
	}
	return "w"
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ParseSide accepts "w"/"b" as well as "white"/"black". Empty input means White.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "w", "white":
		return White, nil
	case "b", "black":
		return Black, nil
	}
	return White, fmt.Errorf("unknown side %q", s)
}

// Position is an immutable, validated board state identified by its canonical FEN.
type Position struct {
	fen            string
	sideToMove     Side
	halfMoveClock  int
	fullMoveNumber int
	pieces         int
}

// ParsePosition validates fen and returns its canonical form.
func ParsePosition(fen string) (Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return Position{}, fmt.Errorf("%w: empty fen", apperrors.ErrInvalidPosition)
	}

	opt, err := chess.FEN(fen)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidPosition, err)
	}

	return fromChessPosition(chess.NewGame(opt).Position())
}

func fromChessPosition(pos *chess.Position) (Position, error) {
	canonical := pos.String()
	fields := strings.Fields(canonical)
	if len(fields) != 6 {
		return Position{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidPosition, canonical)
	}

	halfMove, err := strconv.Atoi(fields[4])
	if err != nil {
		return Position{}, fmt.Errorf("%w: half-move clock %q", apperrors.ErrInvalidPosition, fields[4])
	}
	fullMove, err := strconv.Atoi(fields[5])
	if err != nil {
		return Position{}, fmt.Errorf("%w: move number %q", apperrors.ErrInvalidPosition, fields[5])
	}

	side := White
	if pos.Turn() == chess.Black {
		side = Black
	}

	return Position{
		fen:            canonical,
		sideToMove:     side,
		halfMoveClock:  halfMove,
		fullMoveNumber: fullMove,
		pieces:         len(pos.Board().SquareMap()),
	}, nil
}

// ApplyMove plays a move given in UCI coordinate notation (e2e4, e7e8q).
func ApplyMove(p Position, move string) (Position, error) {
	if p.IsZero() {
		return Position{}, apperrors.ErrInvalidPosition
	}

	opt, err := chess.FEN(p.fen)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidPosition, err)
	}
	game := chess.NewGame(opt)

	m, err := chess.UCINotation{}.Decode(game.Position(), strings.TrimSpace(move))
	if err != nil {
		return Position{}, fmt.Errorf("%w: %q: %v", apperrors.ErrIllegalMove, move, err)
	}
	if err := game.Move(m); err != nil {
		return Position{}, fmt.Errorf("%w: %q: %v", apperrors.ErrIllegalMove, move, err)
	}

	return fromChessPosition(game.Position())
}

// Follows reports whether p is reached from prev by one legal move.
func (p Position) Follows(prev Position) bool {
	if p.IsZero() || prev.IsZero() || p.sideToMove == prev.sideToMove {
		return false
	}
	opt, err := chess.FEN(prev.fen)
	if err != nil {
		return false
	}
	pos := chess.NewGame(opt).Position()
	for _, m := range pos.ValidMoves() {
		if pos.Update(m).String() == p.fen {
			return true
		}
	}
	return false
}

func (p Position) FEN() string          { return p.fen }
func (p Position) SideToMove() Side     { return p.sideToMove }
func (p Position) HalfMoveClock() int   { return p.halfMoveClock }
func (p Position) FullMoveNumber() int  { return p.fullMoveNumber }
func (p Position) PieceCount() int      { return p.pieces }
func (p Position) IsZero() bool         { return p.fen == "" }
func (p Position) String() string       { return p.fen }
func (p Position) Equal(o Position) bool { return p.fen == o.fen }
