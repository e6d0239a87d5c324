package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess_analysis/internal/domain"
)

func TestParseLineAcks(t *testing.T) {
	assert.Equal(t, HandshakeAck{}, ParseLine("uciok"))
	assert.Equal(t, ReadyAck{}, ParseLine("readyok"))
	assert.Equal(t, Unrecognized{Line: "id name Stockfish 16"}, ParseLine("id name Stockfish 16"))
	assert.Equal(t, Unrecognized{Line: ""}, ParseLine(""))
	assert.Equal(t, Unrecognized{Line: "   "}, ParseLine("   "))
}

func TestParseLineBestMove(t *testing.T) {
	tests := []struct {
		line string
		want BestMove
	}{
		{"bestmove e2e4", BestMove{Move: "e2e4"}},
		{"bestmove e2e4 ponder e7e5", BestMove{Move: "e2e4", Ponder: "e7e5"}},
		{"bestmove e7e8q", BestMove{Move: "e7e8q"}},
		{"bestmove e2e4 ponder", BestMove{Move: "e2e4"}},
		{"bestmove (none)", BestMove{None: true}},
		{"bestmove 0000", BestMove{None: true}},
		{"bestmove", BestMove{None: true}},
		{"bestmove e9e4", BestMove{None: true, Malformed: true}},
		{"bestmove E2E4", BestMove{None: true, Malformed: true}},
		{"bestmove e7e8k", BestMove{None: true, Malformed: true}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLine(tt.line))
		})
	}
}

func TestParseLineInfo(t *testing.T) {
	msg := ParseLine("info depth 12 seldepth 18 multipv 2 score cp -34 upperbound nodes 1234 nps 99 time 12 pv d7d5 c2c4 e7e6")
	info, ok := msg.(Info)
	require.True(t, ok)

	assert.Equal(t, 12, info.Depth)
	assert.Equal(t, 2, info.MultiPV)
	assert.True(t, info.HasScore)
	assert.Equal(t, -34, info.Eval.Score)
	assert.False(t, info.Eval.IsMate())
	assert.Equal(t, "upperbound", info.Bound)
	assert.Equal(t, []string{"d7d5", "c2c4", "e7e6"}, info.PV)
}

func TestParseLineInfoMate(t *testing.T) {
	tests := []struct {
		line  string
		plies int
	}{
		{"info depth 20 score mate 3 pv f3f7", 5},
		{"info depth 20 score mate -2 pv g8h8", -4},
		{"info depth 0 score mate 0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			info, ok := ParseLine(tt.line).(Info)
			require.True(t, ok)
			plies, isMate := info.Eval.MatePlies()
			require.True(t, isMate)
			assert.Equal(t, tt.plies, plies)
			assert.Equal(t, 1, info.MultiPV)
		})
	}

	// mated now stays negative in score
	info := ParseLine("info depth 0 score mate 0").(Info)
	assert.Less(t, info.Eval.Score, 0)
	assert.Equal(t, domain.MateEvaluation(0), info.Eval)
}

func TestParseLineInfoWithoutScore(t *testing.T) {
	info, ok := ParseLine("info depth 5 currmove e2e4 currmovenumber 1").(Info)
	require.True(t, ok)
	assert.False(t, info.HasScore)
	assert.Equal(t, 5, info.Depth)
	assert.Nil(t, info.PV)
}

func TestParseLineInfoGarbage(t *testing.T) {
	for _, line := range []string{
		"info string NNUE evaluation using nn-5af11540bbfe.nnue enabled",
		"info depth 3 score cp",
		"info depth 3 score cp abc pv e2e4",
		"info depth 3 score wdl 10 pv e2e4",
	} {
		t.Run(line, func(t *testing.T) {
			assert.Equal(t, Unrecognized{Line: line}, ParseLine(line))
		})
	}
}

func TestIsMoveToken(t *testing.T) {
	assert.True(t, IsMoveToken("a1h8"))
	assert.True(t, IsMoveToken("b7b8n"))
	assert.False(t, IsMoveToken("a1h8x"))
	assert.False(t, IsMoveToken("a0a1"))
	assert.False(t, IsMoveToken("e2-e4"))
	assert.False(t, IsMoveToken(""))
}
