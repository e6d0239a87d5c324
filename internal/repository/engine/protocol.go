package engine

import (
	"regexp"
	"strconv"
	"strings"

	"chess_analysis/internal/domain"
)

// Message is one parsed line of engine output. The set of variants is closed:
// HandshakeAck, ReadyAck, Info, BestMove and Unrecognized.
type Message interface {
	isMessage()
}

// HandshakeAck is the "uciok" acknowledgement of the handshake.
type HandshakeAck struct{}

// ReadyAck is the "readyok" answer to "isready".
type ReadyAck struct{}

// Info is a streaming partial result.
type Info struct {
	Depth    int
	MultiPV  int
	HasScore bool
	Eval     domain.RawEvaluation
	// Bound is "lowerbound", "upperbound" or empty for exact scores.
	Bound string
	PV    []string
}

// BestMove is the terminal line of every search.
type BestMove struct {
	Move   string
	Ponder string
	// None is set for "(none)"/"0000" and for tokens that are not moves.
	None      bool
	Malformed bool
}

// Unrecognized is any other line: id/option banners, "info string", noise.
type Unrecognized struct {
	Line string
}

func (HandshakeAck) isMessage() {}
func (ReadyAck) isMessage()     {}
func (Info) isMessage()         {}
func (BestMove) isMessage()     {}
func (Unrecognized) isMessage() {}

var moveToken = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// IsMoveToken reports whether s is a move in coordinate notation.
func IsMoveToken(s string) bool {
	return moveToken.MatchString(s)
}

// ParseLine turns a raw output line into a Message. It never fails; anything
// it cannot make sense of becomes Unrecognized.
func ParseLine(line string) Message {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Unrecognized{Line: line}
	}

	switch fields[0] {
	case "uciok":
		return HandshakeAck{}
	case "readyok":
		return ReadyAck{}
	case "bestmove":
		return parseBestMove(fields[1:])
	case "info":
		return parseInfo(line, fields[1:])
	}
	return Unrecognized{Line: line}
}

func parseBestMove(fields []string) BestMove {
	if len(fields) == 0 {
		return BestMove{None: true}
	}

	token := fields[0]
	switch {
	case token == "(none)" || token == "0000":
		return BestMove{None: true}
	case !IsMoveToken(token):
		return BestMove{None: true, Malformed: true}
	}

	bm := BestMove{Move: token}
	if len(fields) >= 3 && fields[1] == "ponder" && IsMoveToken(fields[2]) {
		bm.Ponder = fields[2]
	}
	return bm
}

func parseInfo(line string, fields []string) Message {
	info := Info{MultiPV: 1}

	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "string":
			// free text until end of line
			return Unrecognized{Line: line}
		case "depth":
			if v, ok := intAt(fields, i+1); ok {
				info.Depth = v
				i++
			}
		case "multipv":
			if v, ok := intAt(fields, i+1); ok && v > 0 {
				info.MultiPV = v
				i++
			}
		case "score":
			if i+2 >= len(fields) {
				return Unrecognized{Line: line}
			}
			v, err := strconv.Atoi(fields[i+2])
			if err != nil {
				return Unrecognized{Line: line}
			}
			switch fields[i+1] {
			case "cp":
				info.Eval = domain.CentipawnEvaluation(v)
			case "mate":
				info.Eval = domain.MateFromMoves(v)
			default:
				return Unrecognized{Line: line}
			}
			info.HasScore = true
			i += 2
			if i+1 < len(fields) && (fields[i+1] == "lowerbound" || fields[i+1] == "upperbound") {
				info.Bound = fields[i+1]
				i++
			}
		case "pv":
			info.PV = append([]string(nil), fields[i+1:]...)
			i = len(fields)
		}
	}
	return info
}

func intAt(fields []string, i int) (int, bool) {
	if i >= len(fields) {
		return 0, false
	}
	v, err := strconv.Atoi(fields[i])
	if err != nil {
		return 0, false
	}
	return v, true
}
