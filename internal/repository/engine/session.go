package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chess_analysis/internal/domain"
	apperrors "chess_analysis/internal/errors"
)

// maxMultiPV is the protocol limit on parallel candidate lines.
const maxMultiPV = 500

// commandBuffer bounds commands queued for the writer goroutine. A session
// never has more than a handful outstanding.
const commandBuffer = 64

type Config struct {
	InitTimeout      time.Duration
	MaxInitAttempts  int
	RequestTimeout   time.Duration
	CandidateTimeout time.Duration
	DrainTimeout     time.Duration
	EvalDepth        int
	Threads          int
	HashMB           int
}

func DefaultConfig() Config {
	return Config{
		InitTimeout:      5 * time.Second,
		MaxInitAttempts:  3,
		RequestTimeout:   30 * time.Second,
		CandidateTimeout: 10 * time.Second,
		DrainTimeout:     2 * time.Second,
		EvalDepth:        18,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitTimeout <= 0 {
		c.InitTimeout = d.InitTimeout
	}
	if c.MaxInitAttempts <= 0 {
		c.MaxInitAttempts = d.MaxInitAttempts
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.CandidateTimeout <= 0 {
		c.CandidateTimeout = d.CandidateTimeout
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = d.DrainTimeout
	}
	if c.EvalDepth <= 0 {
		c.EvalDepth = d.EvalDepth
	}
	return c
}

// SessionError is returned while the session is Failed. It matches both
// ErrSessionFailed and the underlying reason with errors.Is.
type SessionError struct {
	Reason error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%v: %v", apperrors.ErrSessionFailed, e.Reason)
}

func (e *SessionError) Unwrap() []error {
	return []error{apperrors.ErrSessionFailed, e.Reason}
}

// initWait is shared by every caller waiting on one initialization.
type initWait struct {
	done chan struct{}
	err  error
}

// Session owns one engine process. Requests are queued FIFO and exactly one
// is in flight at a time. It moves through Idle -> Initializing -> Ready, and
// to Failed on lifecycle errors; Failed is left only through Stop/Reset.
type Session struct {
	cfg   Config
	log   *zap.SugaredLogger
	spawn SpawnFunc

	mu       sync.Mutex
	state    domain.EngineState
	reason   error
	epoch    uint64
	proc     Process
	commands chan string
	init     *initWait
	initTmr  *time.Timer
	queue    []*pendingRequest
	inflight *pendingRequest
	draining bool
	drainTmr *time.Timer
	// last position sent to the current process
	lastPos  domain.Position
}

func NewSession(cfg Config, spawn SpawnFunc, log *zap.SugaredLogger) *Session {
	return &Session{
		cfg:   cfg.withDefaults(),
		log:   log,
		spawn: spawn,
		state: domain.EngineIdle,
	}
}

// State returns the lifecycle state and, when Failed, its reason.
func (s *Session) State() (domain.EngineState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.reason
}

// Start returns once the session is Ready. Concurrent callers during
// initialization share one outcome; a Ready session returns immediately.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case domain.EngineReady:
		s.mu.Unlock()
		return nil
	case domain.EngineFailed:
		err := s.failedErrLocked()
		s.mu.Unlock()
		return err
	case domain.EngineIdle:
		s.beginInitLocked()
	}
	w := s.init
	s.mu.Unlock()

	if w == nil {
		return s.stateErr()
	}

	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) stateErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.EngineFailed {
		return s.failedErrLocked()
	}
	return nil
}

// Stop tears the session down from any state: the in-flight and queued
// requests resolve with ErrSessionStopped, the process is released before
// Stop returns, and the session is Idle again.
func (s *Session) Stop() {
	s.mu.Lock()
	prev := s.state
	proc := s.detachLocked(apperrors.ErrSessionStopped)
	s.state = domain.EngineIdle
	s.reason = nil
	s.mu.Unlock()

	if proc != nil {
		if err := proc.Close(); err != nil {
			s.log.Warnw("engine close failed", "error", err)
		}
	}
	s.log.Infow("engine session stopped", "previous_state", prev.String())
}

// Reset is Stop under the name callers use to leave the Failed state.
func (s *Session) Reset() {
	s.Stop()
}

// BestMove searches for budget and returns the engine's move. found is false
// when the engine has no move (terminal position) or answered with garbage.
func (s *Session) BestMove(ctx context.Context, pos domain.Position, budget time.Duration) (move string, found bool, err error) {
	if budget <= 0 {
		budget = time.Second
	}
	res, err := s.submit(ctx, &pendingRequest{
		kind:     kindBestMove,
		position: pos,
		budget:   budget,
		timeout:  budget + s.cfg.RequestTimeout,
	})
	if err != nil {
		return "", false, err
	}
	return res.move, res.found, nil
}

// Evaluate searches to depth (the configured depth when <= 0) and returns the
// last score reported before the search completed.
func (s *Session) Evaluate(ctx context.Context, pos domain.Position, depth int) (domain.RawEvaluation, error) {
	if depth <= 0 {
		depth = s.cfg.EvalDepth
	}
	res, err := s.submit(ctx, &pendingRequest{
		kind:     kindEvaluation,
		position: pos,
		depth:    depth,
		timeout:  s.cfg.RequestTimeout,
	})
	if err != nil {
		return domain.RawEvaluation{}, err
	}
	return res.eval, nil
}

// Candidates asks for count ranked lines. It returns whatever lines are known
// when the search completes or the candidate timeout elapses.
func (s *Session) Candidates(ctx context.Context, pos domain.Position, count int) ([]domain.Candidate, error) {
	if count < 1 {
		count = 1
	}
	if count > maxMultiPV {
		count = maxMultiPV
	}
	res, err := s.submit(ctx, &pendingRequest{
		kind:     kindCandidates,
		position: pos,
		depth:    s.cfg.EvalDepth,
		count:    count,
		timeout:  s.cfg.CandidateTimeout,
	})
	if err != nil {
		return nil, err
	}
	return res.candidates, nil
}

func (s *Session) submit(ctx context.Context, req *pendingRequest) (requestResult, error) {
	if req.position.IsZero() {
		return requestResult{}, apperrors.ErrInvalidPosition
	}
	if err := ctx.Err(); err != nil {
		return requestResult{}, err
	}
	req.id = uuid.New().String()
	req.done = make(chan requestResult, 1)

	s.mu.Lock()
	switch s.state {
	case domain.EngineFailed:
		err := s.failedErrLocked()
		s.mu.Unlock()
		return requestResult{}, err
	case domain.EngineIdle:
		s.beginInitLocked()
		if s.state == domain.EngineFailed {
			err := s.failedErrLocked()
			s.mu.Unlock()
			return requestResult{}, err
		}
	}
	s.queue = append(s.queue, req)
	s.pumpLocked()
	s.mu.Unlock()

	select {
	case res := <-req.done:
		return res, res.err
	case <-ctx.Done():
		// The request stays queued; its result is dropped on arrival.
		return requestResult{}, ctx.Err()
	}
}

func (s *Session) failedErrLocked() error {
	return &SessionError{Reason: s.reason}
}

// beginInitLocked spawns the process and sends the handshake. Spawn failures
// are retried up to MaxInitAttempts times before the session fails.
func (s *Session) beginInitLocked() {
	s.state = domain.EngineInitializing
	s.init = &initWait{done: make(chan struct{})}

	var (
		proc Process
		err  error
	)
	for attempt := 1; attempt <= s.cfg.MaxInitAttempts; attempt++ {
		proc, err = s.spawn()
		if err == nil {
			break
		}
		s.log.Errorw("engine spawn failed", "attempt", attempt, "error", err)
	}
	if err != nil {
		s.failLocked(fmt.Errorf("%w: %v", apperrors.ErrTooManyInitAttempts, err))
		return
	}

	s.epoch++
	epoch := s.epoch
	s.proc = proc
	s.commands = make(chan string, commandBuffer)

	go s.writeLoop(epoch, proc.Stdin(), s.commands)
	go s.readLoop(epoch, proc.Stdout())

	s.sendLocked("uci")
	s.initTmr = time.AfterFunc(s.cfg.InitTimeout, func() { s.onInitTimeout(epoch) })
	s.log.Infow("engine session initializing", "epoch", epoch)
}

func (s *Session) writeLoop(epoch uint64, w io.Writer, commands <-chan string) {
	bw := bufio.NewWriter(w)
	for cmd := range commands {
		if _, err := bw.WriteString(cmd + "\n"); err != nil {
			s.onProcessError(epoch, err)
			return
		}
		if err := bw.Flush(); err != nil {
			s.onProcessError(epoch, err)
			return
		}
	}
}

func (s *Session) readLoop(epoch uint64, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.handleLine(epoch, scanner.Text())
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	s.onProcessError(epoch, err)
}

// sendLocked queues a command for the writer. A full buffer means the writer
// is stuck, which is treated as a process failure.
func (s *Session) sendLocked(cmd string) {
	if s.commands == nil {
		return
	}
	select {
	case s.commands <- cmd:
	default:
		s.failLocked(fmt.Errorf("%w: command buffer full", apperrors.ErrProcessExited))
	}
}

func (s *Session) handleLine(epoch uint64, line string) {
	msg := ParseLine(line)

	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return
	}

	switch m := msg.(type) {
	case HandshakeAck:
		if s.state != domain.EngineInitializing {
			return
		}
		if s.cfg.Threads > 0 {
			s.sendLocked(fmt.Sprintf("setoption name Threads value %d", s.cfg.Threads))
		}
		if s.cfg.HashMB > 0 {
			s.sendLocked(fmt.Sprintf("setoption name Hash value %d", s.cfg.HashMB))
		}
		s.sendLocked("isready")
	case ReadyAck:
		if s.state == domain.EngineInitializing {
			s.becomeReadyLocked()
		}
	case Info:
		if s.inflight != nil && !s.draining {
			s.inflight.absorb(m)
		}
	case BestMove:
		if s.draining {
			s.stopDrainLocked()
			s.pumpLocked()
			return
		}
		if s.inflight == nil {
			s.log.Debugw("ignoring bestmove without request", "line", line)
			return
		}
		if m.Malformed {
			s.log.Warnw("malformed bestmove", "line", line, "request_id", s.inflight.id)
		}
		req := s.inflight
		s.inflight = nil
		req.resolve(req.complete(m))
		s.pumpLocked()
	case Unrecognized:
		s.log.Debugw("ignoring engine line", "line", m.Line)
	}
}

func (s *Session) becomeReadyLocked() {
	if s.initTmr != nil {
		s.initTmr.Stop()
		s.initTmr = nil
	}
	s.state = domain.EngineReady
	s.finishInitLocked(nil)
	s.log.Infow("engine session ready", "epoch", s.epoch, "queued", len(s.queue))
	s.pumpLocked()
}

func (s *Session) finishInitLocked(err error) {
	if s.init == nil {
		return
	}
	s.init.err = err
	close(s.init.done)
	s.init = nil
}

// pumpLocked dispatches the next queued request when the engine is idle.
func (s *Session) pumpLocked() {
	if s.state != domain.EngineReady || s.inflight != nil || s.draining || len(s.queue) == 0 {
		return
	}

	req := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	s.inflight = req

	multiPV := 1
	if req.kind == kindCandidates {
		multiPV = req.count
	}
	s.sendLocked(fmt.Sprintf("setoption name MultiPV value %d", multiPV))
	if !s.lastPos.IsZero() && !req.position.Equal(s.lastPos) && !req.position.Follows(s.lastPos) {
		s.sendLocked("ucinewgame")
	}
	s.lastPos = req.position
	s.sendLocked("position fen " + req.position.FEN())
	switch req.kind {
	case kindBestMove:
		s.sendLocked(fmt.Sprintf("go movetime %d", req.budget.Milliseconds()))
	default:
		s.sendLocked(fmt.Sprintf("go depth %d", req.depth))
	}

	epoch := s.epoch
	req.deadline = time.Now().Add(req.timeout)
	req.timer = time.AfterFunc(req.timeout, func() { s.onRequestTimeout(epoch, req) })
}

// onRequestTimeout resolves the in-flight request if it is still the one that
// armed the timer; a request that already resolved is left alone.
func (s *Session) onRequestTimeout(epoch uint64, req *pendingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || s.inflight != req {
		return
	}
	s.inflight = nil

	if req.kind == kindCandidates {
		req.resolve(requestResult{candidates: req.ranked()})
	} else {
		req.resolve(requestResult{err: apperrors.ErrRequestTimeout})
	}
	s.log.Warnw("engine request timed out", "request_id", req.id, "kind", req.kind.String(), "deadline", req.deadline)

	// The abandoned search still owes a bestmove; hold dispatch until it
	// arrives so it cannot be read as the next request's answer.
	s.sendLocked("stop")
	s.draining = true
	s.drainTmr = time.AfterFunc(s.cfg.DrainTimeout, func() { s.onDrainTimeout(epoch) })
}

func (s *Session) onDrainTimeout(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || !s.draining {
		return
	}
	s.log.Warnw("engine did not finish stopped search", "timeout", s.cfg.DrainTimeout)
	s.stopDrainLocked()
	s.pumpLocked()
}

func (s *Session) stopDrainLocked() {
	s.draining = false
	if s.drainTmr != nil {
		s.drainTmr.Stop()
		s.drainTmr = nil
	}
}

func (s *Session) onInitTimeout(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || s.state != domain.EngineInitializing {
		return
	}
	s.failLocked(apperrors.ErrHandshakeTimeout)
}

func (s *Session) onProcessError(epoch uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || s.state == domain.EngineIdle || s.state == domain.EngineFailed {
		return
	}
	s.failLocked(fmt.Errorf("%w: %v", apperrors.ErrProcessExited, err))
}

// failLocked moves to Failed, resolves everything pending with the failure
// and releases the process.
func (s *Session) failLocked(reason error) {
	s.log.Errorw("engine session failed", "from", s.state.String(), "reason", reason)

	s.reason = reason
	failure := &SessionError{Reason: reason}
	proc := s.detachLocked(failure)
	s.state = domain.EngineFailed

	if proc != nil {
		if err := proc.Close(); err != nil {
			s.log.Warnw("engine close failed", "error", err)
		}
	}
}

// detachLocked invalidates the current process epoch, resolves every pending
// request and waiter with cause, and hands back the process for closing.
func (s *Session) detachLocked(cause error) Process {
	s.epoch++

	if s.initTmr != nil {
		s.initTmr.Stop()
		s.initTmr = nil
	}
	s.stopDrainLocked()
	s.finishInitLocked(cause)

	if s.inflight != nil {
		s.inflight.resolve(requestResult{err: cause})
		s.inflight = nil
	}
	for _, req := range s.queue {
		req.resolve(requestResult{err: cause})
	}
	s.queue = nil

	if s.commands != nil {
		select {
		case s.commands <- "quit":
		default:
		}
		close(s.commands)
		s.commands = nil
	}

	proc := s.proc
	s.proc = nil
	s.lastPos = domain.Position{}
	return proc
}

// queued reports the number of requests waiting behind the in-flight one.
func (s *Session) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

type requestKind int

const (
	kindBestMove requestKind = iota
	kindEvaluation
	kindCandidates
)

func (k requestKind) String() string {
	return [...]string{"bestmove", "evaluation", "candidates"}[k]
}

type requestResult struct {
	move       string
	found      bool
	eval       domain.RawEvaluation
	candidates []domain.Candidate
	err        error
}

// pendingRequest is owned by the session queue; all fields are guarded by
// the session mutex.
type pendingRequest struct {
	id       string
	kind     requestKind
	position domain.Position
	depth    int
	budget   time.Duration
	count    int
	timeout  time.Duration
	deadline time.Time
	timer    *time.Timer
	done     chan requestResult
	resolved bool

	// latest and candidates hold the newest scores; a lowerbound or
	// upperbound score never replaces an exact one.
	latest      *domain.RawEvaluation
	latestExact bool
	candidates  map[int]domain.Candidate
	exactRanks  map[int]bool
}

func (r *pendingRequest) resolve(res requestResult) {
	if r.resolved {
		return
	}
	r.resolved = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.done <- res
}

func (r *pendingRequest) absorb(info Info) {
	if !info.HasScore {
		return
	}
	exact := info.Bound == ""

	switch r.kind {
	case kindEvaluation:
		if info.MultiPV > 1 || (!exact && r.latestExact) {
			return
		}
		eval := info.Eval
		r.latest = &eval
		r.latestExact = exact
	case kindCandidates:
		if info.MultiPV > r.count || len(info.PV) == 0 || !IsMoveToken(info.PV[0]) {
			return
		}
		if r.candidates == nil {
			r.candidates = make(map[int]domain.Candidate, r.count)
			r.exactRanks = make(map[int]bool, r.count)
		}
		if prev, ok := r.candidates[info.MultiPV]; ok && prev.Depth > info.Depth {
			return
		}
		if !exact && r.exactRanks[info.MultiPV] {
			return
		}
		r.exactRanks[info.MultiPV] = exact
		r.candidates[info.MultiPV] = domain.Candidate{
			Rank:  info.MultiPV,
			Move:  info.PV[0],
			Depth: info.Depth,
			PV:    info.PV,
			Eval:  info.Eval,
		}
	}
}

func (r *pendingRequest) complete(bm BestMove) requestResult {
	switch r.kind {
	case kindBestMove:
		if bm.None {
			return requestResult{}
		}
		return requestResult{move: bm.Move, found: true}
	case kindEvaluation:
		if r.latest == nil {
			return requestResult{err: fmt.Errorf("%w: search finished without a score", apperrors.ErrMalformedResponse)}
		}
		return requestResult{eval: *r.latest}
	default:
		return requestResult{candidates: r.ranked()}
	}
}

func (r *pendingRequest) ranked() []domain.Candidate {
	out := make([]domain.Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// IsLifecycleError reports whether err means the session itself is unusable
// rather than a single request having failed.
func IsLifecycleError(err error) bool {
	return errors.Is(err, apperrors.ErrSessionFailed) || errors.Is(err, apperrors.ErrSessionStopped)
}
