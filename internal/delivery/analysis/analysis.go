package analysis

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chess_analysis/internal/domain"
	apperrors "chess_analysis/internal/errors"
	"chess_analysis/internal/httpresponse"
	"chess_analysis/internal/utils"
)

type AnalysisUsecase interface {
	Evaluate(ctx context.Context, fen string, ref domain.Side, depth int) (domain.UnifiedEvaluation, error)
	BestMove(ctx context.Context, fen string, budget time.Duration) (string, bool, error)
	Candidates(ctx context.Context, fen string, count int, ref domain.Side) ([]domain.RankedCandidate, error)
	Review(ctx context.Context, fen, move string, ref domain.Side, depth int) (domain.MoveReview, error)
	StartEngine(ctx context.Context) error
	StopEngine()
	EngineState() (domain.EngineState, error)
}

type EvaluateRequest struct {
	FEN       string `json:"fen"`
	Reference string `json:"reference,omitempty"`
	Depth     int    `json:"depth,omitempty"`
}

type BestMoveRequest struct {
	FEN      string `json:"fen"`
	BudgetMs int    `json:"budget_ms,omitempty"`
}

type BestMoveResponse struct {
	Move  string `json:"move,omitempty"`
	Found bool   `json:"found"`
}

type CandidatesRequest struct {
	FEN       string `json:"fen"`
	Count     int    `json:"count"`
	Reference string `json:"reference,omitempty"`
}

type CandidatesResponse struct {
	Candidates []domain.RankedCandidate `json:"candidates"`
}

type ReviewRequest struct {
	FEN       string `json:"fen"`
	Move      string `json:"move"`
	Reference string `json:"reference,omitempty"`
	Depth     int    `json:"depth,omitempty"`
}

type EngineStateResponse struct {
	State  domain.EngineState `json:"state"`
	Reason string             `json:"reason,omitempty"`
}

const defaultBudget = time.Second

type AnalysisHandler struct {
	uc  AnalysisUsecase
	log *zap.SugaredLogger
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func NewAnalysisHandler(uc AnalysisUsecase, log *zap.SugaredLogger) *AnalysisHandler {
	return &AnalysisHandler{uc: uc, log: log}
}

// Routes mounts the analysis and engine endpoints on r.
func (h *AnalysisHandler) Routes(r chi.Router) {
	r.Route("/analysis", func(r chi.Router) {
		r.Post("/evaluate", h.HandleEvaluate)
		r.Post("/bestmove", h.HandleBestMove)
		r.Post("/candidates", h.HandleCandidates)
		r.Post("/review", h.HandleReview)
		r.Get("/ws", h.HandleStream)
	})
	r.Route("/engine", func(r chi.Router) {
		r.Get("/state", h.HandleEngineState)
		r.Post("/start", h.HandleEngineStart)
		r.Post("/stop", h.HandleEngineStop)
	})
}

func (h *AnalysisHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	ref, err := domain.ParseSide(req.Reference)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	ue, err := h.uc.Evaluate(r.Context(), req.FEN, ref, req.Depth)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, ue)
}

func (h *AnalysisHandler) HandleBestMove(w http.ResponseWriter, r *http.Request) {
	var req BestMoveRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	budget := defaultBudget
	if req.BudgetMs > 0 {
		budget = time.Duration(req.BudgetMs) * time.Millisecond
	}

	move, found, err := h.uc.BestMove(r.Context(), req.FEN, budget)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, BestMoveResponse{Move: move, Found: found})
}

func (h *AnalysisHandler) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	var req CandidatesRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	ref, err := domain.ParseSide(req.Reference)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	cands, err := h.uc.Candidates(r.Context(), req.FEN, req.Count, ref)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, CandidatesResponse{Candidates: cands})
}

func (h *AnalysisHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	ref, err := domain.ParseSide(req.Reference)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	review, err := h.uc.Review(r.Context(), req.FEN, req.Move, ref, req.Depth)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, review)
}

func (h *AnalysisHandler) HandleEngineState(w http.ResponseWriter, r *http.Request) {
	state, reason := h.uc.EngineState()
	resp := EngineStateResponse{State: state}
	if reason != nil {
		resp.Reason = reason.Error()
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, resp)
}

func (h *AnalysisHandler) HandleEngineStart(w http.ResponseWriter, r *http.Request) {
	if err := h.uc.StartEngine(r.Context()); err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.HandleEngineState(w, r)
}

func (h *AnalysisHandler) HandleEngineStop(w http.ResponseWriter, r *http.Request) {
	h.uc.StopEngine()
	h.HandleEngineState(w, r)
}

// HandleStream evaluates positions sent over a websocket, one answer per
// request message, in order.
func (h *AnalysisHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debugw("websocket read ended", "error", err)
			}
			return
		}

		var req EvaluateRequest
		var resp any
		if err := utils.DecodeJSON(msg, &req); err != nil {
			resp = httpresponse.Response[any]{Status: http.StatusBadRequest, Body: httpresponse.ErrorResponse{ErrorDescription: err.Error()}}
		} else if ref, err := domain.ParseSide(req.Reference); err != nil {
			resp = httpresponse.Response[any]{Status: http.StatusBadRequest, Body: httpresponse.ErrorResponse{ErrorDescription: err.Error()}}
		} else if ue, err := h.uc.Evaluate(ctx, req.FEN, ref, req.Depth); err != nil {
			resp = httpresponse.Response[any]{Status: statusFor(err), Body: httpresponse.ErrorResponse{ErrorDescription: err.Error()}}
		} else {
			resp = httpresponse.Response[any]{Status: http.StatusOK, Body: ue}
		}

		if err := conn.WriteJSON(resp); err != nil {
			h.log.Warnw("websocket write failed", "error", err)
			return
		}
	}
}

func (h *AnalysisHandler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Errorw("analysis request failed", "status", status, "error", err)
	} else {
		h.log.Debugw("analysis request rejected", "status", status, "error", err)
	}
	httpresponse.WriteErrorWithStatus(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidPosition), errors.Is(err, apperrors.ErrIllegalMove):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrRequestTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperrors.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, apperrors.ErrSessionFailed), errors.Is(err, apperrors.ErrSessionStopped),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
