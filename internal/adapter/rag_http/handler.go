// Package rag_http exposes retrieval, single-item evaluation and queued runs over HTTP.
package rag_http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"ragbench/internal/domain"
	"ragbench/internal/usecase"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Handler serves the /v1 API.
type Handler struct {
	retriever usecase.Retriever
	evaluator *usecase.Evaluator
	runs      domain.RunRepository
	defaults  usecase.EvaluationConfig
	logger    *slog.Logger
}

// NewHandler creates a handler. runs may be nil, which disables the /v1/runs endpoints.
func NewHandler(
	retriever usecase.Retriever,
	evaluator *usecase.Evaluator,
	runs domain.RunRepository,
	defaults usecase.EvaluationConfig,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		retriever: retriever,
		evaluator: evaluator,
		runs:      runs,
		defaults:  defaults,
		logger:    logger,
	}
}

// RetrieveRequest asks for the retrieval stage only. Unset fields use the server defaults.
type RetrieveRequest struct {
	Question      string `json:"question" validate:"required"`
	DenseTopK     *int   `json:"dense_top_k,omitempty" validate:"omitempty,gt=0"`
	RerankEnabled *bool  `json:"rerank_enabled,omitempty"`
	RerankTopN    *int   `json:"rerank_top_n,omitempty" validate:"omitempty,gte=0"`
}

// EvaluateRequest runs one item through the full pipeline.
type EvaluateRequest struct {
	ID         string   `json:"id"`
	Question   string   `json:"question" validate:"required"`
	GoldAnswer *string  `json:"gold_answer,omitempty"`
	TauDense   *float64 `json:"tau_dense,omitempty" validate:"omitempty,gte=0,lte=1"`
	TauRerank  *float64 `json:"tau_rerank,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// CreateRunRequest queues a benchmark or sweep over a bench file readable by the server.
type CreateRunRequest struct {
	Kind      domain.RunKind     `json:"kind" validate:"required,oneof=run sweep"`
	BenchPath string             `json:"bench_path" validate:"required"`
	TauDense  *float64           `json:"tau_dense,omitempty" validate:"omitempty,gte=0,lte=1"`
	TauRerank *float64           `json:"tau_rerank,omitempty" validate:"omitempty,gte=0,lte=1"`
	Grid      *usecase.SweepGrid `json:"grid,omitempty"`
}

// RunResponse is a stored run, with item results when requested.
type RunResponse struct {
	domain.RunRecord
	Items []domain.ItemResult `json:"items,omitempty"`
}

type errorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind,omitempty"`
}

// decode binds and validates req, returning the 400 body on failure.
func decode(c echo.Context, req any) *errorResponse {
	if err := c.Bind(req); err != nil {
		return &errorResponse{Error: "invalid request"}
	}
	if err := c.Validate(req); err != nil {
		return &errorResponse{Error: err.Error(), Kind: domain.ErrorKindConfiguration}
	}
	return nil
}

// Retrieve runs embed, search and rerank for one question.
// (POST /v1/retrieve)
func (h *Handler) Retrieve(c echo.Context) error {
	var req RetrieveRequest
	if bad := decode(c, &req); bad != nil {
		return c.JSON(http.StatusBadRequest, bad)
	}

	params := h.defaults.Retrieval
	if req.DenseTopK != nil {
		params.DenseTopK = *req.DenseTopK
	}
	if req.RerankEnabled != nil {
		params.RerankEnabled = *req.RerankEnabled
	}
	if req.RerankTopN != nil {
		params.RerankTopN = *req.RerankTopN
	}

	result, err := h.retriever.Retrieve(c.Request().Context(), req.Question, params)
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Evaluate runs one question through retrieve, gate, generate, judge and classify.
// Gateway failures are reported inside the item result.
// (POST /v1/evaluate)
func (h *Handler) Evaluate(c echo.Context) error {
	var req EvaluateRequest
	if bad := decode(c, &req); bad != nil {
		return c.JSON(http.StatusBadRequest, bad)
	}

	th := h.defaults.Thresholds
	if req.TauDense != nil {
		th.Dense = *req.TauDense
	}
	if req.TauRerank != nil {
		th.Rerank = *req.TauRerank
	}
	item := domain.BenchItem{ID: req.ID, Question: req.Question, GoldAnswer: req.GoldAnswer}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	result := h.evaluator.Evaluate(c.Request().Context(), item, th)
	return c.JSON(http.StatusOK, result)
}

// CreateRun queues a run for the background worker.
// (POST /v1/runs)
func (h *Handler) CreateRun(c echo.Context) error {
	if h.runs == nil {
		return c.JSON(http.StatusNotImplemented, errorResponse{Error: "run store not configured"})
	}
	var req CreateRunRequest
	if bad := decode(c, &req); bad != nil {
		return c.JSON(http.StatusBadRequest, bad)
	}

	cfg := usecase.QueuedRunConfig{Thresholds: h.defaults.Thresholds, Grid: req.Grid}
	if req.TauDense != nil {
		cfg.Thresholds.Dense = *req.TauDense
	}
	if req.TauRerank != nil {
		cfg.Thresholds.Rerank = *req.TauRerank
	}
	if req.Grid != nil {
		if err := req.Grid.Validate(); err != nil {
			return h.errorJSON(c, err)
		}
	}

	recorder := usecase.NewRunRecorder(h.runs, h.logger)
	run, err := recorder.Start(c.Request().Context(), req.Kind, domain.RunStatusQueued, req.BenchPath, cfg)
	if err != nil {
		return h.errorJSON(c, err)
	}
	h.logger.InfoContext(c.Request().Context(), "run_queued",
		slog.String("run_id", run.ID), slog.String("kind", string(run.Kind)))
	return c.JSON(http.StatusAccepted, map[string]string{"run_id": run.ID, "status": string(run.Status)})
}

// ListRuns returns the most recent runs.
// (GET /v1/runs)
func (h *Handler) ListRuns(c echo.Context) error {
	if h.runs == nil {
		return c.JSON(http.StatusNotImplemented, errorResponse{Error: "run store not configured"})
	}
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
		}
		limit = min(n, maxListLimit)
	}
	runs, err := h.runs.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return h.errorJSON(c, err)
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	return c.JSON(http.StatusOK, runs)
}

// GetRun returns one run. With ?items=true the item results of ?cell= are included.
// (GET /v1/runs/:id)
func (h *Handler) GetRun(c echo.Context) error {
	if h.runs == nil {
		return c.JSON(http.StatusNotImplemented, errorResponse{Error: "run store not configured"})
	}
	ctx := c.Request().Context()
	run, err := h.runs.GetRun(ctx, c.Param("id"))
	if err != nil {
		return h.errorJSON(c, err)
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "run not found"})
	}

	resp := RunResponse{RunRecord: *run}
	if withItems, _ := strconv.ParseBool(c.QueryParam("items")); withItems {
		items, err := h.runs.ListItems(ctx, run.ID, c.QueryParam("cell"))
		if err != nil {
			return h.errorJSON(c, err)
		}
		resp.Items = items
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) errorJSON(c echo.Context, err error) error {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrCollectionNotFound):
		status = http.StatusNotFound
	case kind != domain.ErrorKindUnknown:
		status = http.StatusBadGateway
	}
	h.logger.ErrorContext(c.Request().Context(), "request_failed",
		slog.String("path", c.Path()),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
		slog.Int("status", status))
	return c.JSON(status, errorResponse{Error: err.Error(), Kind: kind})
}
