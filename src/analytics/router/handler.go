package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/eventmodels"
)

// SimulationService is the scheduler surface exposed over HTTP.
type SimulationService interface {
	Start(ctx context.Context) (*models.ControlResponse, error)
	Stop(ctx context.Context) (*models.ControlResponse, error)
	ForceTick(ctx context.Context) (*models.ControlResponse, error)
	Reset(ctx context.Context, scope models.ResetScope) (uuid.UUID, error)
	ResetStatus(id uuid.UUID) (*models.ResetJob, error)
	Status() *models.ProgressSnapshot
	Readiness(ctx context.Context) (*models.ImportReadiness, error)
	ResultsSummary(ctx context.Context, groupBy []models.GroupByField, filter models.ResultFilter) ([]*models.SummaryBucket, error)
	PerformanceMetrics(ctx context.Context, filter models.ResultFilter) ([]*models.StrategyMetrics, error)
	Runners(ctx context.Context) ([]*models.Runner, error)
	AddRunner(ctx context.Context, runner *models.Runner) (*models.Runner, error)
	RemoveRunner(ctx context.Context, id uint) error
	SetRunnerActive(ctx context.Context, id uint, active bool) (*models.Runner, error)
	CloseAllPositions(ctx context.Context) ([]*models.ResultRecord, error)
	CloseRunnerPositions(ctx context.Context, id uint) ([]*models.ResultRecord, error)
	Positions() []models.Position
}

type Handler struct {
	sim            SimulationService
	decoder        *schema.Decoder
	upgrader       websocket.Upgrader
	streamInterval time.Duration
}

type resultsQuery struct {
	GroupBy string `schema:"group_by"`
	Format  string `schema:"format"`
}

func setResponse(response interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		return fmt.Errorf("SetResponse: encode: %w", err)
	}

	return nil
}

func setErrorResponse(errType string, statusCode int, err error, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := NewErrorResponse(errType, err.Error())
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		return encodeErr
	}

	return nil
}

func handleError(caller string, err error, w http.ResponseWriter) {
	webErr := toWebError(err)
	if webErr.StatusCode >= 500 {
		log.Errorf("%s: %v", caller, err)
	} else {
		log.Debugf("%s: %v", caller, err)
	}

	setErrorResponse(webErr.Type(), webErr.StatusCode, err, w)
}

func badRequest(caller string, err error, w http.ResponseWriter) {
	handleError(caller, eventmodels.NewWebError(http.StatusBadRequest, "invalid_request", err), w)
}

func writeResponse(caller string, response interface{}, w http.ResponseWriter) {
	if err := setResponse(response, w); err != nil {
		log.Errorf("%s: failed to set response: %v", caller, err)
	}
}

func parseID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", mux.Vars(r)["id"])
	}

	return uint(id), nil
}

func (h *Handler) handleControl(fn func(ctx context.Context) (*models.ControlResponse, error), caller string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(r.Context())
		if err != nil {
			handleError(caller, err, w)
			return
		}

		writeResponse(caller, resp, w)
	}
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	writeResponse("handleState", models.NewControlResponse(h.sim.Status(), ""), w)
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeResponse("handleProgress", h.sim.Status(), w)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	var scope models.ResetScope
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest("handleReset", err, w)
		return
	}

	if len(body) > 0 {
		if err := json.Unmarshal(body, &scope); err != nil {
			badRequest("handleReset", fmt.Errorf("failed to decode reset scope: %w", err), w)
			return
		}
	} else if err := h.decoder.Decode(&scope, r.URL.Query()); err != nil {
		badRequest("handleReset", fmt.Errorf("failed to decode reset scope: %w", err), w)
		return
	}

	id, err := h.sim.Reset(r.Context(), scope)
	if err != nil {
		handleError("handleReset", err, w)
		return
	}

	writeResponse("handleReset", map[string]interface{}{
		"job_id": id,
		"status": models.ResetJobPending,
	}, w)
}

func (h *Handler) handleResetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		badRequest("handleResetStatus", fmt.Errorf("invalid job id: %w", err), w)
		return
	}

	job, err := h.sim.ResetStatus(id)
	if err != nil {
		handleError("handleResetStatus", err, w)
		return
	}

	writeResponse("handleResetStatus", job, w)
}

func (h *Handler) handleDatabaseStatus(w http.ResponseWriter, r *http.Request) {
	readiness, err := h.sim.Readiness(r.Context())
	if err != nil {
		handleError("handleDatabaseStatus", err, w)
		return
	}

	writeResponse("handleDatabaseStatus", readiness, w)
}

func (h *Handler) decodeFilter(r *http.Request) (models.ResultFilter, resultsQuery, error) {
	var filter models.ResultFilter
	var query resultsQuery
	if err := h.decoder.Decode(&filter, r.URL.Query()); err != nil {
		return filter, query, fmt.Errorf("failed to decode filter: %w", err)
	}

	if err := h.decoder.Decode(&query, r.URL.Query()); err != nil {
		return filter, query, fmt.Errorf("failed to decode query: %w", err)
	}

	return filter, query, nil
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	filter, query, err := h.decodeFilter(r)
	if err != nil {
		badRequest("handleResults", err, w)
		return
	}

	groupBy, err := models.ParseGroupBy(query.GroupBy)
	if err != nil {
		badRequest("handleResults", err, w)
		return
	}

	buckets, err := h.sim.ResultsSummary(r.Context(), groupBy, filter)
	if err != nil {
		handleError("handleResults", err, w)
		return
	}

	if query.Format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(200)
		if err := gocsv.Marshal(buckets, w); err != nil {
			log.Errorf("handleResults: failed to write csv: %v", err)
		}
		return
	}

	writeResponse("handleResults", map[string]interface{}{
		"group_by": groupBy,
		"buckets":  buckets,
	}, w)
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	filter, _, err := h.decodeFilter(r)
	if err != nil {
		badRequest("handleMetrics", err, w)
		return
	}

	metrics, err := h.sim.PerformanceMetrics(r.Context(), filter)
	if err != nil {
		handleError("handleMetrics", err, w)
		return
	}

	writeResponse("handleMetrics", metrics, w)
}

func (h *Handler) handleRunners(w http.ResponseWriter, r *http.Request) {
	runners, err := h.sim.Runners(r.Context())
	if err != nil {
		handleError("handleRunners", err, w)
		return
	}

	writeResponse("handleRunners", runners, w)
}

func (h *Handler) handleAddRunner(w http.ResponseWriter, r *http.Request) {
	runner := &models.Runner{Active: true}
	if err := json.NewDecoder(r.Body).Decode(runner); err != nil {
		badRequest("handleAddRunner", fmt.Errorf("failed to decode runner: %w", err), w)
		return
	}

	runner.ID = 0
	added, err := h.sim.AddRunner(r.Context(), runner)
	if err != nil {
		handleError("handleAddRunner", err, w)
		return
	}

	writeResponse("handleAddRunner", added, w)
}

func (h *Handler) handleRemoveRunner(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		badRequest("handleRemoveRunner", err, w)
		return
	}

	if err := h.sim.RemoveRunner(r.Context(), id); err != nil {
		handleError("handleRemoveRunner", err, w)
		return
	}

	writeResponse("handleRemoveRunner", map[string]interface{}{"deleted": id}, w)
}

func (h *Handler) handleRunnerActivation(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			badRequest("handleRunnerActivation", err, w)
			return
		}

		runner, err := h.sim.SetRunnerActive(r.Context(), id, active)
		if err != nil {
			handleError("handleRunnerActivation", err, w)
			return
		}

		writeResponse("handleRunnerActivation", runner, w)
	}
}

func (h *Handler) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeResponse("handlePositions", h.sim.Positions(), w)
}

func (h *Handler) handleCloseRunner(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		badRequest("handleCloseRunner", err, w)
		return
	}

	results, err := h.sim.CloseRunnerPositions(r.Context(), id)
	if err != nil {
		handleError("handleCloseRunner", err, w)
		return
	}

	writeResponse("handleCloseRunner", map[string]interface{}{
		"closed":  len(results),
		"results": results,
	}, w)
}

func (h *Handler) handleCloseAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.sim.CloseAllPositions(r.Context())
	if err != nil {
		handleError("handleCloseAll", err, w)
		return
	}

	writeResponse("handleCloseAll", map[string]interface{}{
		"closed":  len(results),
		"results": results,
	}, w)
}

func NewHandler(sim SimulationService, streamInterval time.Duration) *Handler {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	if streamInterval <= 0 {
		streamInterval = time.Second
	}

	return &Handler{
		sim:     sim,
		decoder: decoder,
		upgrader: websocket.Upgrader{
			WriteBufferSize: 1024,
			ReadBufferSize:  1024,
		},
		streamInterval: streamInterval,
	}
}

// SetupHandler registers the simulation routes on router. Each route is
// tagged with its pattern for the HTTP instrumentation.
func SetupHandler(router *mux.Router, h *Handler) {
	handle := func(method, pattern string, f http.HandlerFunc) {
		router.Handle(pattern, otelhttp.WithRouteTag(pattern, f)).Methods(method)
	}

	handle(http.MethodPost, "/simulation/start", h.handleControl(h.sim.Start, "handleStart"))
	handle(http.MethodPost, "/simulation/stop", h.handleControl(h.sim.Stop, "handleStop"))
	handle(http.MethodPost, "/simulation/tick", h.handleControl(h.sim.ForceTick, "handleTick"))
	handle(http.MethodGet, "/simulation/state", h.handleState)
	handle(http.MethodPost, "/simulation/reset", h.handleReset)
	handle(http.MethodGet, "/simulation/reset/{id}", h.handleResetStatus)
	handle(http.MethodGet, "/progress", h.handleProgress)
	handle(http.MethodGet, "/progress/stream", h.handleProgressStream)
	handle(http.MethodGet, "/database/status", h.handleDatabaseStatus)
	handle(http.MethodGet, "/results", h.handleResults)
	handle(http.MethodGet, "/results/metrics", h.handleMetrics)
	handle(http.MethodGet, "/runners", h.handleRunners)
	handle(http.MethodPost, "/runners", h.handleAddRunner)
	handle(http.MethodDelete, "/runners/{id}", h.handleRemoveRunner)
	handle(http.MethodPost, "/runners/{id}/activate", h.handleRunnerActivation(true))
	handle(http.MethodPost, "/runners/{id}/deactivate", h.handleRunnerActivation(false))
	handle(http.MethodPost, "/runners/{id}/close", h.handleCloseRunner)
	handle(http.MethodGet, "/positions", h.handlePositions)
	handle(http.MethodPost, "/positions/close-all", h.handleCloseAll)
}
