/*
handlers.go - HTTP API handlers for the cash-flow engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response, JSON
  serialization, request validation, and delegates everything else to the
  engine facade, which serializes the actual work.

ENDPOINTS:
  Movements:
    GET    /api/movements                 List (filterable)
    POST   /api/movements                 Manual entry
    GET    /api/movements/{id}            Get one
    PUT    /api/movements/{id}            Update editable fields
    DELETE /api/movements/{id}            Delete
    POST   /api/movements/{id}/pay        pending -> paid
    POST   /api/movements/{id}/cancel     pending -> canceled
    POST   /api/movements/{id}/revert     paid -> pending

  Facts:
    POST   /api/facts/collect             Staging path (batch)
    POST   /api/facts/post                Direct path (single, final)

  Staging:
    GET    /api/pending                   Live entries
    PATCH  /api/pending/{id}/selected     Toggle operator intent
    POST   /api/pending/promote           Confirm selected entries
    DELETE /api/pending/processed         Bulk cleanup

  Reporting:
    GET    /api/balance                   Initial/current/projection
    PUT    /api/balance/initial           Set opening balance
    GET    /api/reports/aggregate         Period aggregate
    GET    /api/reports/categories        Category distribution
    GET    /api/reports/monthly           Monthly series
    GET    /api/categories                Valid category sets

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown movement/pending id
  - 409: Invalid status transition
  - 502: Persistence failure (write did not take effect)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/cashflow-engine/engine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *engine.Engine
	Logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler creates a new handler around the engine facade.
func NewHandler(eng *engine.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Engine:   eng,
		Logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// MOVEMENT HANDLERS
// =============================================================================

// ListMovements returns filtered movements in canonical order.
// Query params: period, start, end, direction, category, status, q.
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := engine.MovementFilter{
		Interval:  h.intervalFromQuery(r),
		Direction: engine.Direction(q.Get("direction")),
		Category:  q.Get("category"),
		Status:    engine.Status(q.Get("status")),
		Search:    q.Get("q"),
	}

	movements := h.Engine.ListMovements(filter)
	writeJSON(w, http.StatusOK, toMovementDTOs(movements, h.Engine.Today()))
}

// GetMovement returns a single movement.
func (h *Handler) GetMovement(w http.ResponseWriter, r *http.Request) {
	id := engine.MovementID(chi.URLParam(r, "id"))

	m, err := h.Engine.GetMovement(id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementDTO(m, h.Engine.Today()))
}

// CreateMovement adds a manual movement.
func (h *Handler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	var req ManualMovementRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.Engine.AddManual(r.Context(), manualInput(req))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementDTO(*m, h.Engine.Today()))
}

// UpdateMovement replaces the editable fields of a movement.
func (h *Handler) UpdateMovement(w http.ResponseWriter, r *http.Request) {
	id := engine.MovementID(chi.URLParam(r, "id"))

	var req ManualMovementRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.Engine.UpdateMovement(r.Context(), id, manualInput(req))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementDTO(*m, h.Engine.Today()))
}

// DeleteMovement removes a movement by explicit user action.
func (h *Handler) DeleteMovement(w http.ResponseWriter, r *http.Request) {
	id := engine.MovementID(chi.URLParam(r, "id"))

	if err := h.Engine.DeleteMovement(r.Context(), id); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkPaid, MarkCanceled and RevertToPending drive the status machine.
// The optional "actor" query param labels the audit fields.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.MarkPaid)
}

func (h *Handler) MarkCanceled(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.MarkCanceled)
}

func (h *Handler) RevertToPending(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.RevertToPending)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id engine.MovementID, actor string) error) {
	id := engine.MovementID(chi.URLParam(r, "id"))
	actor := r.URL.Query().Get("actor")

	if err := op(r.Context(), id, actor); err != nil {
		h.writeEngineError(w, err)
		return
	}
	m, err := h.Engine.GetMovement(id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementDTO(m, h.Engine.Today()))
}

// =============================================================================
// FACT HANDLERS
// =============================================================================

// Collect stages a batch of candidate facts (the provisional path).
func (h *Handler) Collect(w http.ResponseWriter, r *http.Request) {
	var req CollectRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	facts := make([]engine.RawFact, len(req.Facts))
	for i, f := range req.Facts {
		facts[i] = toRawFact(f)
	}

	inserted, err := h.Engine.CollectFromCollaborator(r.Context(), engine.Source(req.Source), facts)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectResponse{Inserted: inserted})
}

// PostDirect posts a finalized fact straight into the ledger. A duplicate
// responds 200 with a null movement: a no-op, not an error.
func (h *Handler) PostDirect(w http.ResponseWriter, r *http.Request) {
	var req PostDirectRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.Engine.PostDirect(r.Context(), engine.Source(req.Source), toRawFact(req.Fact))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if m == nil {
		writeJSON(w, http.StatusOK, map[string]any{"movement": nil, "duplicate": true})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"movement":  toMovementDTO(*m, h.Engine.Today()),
		"duplicate": false,
	})
}

// =============================================================================
// STAGING HANDLERS
// =============================================================================

// ListPending returns the live staging entries.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	entries := h.Engine.ListPending()
	dtos := make([]PendingEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toPendingEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetSelected toggles operator intent on one entry.
func (h *Handler) SetSelected(w http.ResponseWriter, r *http.Request) {
	id := engine.MovementID(chi.URLParam(r, "id"))

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Engine.SetSelected(r.Context(), id, req.Selected); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Promote confirms the referenced selected entries. Idempotent.
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	var req PromoteRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	ids := make([]engine.MovementID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = engine.MovementID(id)
	}

	promoted, err := h.Engine.Promote(r.Context(), ids)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PromoteResponse{Promoted: promoted})
}

// PurgeProcessed removes all processed entries from the staging area.
func (h *Handler) PurgeProcessed(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Engine.PurgeProcessed(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PurgeResponse{Removed: removed})
}

// =============================================================================
// REPORTING HANDLERS
// =============================================================================

// GetBalance returns the headline numbers.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, BalanceDTO{
		InitialBalance: h.Engine.InitialBalance().String(),
		CurrentBalance: h.Engine.CurrentBalance().String(),
		Projection:     h.Engine.Projection().String(),
		AsOf:           h.Engine.Today().String(),
	})
}

// SetInitialBalance persists a new opening balance.
func (h *Handler) SetInitialBalance(w http.ResponseWriter, r *http.Request) {
	var req InitialBalanceRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	balance, err := decimal.NewFromString(req.InitialBalance)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid initial_balance", err)
		return
	}
	if err := h.Engine.SetInitialBalance(r.Context(), balance); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAggregate returns the period aggregate for a named period.
func (h *Handler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	p, custom := h.periodFromQuery(r)
	agg := h.Engine.PeriodAggregateFor(p, custom)
	writeJSON(w, http.StatusOK, toAggregateDTO(p, p.Resolve(h.Engine.Today(), custom), agg))
}

// GetCategoryDistribution groups one direction's movements by category.
func (h *Handler) GetCategoryDistribution(w http.ResponseWriter, r *http.Request) {
	p, custom := h.periodFromQuery(r)
	dir := engine.ParseDirection(r.URL.Query().Get("direction"))

	buckets := h.Engine.CategoryDistributionFor(p, custom, dir)
	dtos := make([]CategoryTotalDTO, len(buckets))
	for i, b := range buckets {
		dtos[i] = CategoryTotalDTO{Category: b.Category, Total: b.Total.String(), Count: b.Count}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMonthlySeries returns chart data for the period, month by month.
func (h *Handler) GetMonthlySeries(w http.ResponseWriter, r *http.Request) {
	p, custom := h.periodFromQuery(r)

	series := h.Engine.MonthlySeriesFor(p, custom)
	dtos := make([]MonthTotalDTO, len(series))
	for i, mt := range series {
		dtos[i] = MonthTotalDTO{
			Year:         mt.Year,
			Month:        int(mt.Month),
			InflowTotal:  mt.Aggregate.InflowTotal.String(),
			OutflowTotal: mt.Aggregate.OutflowTotal.String(),
			NetTotal:     mt.Aggregate.NetTotal.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCategories returns the valid category sets per direction.
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"inflow":  engine.CategoriesFor(engine.Inflow),
		"outflow": engine.CategoriesFor(engine.Outflow),
	})
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// QUERY & ERROR HELPERS
// =============================================================================

func (h *Handler) periodFromQuery(r *http.Request) (engine.Period, engine.Interval) {
	q := r.URL.Query()
	p := engine.ParsePeriod(q.Get("period"))

	var custom engine.Interval
	if start, ok := engine.ParseDate(q.Get("start")); ok {
		custom.Start = start
	}
	if end, ok := engine.ParseDate(q.Get("end")); ok {
		custom.End = end
	}
	if p != engine.PeriodCustom && (q.Get("start") != "" || q.Get("end") != "") {
		p = engine.PeriodCustom
	}
	return p, custom
}

func (h *Handler) intervalFromQuery(r *http.Request) engine.Interval {
	p, custom := h.periodFromQuery(r)
	if r.URL.Query().Get("period") == "" && custom == (engine.Interval{}) {
		return engine.Interval{} // No period filter means all
	}
	return p.Resolve(h.Engine.Today(), custom)
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, engine.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "Invalid status transition", err)
	case errors.Is(err, engine.ErrSaveFailed):
		h.Logger.Error("persistence failure", "error", err)
		writeError(w, http.StatusBadGateway, "Write did not take effect", err)
	default:
		h.Logger.Error("engine error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func manualInput(req ManualMovementRequest) engine.ManualMovementInput {
	date, _ := engine.ParseDate(req.Date)
	clock, _ := engine.ParseClockTime(req.Time)
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		amount = decimal.Zero
	}
	return engine.ManualMovementInput{
		Direction:   engine.Direction(req.Direction),
		Date:        date,
		Time:        clock,
		Description: req.Description,
		Amount:      amount,
		Category:    req.Category,
		Status:      engine.Status(req.Status),
		Tags:        req.Tags,
		Attachments: req.Attachments,
		Actor:       req.Actor,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
