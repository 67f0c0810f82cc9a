package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jakechorley/store-roster/internal/config"
	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/core/services"
	"github.com/jakechorley/store-roster/pkg/core/tracker"
)

// Tracker is the modification surface the handlers drive
type Tracker interface {
	services.PlanTracker
	RecordSwap(ctx context.Context, assignmentID string, change tracker.Change) (*model.ModificationRecord, error)
	RecordSubstitute(ctx context.Context, assignmentID string, window *model.ClockWindow, change tracker.Change) (*model.ModificationRecord, error)
	RecordRemoval(ctx context.Context, assignmentID string, change tracker.Change) (*model.ModificationRecord, error)
	RecordTemporaryAddition(ctx context.Context, slotID string, change tracker.Change) (*model.ModificationRecord, error)
}

// Handler exposes schedule HTTP endpoints.
type Handler struct {
	store   services.GenerateScheduleStore
	tracker Tracker
	cfg     *config.Config
	logger  *zap.Logger
}

func NewHandler(store services.GenerateScheduleStore, tr Tracker, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{store: store, tracker: tr, cfg: cfg, logger: logger}
}

// NewRouter builds the router with the schedule routes and standard middleware
func NewRouter(h *Handler) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(h.logger))
	h.RegisterRoutes(router)
	return router
}

func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/schedules", func(r chi.Router) {
		r.Post("/generate", h.generate)                       // POST /schedules/generate
		r.Get("/plan", h.plan)                                // GET  /schedules/plan?start=2025-09-01&end=2025-09-07
		r.Get("/history", h.history)                          // GET  /schedules/history?start=2025-09-01&end=2025-09-07
		r.Get("/assignments/{id}/substitutes", h.substitutes) // GET  /schedules/assignments/{id}/substitutes
		r.Post("/assignments/{id}/swap", h.swap)              // POST /schedules/assignments/{id}/swap
		r.Post("/assignments/{id}/substitute", h.substitute)  // POST /schedules/assignments/{id}/substitute
		r.Post("/assignments/{id}/remove", h.remove)          // POST /schedules/assignments/{id}/remove
		r.Post("/slots/{id}/temporary", h.temporaryAddition)  // POST /schedules/slots/{id}/temporary
	})
}

// GenerateBody is the request body of POST /schedules/generate
type GenerateBody struct {
	StoreIDs []string `json:"storeIds"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
}

// ChangeBody is the request body of the modification endpoints
type ChangeBody struct {
	EmployeeID   string `json:"employeeId"`
	ActingUserID string `json:"actingUserId"`
	Reason       string `json:"reason"`

	// ExpectedSequence is the latestSequence the caller last read; omit to take the current one
	ExpectedSequence *int64 `json:"expectedSequence"`

	// Window limits a substitution to part of the shift, as HH:MM clock times.
	// Times before the start of a shift that runs past midnight mean the next day.
	Window *WindowBody `json:"window,omitempty"`
}

type WindowBody struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (b ChangeBody) change() tracker.Change {
	expected := tracker.AnySequence
	if b.ExpectedSequence != nil {
		expected = *b.ExpectedSequence
	}
	return tracker.Change{
		EmployeeID:       b.EmployeeID,
		ActingUserID:     b.ActingUserID,
		Reason:           b.Reason,
		ExpectedSequence: expected,
	}
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var body GenerateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	dates, err := model.ParseDateRange(body.Start, body.End)
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := services.GenerateSchedule(r.Context(), h.store, h.cfg, h.logger, services.GenerateRequest{
		StoreIDs: body.StoreIDs,
		Start:    dates.Start,
		End:      dates.End,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusCreated, result)
}

func (h *Handler) plan(w http.ResponseWriter, r *http.Request) {
	dates, err := queryRange(r)
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	plan, err := services.GetSchedulePlan(r.Context(), h.tracker, h.logger, dates.Start, dates.End)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, plan)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	dates, err := queryRange(r)
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	history, err := services.GetScheduleHistory(r.Context(), h.tracker, h.logger, dates.Start, dates.End)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, history)
}

func (h *Handler) substitutes(w http.ResponseWriter, r *http.Request) {
	candidates, err := services.GetAvailableSubstitutes(r.Context(), h.tracker, h.logger, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, candidates)
}

func (h *Handler) swap(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeChange(w, r)
	if !ok {
		return
	}
	record, err := h.tracker.RecordSwap(r.Context(), chi.URLParam(r, "id"), body.change())
	h.recorded(w, record, err)
}

func (h *Handler) substitute(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeChange(w, r)
	if !ok {
		return
	}
	var window *model.ClockWindow
	if body.Window != nil {
		start, err := model.ParseClockTime(body.Window.Start)
		if err != nil {
			respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		end, err := model.ParseClockTime(body.Window.End)
		if err != nil {
			respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		window = &model.ClockWindow{Start: start, End: end}
	}
	record, err := h.tracker.RecordSubstitute(r.Context(), chi.URLParam(r, "id"), window, body.change())
	h.recorded(w, record, err)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeChange(w, r)
	if !ok {
		return
	}
	record, err := h.tracker.RecordRemoval(r.Context(), chi.URLParam(r, "id"), body.change())
	h.recorded(w, record, err)
}

func (h *Handler) temporaryAddition(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeChange(w, r)
	if !ok {
		return
	}
	record, err := h.tracker.RecordTemporaryAddition(r.Context(), chi.URLParam(r, "id"), body.change())
	h.recorded(w, record, err)
}

func (h *Handler) recorded(w http.ResponseWriter, record *model.ModificationRecord, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusCreated, record)
}

// fail maps the error taxonomy onto status codes
func (h *Handler) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
	}

	body := map[string]string{"error": err.Error()}
	var ineligible *model.IneligibleError
	if errors.As(err, &ineligible) {
		body["employeeId"] = ineligible.EmployeeID
		body["reason"] = ineligible.Reason
	}
	respond(w, code, body)
}

func statusFor(err error) int {
	var integrity *model.DataIntegrityError
	switch {
	case errors.Is(err, model.ErrGenerationAborted), errors.As(err, &integrity), errors.Is(err, tracker.ErrInvalidModification):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrIneligibleSubstitute):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrConcurrentModification), errors.Is(err, model.ErrOverlappingRun):
		return http.StatusConflict
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decodeChange(w http.ResponseWriter, r *http.Request) (ChangeBody, bool) {
	var body ChangeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return body, false
	}
	return body, true
}

// queryRange reads ?start=&end=; end defaults to start
func queryRange(r *http.Request) (model.DateRange, error) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if end == "" {
		end = start
	}
	return model.ParseDateRange(start, end)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(started)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
