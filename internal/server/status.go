package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/rdex/internal/auth"
	"github.com/desertthunder/rdex/internal/models"
)

// TokenStatus reports stored token state per host.
type TokenStatus interface {
	Status(ctx context.Context, validate bool) []auth.HostStatus
}

// CallLister lists recorded API calls.
type CallLister interface {
	List(criteria models.Criteria) ([]*models.APICall, error)
}

// StatusHandler serves /health, /tokens and, when a call log is attached, /calls.
type StatusHandler struct {
	tokens  TokenStatus
	calls   CallLister
	version string
	started time.Time
}

// NewStatusHandler creates a StatusHandler. calls may be nil.
func NewStatusHandler(tokens TokenStatus, calls CallLister, version string) *StatusHandler {
	return &StatusHandler{tokens: tokens, calls: calls, version: version, started: time.Now()}
}

// Routes returns the HTTP routes this handler serves.
func (h *StatusHandler) Routes() []string {
	routes := []string{"GET /health", "GET /tokens"}
	if h.calls != nil {
		routes = append(routes, "GET /calls")
	}
	return routes
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		h.health(w)
	case "/tokens":
		h.tokenStatus(w, r)
	case "/calls":
		h.recentCalls(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *StatusHandler) health(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// tokenStatus never includes token values; see [auth.HostStatus]. ?validate=true checks each
// token against the API.
func (h *StatusHandler) tokenStatus(w http.ResponseWriter, r *http.Request) {
	validate, _ := strconv.ParseBool(r.URL.Query().Get("validate"))
	writeJSON(w, http.StatusOK, map[string]any{"hosts": h.tokens.Status(r.Context(), validate)})
}

type callView struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	URL       string    `json:"url"`
	Status    int       `json:"status"`
	ElapsedMS int64     `json:"elapsed_ms"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *StatusHandler) recentCalls(w http.ResponseWriter, r *http.Request) {
	if h.calls == nil {
		http.NotFound(w, r)
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	failed, _ := strconv.ParseBool(r.URL.Query().Get("failed"))

	calls, err := h.calls.List(models.Criteria{
		Host:   r.URL.Query().Get("host"),
		Failed: failed,
		Limit:  limit,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	out := make([]callView, 0, len(calls))
	for _, c := range calls {
		out = append(out, callView{
			ID:        c.CallID,
			Method:    c.Method,
			URL:       c.URL,
			Status:    c.Status,
			ElapsedMS: c.Elapsed.Milliseconds(),
			Success:   c.Success,
			Error:     c.ErrorMessage,
			CreatedAt: c.Created,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewRouter builds the status service router with request ids, recovery and logging.
func NewRouter(h *StatusHandler, mw ...Middleware) *BasicRouter {
	r := NewBasicRouter()
	r.Use(RequestID)
	r.Use(mw...)
	r.Handler(h)
	return r
}
