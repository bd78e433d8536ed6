package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/kwikpik/kwikpik-go/internal/config"
	"github.com/kwikpik/kwikpik-go/internal/models"
	"github.com/kwikpik/kwikpik-go/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kwikpik_sandbox_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kwikpik_sandbox_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	service *service.DispatchService
	logger  *slog.Logger
}

func NewHandler(svc *service.DispatchService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, logger: logger}
}

// Routes mounts the API under r using the same path templates the client
// library is configured with.
func (h *Handler) Routes(r *mux.Router, endpoints config.Endpoints) {
	r.Use(instrument)

	authed := r.NewRoute().Subrouter()
	authed.Use(h.authenticate)

	acc, req := endpoints.Account, endpoints.Requests
	authed.HandleFunc(acc.Authenticate, h.Authenticate).Methods(http.MethodGet)
	authed.HandleFunc(acc.Wallet, h.Wallet).Methods(http.MethodGet)
	authed.HandleFunc(acc.PayForRequest, h.PayForRequest).Methods(http.MethodPost)
	authed.HandleFunc(muxPath(acc.Requests), h.ListRequests).Methods(http.MethodGet)

	// Fixed paths go before the {id} templates they would otherwise match.
	authed.HandleFunc(req.InitializeBatch, h.InitializeBatch).Methods(http.MethodPost)
	authed.HandleFunc(req.Initialize, h.Initialize).Methods(http.MethodPost)
	authed.HandleFunc(req.ConfirmBatch, h.ConfirmBatch).Methods(http.MethodPost)
	authed.HandleFunc(req.Confirm, h.Confirm).Methods(http.MethodPost)
	authed.HandleFunc(muxPath(req.GetSingle), h.GetRequest).Methods(http.MethodGet)
	authed.HandleFunc(muxPath(req.UpdateSingle), h.UpdateRequest).Methods(http.MethodPatch)
	authed.HandleFunc(muxPath(req.DeleteSingle), h.DeleteRequest).Methods(http.MethodDelete)
}

// muxPath turns ":name" segments into gorilla "{name}" variables.
func muxPath(template string) string {
	parts := strings.Split(template, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			parts[i] = "{" + p[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

type ctxKey struct{}

func businessFrom(ctx context.Context) *models.Business {
	b, _ := ctx.Value(ctxKey{}).(*models.Business)
	return b
}

// authenticate accepts "X-API-Key <key>" or a "Bearer <token>" issued by the
// authenticate endpoint.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, credential, _ := strings.Cut(r.Header.Get("Authorization"), " ")
		credential = strings.TrimSpace(credential)

		var (
			b   *models.Business
			err error
		)
		switch {
		case credential == "":
			err = service.ErrUnauthorized
		case scheme == "X-API-Key":
			b, err = h.service.Authenticate(r.Context(), credential)
		case strings.EqualFold(scheme, "Bearer"):
			b, err = h.service.AuthenticateToken(r.Context(), credential)
		default:
			err = service.ErrUnauthorized
		}
		if err != nil {
			h.respondError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, b)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		timer := prometheus.NewTimer(httpLatency.WithLabelValues(r.Method, endpoint))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpReqTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

type envelope struct {
	Result any `json:"result"`
}

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, result any) {
	respondWithJSON(w, code, envelope{Result: result})
}

// respondError maps service errors onto status codes. Unknown errors are
// logged and reported as 500 without detail.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		respondWithJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Details: vErr.Messages})
		return
	}

	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "Internal Server Error"
	}
	respondWithJSON(w, code, errorBody{Error: msg})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, service.ErrNoRequests):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, service.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyConfirmed),
		errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrNotEditable):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotPaid),
		errors.Is(err, service.ErrInsufficientFunds),
		errors.Is(err, service.ErrAmountMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
