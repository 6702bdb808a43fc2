package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"lexcal-scheduler/internal/apperr"
	"lexcal-scheduler/internal/grpcweb"
	"lexcal-scheduler/internal/metrics"
	"lexcal-scheduler/internal/middleware"
	"lexcal-scheduler/internal/schedule"
	"lexcal-scheduler/internal/store"
)

type Config struct {
	Secret        string
	AllowedOrigin string
	Limiter       *middleware.RateLimiter
	Logger        *log.Logger
	// Health backs /healthz; nil means always healthy.
	Health func(context.Context) error
	// GRPCWeb, when set, is mounted for browser gRPC clients.
	GRPCWeb *grpcweb.Bridge
}

type Handler struct {
	svc   *schedule.Service
	users store.Users
	cfg   Config
	log   *log.Logger
}

func New(svc *schedule.Service, users store.Users, cfg Config) *Handler {
	if cfg.Limiter == nil {
		cfg.Limiter = middleware.NewRateLimiter(5, 10)
	}
	l := cfg.Logger
	if l == nil {
		l = log.Default()
	}
	return &Handler{svc: svc, users: users, cfg: cfg, log: l}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.cors)
	r.Use(metrics.Middleware)
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.With(h.cfg.Limiter.Limit).Post("/api/auth/register", h.handleRegister)
	r.With(h.cfg.Limiter.Limit).Post("/api/auth/login", h.handleLogin)
	r.Get("/api/lawyers", h.handleLawyers)

	if h.cfg.GRPCWeb != nil {
		r.Mount(h.cfg.GRPCWeb.Pattern(), h.cfg.GRPCWeb)
	}

	r.Route("/api/appointments", func(ar chi.Router) {
		ar.Use(middleware.RequireAuth(h.cfg.Secret))
		ar.Post("/", h.handleCreate)
		ar.With(h.cfg.Limiter.Limit).Post("/request", h.handleRequest)
		ar.Get("/user/{userId}", h.handleByUser)
		ar.Get("/lawyer/{lawyerId}", h.handleByLawyer)
		ar.Get("/lawyer/{lawyerId}/pending", h.handlePending)
		ar.Get("/{id}", h.handleGet)
		ar.Patch("/{id}/respond", h.handleRespond)
		ar.Patch("/{id}/cancel", h.handleCancel)
		ar.Patch("/{id}", h.handleEdit)
		ar.Delete("/{id}", h.handleDelete)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.cfg.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", h.allowedOrigin(r.Header.Get("Origin")))
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		next.ServeHTTP(w, r)
	})
}

// allowedOrigin echoes the request origin when it is in the configured
// comma-separated list.
func (h *Handler) allowedOrigin(origin string) string {
	allowed := strings.TrimSpace(h.cfg.AllowedOrigin)
	if allowed == "" || allowed == "*" {
		return "*"
	}
	for _, o := range strings.Split(allowed, ",") {
		if strings.TrimSpace(o) == origin {
			return origin
		}
	}
	return strings.TrimSpace(strings.Split(allowed, ",")[0])
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.OutOfHours, apperr.SlotConflict, apperr.InvalidTransition, apperr.ValidationError:
		return http.StatusBadRequest
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": kind, "message": text}. Storage
// failures never expose their cause.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	msg := apperr.Message(err)
	if kind == apperr.StorageError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		msg = "internal error"
	}
	writeJSON(w, statusFor(kind), errorBody{Error: string(kind), Message: msg})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(err, apperr.ValidationError, "invalid JSON payload")
	}
	return nil
}

func viewer(r *http.Request) schedule.Viewer {
	v, _ := middleware.ViewerFrom(r.Context())
	return v
}
