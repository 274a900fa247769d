package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/bantay-ai/bantay/internal/auth"
	"github.com/bantay-ai/bantay/internal/classifier"
	"github.com/bantay-ai/bantay/internal/config"
	"github.com/bantay-ai/bantay/internal/events"
	"github.com/bantay-ai/bantay/internal/modelmetrics"
	"github.com/bantay-ai/bantay/internal/redact"
	"github.com/bantay-ai/bantay/internal/telemetry"
)

// Deps are the collaborators the HTTP layer serves from. Emitter and
// Telemetry are optional.
type Deps struct {
	Pipeline  *classifier.Pipeline
	Metrics   modelmetrics.Metrics
	Emitter   *events.Emitter
	Telemetry *telemetry.Provider
}

// Server wraps the HTTP server components for bantay.
type Server struct {
	router    *mux.Router
	cfg       *config.Config
	auth      *auth.Auth
	pipeline  *classifier.Pipeline
	engine    *classifier.Engine
	metrics   modelmetrics.Metrics
	emitter   *events.Emitter
	telemetry *telemetry.Provider
	validate  *validator.Validate
}

// New creates a new bantay server with all routes registered.
func New(cfg *config.Config, authz *auth.Auth, deps Deps) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		cfg:       cfg,
		auth:      authz,
		pipeline:  deps.Pipeline,
		engine:    deps.Pipeline.Engine(),
		metrics:   deps.Metrics,
		emitter:   deps.Emitter,
		telemetry: deps.Telemetry,
		validate:  validator.New(),
	}
	if s.telemetry == nil {
		s.telemetry = telemetry.NewNoop()
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	// API routes sit on the root router so a method mismatch yields 405.
	s.router.Handle("/v1/status", s.api(s.handleStatus)).Methods(http.MethodGet)
	s.router.Handle("/v1/categories", s.api(s.handleCategories)).Methods(http.MethodGet)
	s.router.Handle("/v1/model/metrics", s.api(s.handleModelMetrics)).Methods(http.MethodGet)
	s.router.Handle("/v1/features", s.api(s.handleFeatures)).Methods(http.MethodPost)
	s.router.Handle("/v1/classify", s.api(s.handleClassify)).Methods(http.MethodPost)
	s.router.Handle("/v1/classify/batch", s.api(s.handleClassifyBatch)).Methods(http.MethodPost)

	return s
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		redact.Logf("bantay classifier running on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// --- Middleware ---

// api wraps a /v1 handler with authentication and the body limit.
func (s *Server) api(h http.HandlerFunc) http.Handler {
	return s.requireAPIKey(s.limitBody(h))
}

type callerKey struct{}

// callerFrom returns the authenticated caller, if the request carried a key.
func callerFrom(ctx context.Context) (auth.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(auth.Caller)
	return c, ok
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		apiKey, ok := parseBearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid or missing API key", "authentication_error")
			return
		}
		caller, ok := s.auth.Lookup(apiKey)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid API key", "authentication_error")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limit := s.cfg.Server.MaxRequestBodyBytes; limit > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

// --- Helpers ---

// parseBearerToken extracts the token from an Authorization: Bearer header.
func parseBearerToken(h string) (string, bool) {
	parts := strings.Fields(h)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeError(w http.ResponseWriter, status int, message, typ string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Message: message, Type: typ}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		redact.Logf("failed to write response: %v", err)
	}
}

func isRequestTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// decodeBody reads a JSON body into dst and validates it. It writes the
// error response itself and reports whether the handler may continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if isRequestTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", "invalid_request_error")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request_error")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err), "invalid_request_error")
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	return fmt.Sprintf("field %s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
}

// statusFor maps classifier errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, classifier.ErrBackendUnavailable), errors.Is(err, classifier.ErrModelNotLoaded):
		return http.StatusServiceUnavailable, "model_unavailable"
	case errors.Is(err, classifier.ErrShapeMismatch):
		return http.StatusUnprocessableEntity, "shape_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout"
	default:
		return http.StatusInternalServerError, "prediction_error"
	}
}
