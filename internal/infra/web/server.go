package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"activation-card-service/internal/infra/logging"
	"activation-card-service/internal/usecase"
)

type Server struct {
	cardUC  usecase.CardUseCase
	statsUC usecase.StatsUseCase
	apiKey  string
	log     *zerolog.Logger
}

func NewServer(cardUC usecase.CardUseCase, statsUC usecase.StatsUseCase, apiKey string, logger *zerolog.Logger) *Server {
	srvLog := logger.With().Str("component", "web").Logger()
	return &Server{
		cardUC:  cardUC,
		statsUC: statsUC,
		apiKey:  apiKey,
		log:     &srvLog,
	}
}

// Router builds the admin API. Everything under /api/v1 sits behind the
// bearer-key middleware; health and metrics stay open for probes/scrapers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/cards", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Get("/stats", s.handleStats)
		r.Get("/verify", s.handleVerify)
		r.Post("/redeem", s.handleRedeemByCode)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Put("/", s.handleUpdateNote)
			r.Delete("/", s.handleDelete)
			r.Post("/redeem", s.handleRedeem)
			r.Post("/assign", s.handleAssign)
			r.Post("/expire", s.handleForceExpire)
		})
	})

	return r
}

// requestLogger puts the chi request id into the logging context so every
// line emitted below carries the same trace_id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
		logging.With(ctx, s.log).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware provides simple Bearer token authentication for the admin API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
