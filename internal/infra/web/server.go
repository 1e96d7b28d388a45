package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"medscan-registration/internal/infra/push"
	redisinfra "medscan-registration/internal/infra/redis"
)

// Server is the HTTP facade over the registration pipelines: one route per
// state-machine operation, plus the scan webhook and the ops endpoints.
type Server struct {
	pipelines    *Pipelines
	auth         *AuthManager
	registry     *push.Registry
	limiter      *redisinfra.RateLimiter
	scansPerHour int
	webhookToken string
	log          *zerolog.Logger
}

func NewServer(
	pipelines *Pipelines,
	auth *AuthManager,
	registry *push.Registry,
	limiter *redisinfra.RateLimiter,
	scansPerHour int,
	webhookToken string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		pipelines:    pipelines,
		auth:         auth,
		registry:     registry,
		limiter:      limiter,
		scansPerHour: scansPerHour,
		webhookToken: webhookToken,
		log:          logger,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID())
	r.Use(Recover(s.log))
	r.Use(RequestLog(s.log))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/webhook/scan", s.handleScanWebhook)

	r.Post("/auth/session", s.handleLogin)
	r.Delete("/auth/session", s.handleLogout)

	r.Route("/api/v1/pipeline", func(r chi.Router) {
		r.Use(Session(s.auth))

		r.Get("/", s.handleState)
		r.Post("/camera", s.handleUseCamera)
		r.Post("/capture", s.handleCapture)
		r.Post("/image", s.handleSelectImage)
		r.Post("/retake", s.handleRetake)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/cached", s.handleCachedScan)
		r.Post("/recover", s.handleRecover)

		r.Patch("/form", s.handlePatchForm)
		r.Post("/medications", s.handleAddMedication)
		r.Patch("/medications/{id}", s.handleUpdateMedication)
		r.Delete("/medications/{id}", s.handleRemoveMedication)
		r.Post("/slots", s.handleAddSlot)
		r.Patch("/slots/{index}", s.handleUpdateSlot)
		r.Delete("/slots/{index}", s.handleRemoveSlot)

		r.Post("/register", s.handleRegister)
		r.Post("/reset", s.handleReset)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewHTTPServer wraps the routes in an http.Server with timeouts generous
// enough for the blocking analyze route.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}
}
