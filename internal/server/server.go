package server

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/spigell/rozgar/internal/ai"
	"github.com/spigell/rozgar/internal/lifecycle"
	"github.com/spigell/rozgar/internal/matching"
	"github.com/spigell/rozgar/internal/media"
	"github.com/spigell/rozgar/internal/repository"
	"github.com/spigell/rozgar/internal/session"
	"go.uber.org/zap"
)

// Deps are the services the handlers call. Media may be nil.
type Deps struct {
	Repo      *repository.Repository
	Engine    *matching.Engine
	Tracker   *lifecycle.Tracker
	Assistant ai.Assistant
	Sessions  *session.Manager
	Media     *media.Uploader
	Logger    *zap.Logger
}

type Options struct {
	AllowedOrigins []string `mapstructure:"allowed-origins"`
	// RateLimit is the per IP request rate of the AI and voice routes.
	RateLimit float64 `mapstructure:"rate-limit"`
	RateBurst int     `mapstructure:"rate-burst"`
}

type Server struct {
	Deps

	router  *httprouter.Router
	limiter *RateLimiter
	cors    *cors.Cors
}

func New(deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Assistant == nil {
		deps.Assistant = ai.Unavailable{}
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		Deps:    deps,
		router:  httprouter.New(),
		limiter: NewRateLimiter(opts.RateLimit, opts.RateBurst),
		cors: cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		}),
	}
	s.routes()
	return s
}

// Handler wraps the router: access log, then security headers, then CORS.
func (s *Server) Handler() http.Handler {
	return s.accessLog(securityHeaders(s.cors.Handler(s.router)))
}

// Close stops the rate limiter janitor.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) routes() {
	r := s.router
	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", s.health)

	r.POST("/api/ai/parse-voice", s.parseVoice)
	r.POST("/api/ai/generate-job-description", s.generateDescription)
	r.POST("/api/ai/chat", s.chat)

	r.POST("/api/auth/login", s.login)

	r.GET("/api/jobs", s.optionalAuth(s.listJobs))
	r.POST("/api/jobs", s.requireAuth(s.createJob))
	r.GET("/api/jobs/:id", s.getJob)
	r.POST("/api/jobs/:id/close", s.requireAuth(s.closeJob))
	r.POST("/api/jobs/:id/apply", s.requireAuth(s.apply))
	r.GET("/api/jobs/:id/applicants", s.requireAuth(s.listApplicants))
	r.PUT("/api/jobs/:id/applicants/:workerId", s.requireAuth(s.setApplicantStatus))

	r.POST("/api/search/voice", s.limiter.Limit(s.optionalAuth(s.voiceSearch)))
	r.POST("/api/drafts/voice", s.limiter.Limit(s.requireAuth(s.voiceDraft)))

	r.GET("/api/employer/jobs", s.requireAuth(s.employerJobs))
	r.GET("/api/worker/applications", s.requireAuth(s.workerApplications))

	r.GET("/api/users/me", s.requireAuth(s.me))
	r.PUT("/api/users/me", s.requireAuth(s.updateMe))
	r.GET("/api/users/me/saved", s.requireAuth(s.savedJobs))
	r.POST("/api/users/me/saved/:id", s.requireAuth(s.toggleSaved))
	r.GET("/api/users/me/history", s.requireAuth(s.searchHistory))
	r.GET("/api/users/me/notifications", s.requireAuth(s.notifications))
	r.POST("/api/users/me/audio-resume", s.requireAuth(s.uploadAudioResume))
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
