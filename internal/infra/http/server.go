package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gatepass/internal/config"
	"gatepass/internal/domain"
	"gatepass/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type ServerDeps struct {
	Verifier    usecase.Verifier
	Admit       *usecase.AdmitTicket
	Admissions  domain.AdmissionRepository
	Operators   domain.OperatorAuthenticator
	Policy      domain.GatePolicy
	RateLimiter domain.RateLimiter
	// Ready reports whether backing stores are reachable. Nil means always
	// ready.
	Ready  func(ctx context.Context) error
	Logger zerolog.Logger
}

type Server struct {
	cfg config.Config
	r   *gin.Engine
	log zerolog.Logger

	verifier   usecase.Verifier
	admit      *usecase.AdmitTicket
	admissions domain.AdmissionRepository
	operators  domain.OperatorAuthenticator
	policy     domain.GatePolicy
	ready      func(ctx context.Context) error

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger))

	s := &Server{
		cfg:        cfg,
		r:          r,
		log:        deps.Logger,
		verifier:   deps.Verifier,
		admit:      deps.Admit,
		admissions: deps.Admissions,
		operators:  deps.Operators,
		policy:     deps.Policy,
		ready:      deps.Ready,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initRateLimit(limiter domain.RateLimiter) {
	s.rateLimiter = limiter
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = time.Minute
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = s.cfg.RateLimitWindow()
	}
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", s.handleHealth)

	v1 := s.r.Group("/v1")
	{
		v1.GET("/operator", s.handleOperator)
		v1.POST("/verify", s.handleVerify)
		v1.POST("/admissions", s.handleAdmit)
		v1.GET("/admissions/:ticket_id", s.handleGetAdmission)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Handler() http.Handler {
	return s.r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.HTTPAddr).Str("gate", s.cfg.GateID).Msg("verifier listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
