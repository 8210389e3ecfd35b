package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/cmdgate/internal/store"
)

// Server terminates the messenger callbacks and applies verdicts.
type Server struct {
	cfg      *Config
	requests store.RequestStore
	limiter  *Limiter
	tracer   trace.Tracer
	nowFn    func() time.Time

	httpServer *http.Server
}

func NewServer(cfg *Config, requests store.RequestStore, events store.RateLimitStore) *Server {
	return &Server{
		cfg:      cfg,
		requests: requests,
		limiter:  NewLimiter(events),
		tracer:   otel.Tracer("cmdgate/webhook"),
	}
}

// Router builds the HTTP surface. Provider routes are registered only
// when their verification credential is configured; an unverifiable
// route is worse than no route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/webhook", func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		if s.cfg.SlackSigningSecret != "" {
			r.Post("/slack", s.handleSlack)
		}
		if s.cfg.TelegramWebhookSecret != "" {
			r.Post("/telegram", s.handleTelegram)
		}
		if s.cfg.TwilioAuthToken != "" {
			r.Post("/twilio", s.handleTwilio)
		}
		if s.cfg.DiscordPublicKey != "" {
			r.Post("/discord", s.handleDiscord)
		}
	})

	return r
}

// rateLimitMiddleware sits before provider auth: signature checks cost
// CPU and a flood should die at the door.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := callerIP(r)
		if !s.limiter.Allow(r.Context(), ip) {
			slog.Warn("rate limited", "ip", ip, "path", r.URL.Path)
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start runs the server until ctx is cancelled, then drains.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("webhook server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook shutdown: %w", err)
	}
	return nil
}
