package registryd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Server wires the store, the relay hub, and the HTTP surface together.
type Server struct {
	cfg   Config
	log   *zap.Logger
	store Store
	relay *relayHub
}

// NewServer builds the server. store selection (memory vs Postgres) is the
// caller's job, so tests can inject whatever they need.
func NewServer(cfg Config, log *zap.Logger, store Store) *Server {
	return &Server{
		cfg:   cfg,
		log:   log,
		store: store,
		relay: newRelayHub(log),
	}
}

// Routes returns the chi router serving the registry REST contract plus
// the relay and health endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/rooms", s.handleCreateRoom)
	r.Route("/rooms/{room_id}", func(r chi.Router) {
		r.Get("/", s.handleGetRoom)
		r.Get("/check", s.handleCheckRoom)
		r.Put("/offer", s.handleUpdateOffer)
		r.Put("/answer", s.handleUpdateAnswer)
		r.Get("/relay", s.handleRelay)
	})
	return r
}

// Run serves HTTP and runs the TTL sweeper until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.Routes()}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("registry listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return s.sweep(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// sweep reclaims expired rooms on a fixed interval.
func (s *Server) sweep(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			purged, err := s.store.PurgeExpired(ctx, now)
			if err != nil {
				s.log.Error("purge expired rooms", zap.Error(err))
				continue
			}
			if purged > 0 {
				s.log.Info("purged expired rooms", zap.Int("count", purged))
			}
		}
	}
}
