package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/farlink-core/internal/auth"
	"github.com/nerrad567/farlink-core/internal/device"
	"github.com/nerrad567/farlink-core/internal/health"
	"github.com/nerrad567/farlink-core/internal/infrastructure/config"
	"github.com/nerrad567/farlink-core/internal/infrastructure/logging"
	"github.com/nerrad567/farlink-core/internal/signal"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	Security      config.SecurityConfig
	Logger        *logging.Logger
	Registry      *device.Registry
	Conns         *signal.Registry
	Router        *signal.Router
	Scheduler     *signal.Scheduler
	Journal       *health.Journal
	Authenticator *auth.Authenticator
	Version       string
}

// Server is the HTTP API and WebSocket server for the Farlink core.
//
// It manages the HTTP listener, routes, and middleware, and owns the
// transport side of every admitted WebSocket connection. The server is
// created with New() and started with Start().
type Server struct {
	cfg           config.APIConfig
	wsCfg         config.WebSocketConfig
	secCfg        config.SecurityConfig
	logger        *logging.Logger
	registry      *device.Registry
	conns         *signal.Registry
	sigRouter     *signal.Router
	scheduler     *signal.Scheduler
	journal       *health.Journal
	authenticator *auth.Authenticator
	version       string
	server        *http.Server
	cancel        context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Conns == nil {
		return nil, fmt.Errorf("connection registry is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("message router is required")
	}
	if deps.Authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	// Scheduler and Journal are optional: without them, abnormal
	// disconnects are not announced and journal reads return 404.

	return &Server{
		cfg:           deps.Config,
		wsCfg:         deps.WS,
		secCfg:        deps.Security,
		logger:        deps.Logger,
		registry:      deps.Registry,
		conns:         deps.Conns,
		sigRouter:     deps.Router,
		scheduler:     deps.Scheduler,
		journal:       deps.Journal,
		authenticator: deps.Authenticator,
		version:       deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	_, s.cancel = context.WithCancel(ctx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// In-flight requests get up to 10 seconds to complete; admitted WebSocket
// connections are then closed so their pumps unwind.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}

	s.conns.CloseAll()
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
