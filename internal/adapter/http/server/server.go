package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/borauni/ride-dispatch/config"
	"github.com/borauni/ride-dispatch/internal/adapter/http/handler"
	"github.com/borauni/ride-dispatch/internal/adapter/http/middleware"
	"github.com/borauni/ride-dispatch/pkg/logger"
	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
)

const serverIPAddress = "%s:%s"

type API struct {
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	cfg  config.Config
	log  logger.Logger
}

type handlers struct {
	ride   *handler.Ride
	ws     *handler.WS
	health *handler.Health
}

func New(
	cfg config.Config,
	dispatchService handler.DispatchService,
	registry handler.SessionRegistry,
	tokens middleware.TokenValidator,
	log logger.Logger,
) (*API, error) {
	if tokens == nil {
		return nil, errors.New("token validator is required")
	}

	routes := &handlers{
		ride:   handler.NewRide(dispatchService, log),
		ws:     handler.NewWS(registry, log),
		health: handler.NewHealth("dispatch", log),
	}

	mid := middleware.NewMiddleware(tokens, log)

	api := &API{
		mux:    http.NewServeMux(),
		routes: routes,
		m:      mid,
		addr:   fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Server.HTTPPort),
		cfg:    cfg,
		log:    log,
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:    api.addr,
		Handler: api.withMiddleware(),
	}

	return api, nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

// withMiddleware applies the outer middleware chain to the mux.
func (a *API) withMiddleware() http.Handler {
	return a.m.Recover(a.m.RequestID(a.m.Logging(a.m.Metrics("dispatch")(a.m.Auth(a.mux)))))
}
