// Package api's Serve assembles the HTTP surface for a running
// service: the JSON-RPC and REST dispatchers, the bidirectional
// upgrade route, liveness/version, and a separate metrics listener.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	v1 "github.com/agentstack/ras-go/pkg/api/v1"
)

const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxRequestBody    = 1 << 20 // 1MB
)

// Servers is the set of HTTP handlers a built service exposes.
// JSONRPCPath is the single POST endpoint for JSON-RPC (§6); RESTBasePath
// is the mount point under which the REST dispatcher's own
// verb+templated-path routes are nested.
type Servers struct {
	JSONRPCPath  string
	JSONRPC      http.Handler
	RESTBasePath string
	REST         http.Handler
	WS           http.Handler
	Metrics      http.Handler
}

// Serve starts the HTTP, WebSocket, and metrics listeners and blocks
// until ctx is canceled, then shuts all three down gracefully. The
// HTTP and WebSocket addresses may be equal, in which case they share
// one listener with the WS route mounted alongside the HTTP routes.
func Serve(ctx context.Context, logger *zap.Logger, httpAddr, wsAddr, metricsAddr string, servers Servers) error {
	httpRouter := buildHTTPRouter(servers)

	httpSrv := newServer(ctx, httpAddr, httpRouter)
	metricsSrv := newServer(ctx, metricsAddr, servers.Metrics)

	var wsSrv *http.Server
	if wsAddr != httpAddr {
		wsMux := chi.NewRouter()
		wsMux.Handle("/ws", servers.WS)
		wsSrv = newServer(ctx, wsAddr, wsMux)
	} else {
		httpRouter.Handle("/ws", servers.WS)
	}

	errCh := make(chan error, 3)
	runListener(errCh, logger, httpSrv)
	runListener(errCh, logger, metricsSrv)
	if wsSrv != nil {
		runListener(errCh, logger, wsSrv)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	for _, srv := range []*http.Server{httpSrv, metricsSrv, wsSrv} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildHTTPRouter(servers Servers) chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(middlewareTimeout),
		requestBodySizeLimitMiddleware(maxRequestBody),
	)

	r.Mount("/health", v1.HealthcheckRouter())
	r.Mount("/version", v1.VersionRouter())

	if servers.JSONRPC != nil {
		path := servers.JSONRPCPath
		if path == "" {
			path = "/rpc"
		}
		r.Post(path, servers.JSONRPC.ServeHTTP)
	}
	if servers.REST != nil {
		base := servers.RESTBasePath
		if base == "" {
			base = "/"
		}
		r.Mount(base, servers.REST)
	}
	return r
}

func newServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	if handler == nil {
		return nil
	}
	return &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func runListener(errCh chan<- error, logger *zap.Logger, srv *http.Server) {
	if srv == nil {
		return
	}
	logger.Info("starting http listener", zap.String("addr", srv.Addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listener %s: %w", srv.Addr, err)
		}
	}()
}
