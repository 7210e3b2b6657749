// Command rasd boots the framework as a single process: it loads
// configuration from the environment, wires the identity/session
// stack into the JSON-RPC, REST, and bidirectional transports, and
// serves all three alongside a Prometheus scrape endpoint until
// signaled to stop.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/agentstack/ras-go/internal/config"
	"github.com/agentstack/ras-go/internal/obslog"
	"github.com/agentstack/ras-go/pkg/api"
	"github.com/agentstack/ras-go/pkg/auth"
	"github.com/agentstack/ras-go/pkg/bidi"
	"github.com/agentstack/ras-go/pkg/identity/local"
	"github.com/agentstack/ras-go/pkg/jsonrpc"
	obsprometheus "github.com/agentstack/ras-go/pkg/observability/prometheus"
	"github.com/agentstack/ras-go/pkg/rest"
	"github.com/agentstack/ras-go/pkg/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := obslog.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	metrics := obsprometheus.New(registry)

	identityProvider := local.NewWithCost(cfg.Argon2Time, cfg.Argon2MemoryKiB, cfg.Argon2Threads)

	sessions := session.New(session.Config{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL}, nil)
	sessions.RegisterProvider(identityProvider)

	rpcDispatcher := jsonrpc.NewBuilder(sessions, logger).
		WithMetrics(metrics).
		Register(
			jsonrpc.AuthenticatedRPC("session.whoami", auth.PermissionGroups{}, whoamiHandler),
		).
		Build()

	restDispatcher := rest.NewBuilder(sessions, logger).
		WithMetrics(metrics).
		Register(
			rest.Endpoint("POST", "/auth/session/{provider}", beginSessionHandler(sessions)),
		).
		Build()

	engine := bidi.NewEngine(rpcDispatcher, sessions, bidi.UpgradeOptional, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("rasd starting",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("ws_addr", cfg.WSAddr),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	return api.Serve(ctx, logger, cfg.HTTPAddr, cfg.WSAddr, cfg.MetricsAddr, api.Servers{
		JSONRPCPath:  "/rpc",
		JSONRPC:      rpcDispatcher,
		RESTBasePath: "/api",
		REST:         restDispatcher,
		WS:           engine,
		Metrics:      obsprometheus.Handler(registry),
	})
}

func whoamiHandler(_ context.Context, user auth.AuthenticatedUser, _ struct{}) (auth.AuthenticatedUser, error) {
	return user, nil
}

// beginSessionRequest's Username/Password fields match the local
// provider's payload shape; a deployment registering other providers
// would route their own credential shapes through their own REST route.
type beginSessionRequest struct {
	Provider string `json:"provider"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type beginSessionResponse struct {
	Token string `json:"token"`
}

func beginSessionHandler(sessions *session.Service) func(context.Context, beginSessionRequest) (beginSessionResponse, error) {
	return func(ctx context.Context, req beginSessionRequest) (beginSessionResponse, error) {
		payload, err := json.Marshal(struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}{req.Username, req.Password})
		if err != nil {
			return beginSessionResponse{}, err
		}

		token, err := sessions.BeginSession(ctx, req.Provider, payload)
		if err != nil {
			return beginSessionResponse{}, err
		}
		return beginSessionResponse{Token: token}, nil
	}
}
