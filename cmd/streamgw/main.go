package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/gamestream/streamctl/internal/config"
	"github.com/gamestream/streamctl/internal/controlplane"
	"github.com/gamestream/streamctl/internal/gateway"
	"github.com/gamestream/streamctl/internal/hoststats"
	"github.com/gamestream/streamctl/internal/logging"
	"github.com/gamestream/streamctl/internal/transport"
)

func main() {
	mockMode := flag.Bool("mock", false, "Serve sessions from the in-process mock control plane")
	configPath := flag.String("config", "streamctl.yaml", "Path to config file (.yaml or .toml)")
	port := flag.Int("port", 0, "Override gateway port")
	jsonLogs := flag.Bool("log-json", false, "Log JSON lines instead of console output")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logging.New("streamgw", logging.Options{})
		bootLog.Fatal().Err(err).Msg("load config")
	}
	if *port > 0 {
		cfg.Gateway.Port = *port
	}

	logger := logging.New("streamgw", logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON || *jsonLogs})

	cp, cleanup, err := controlPlane(cfg, *mockMode, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("control plane")
	}
	defer cleanup()

	gw := gateway.New(cp, cfg.ConnectionTimeout(), logger.With().Str("component", "gateway").Logger())
	server := gateway.NewServer(gw, cfg.Gateway.AuthToken, cfg.Gateway.AllowedOrigins, cfg.Gateway.MaxPerformanceClients, logger)
	defer server.Close()

	mux := http.NewServeMux()
	server.SetupRoutes(mux)
	httpServer := gateway.NewHTTPServer(cfg.Gateway.Host, cfg.Gateway.Port, server.Handler(mux))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Bool("mock", *mockMode).Msg("gateway listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("shutdown")
		}
	}
}

// controlPlane builds the single control-plane client shared by every
// request for the life of the process.
func controlPlane(cfg *config.Config, mock bool, logger zerolog.Logger) (controlplane.Client, func(), error) {
	if !mock {
		if cfg.ControlPlane.Endpoint == "" {
			return nil, nil, errors.New("control_plane.endpoint is required without -mock")
		}
		logger.Info().Str("endpoint", cfg.ControlPlane.Endpoint).Msg("using control plane")
		c := controlplane.NewHTTPClient(cfg.ControlPlane.Endpoint, cfg.ControlPlane.Token, cfg.ControlPlane.RequestTimeout)
		return c, func() {}, nil
	}

	host, err := transport.NewHost(transport.HostConfig{
		ICEServers:    cfg.Transport.ICEServers,
		GatherTimeout: cfg.Transport.GatherTimeout,
		LoggerFactory: logging.NewPionFactory(logger, cfg.Transport.LogLevel),
	})
	if err != nil {
		return nil, nil, err
	}

	var perf controlplane.PerformanceSource
	if sampler, err := hoststats.New(0); err != nil {
		logger.Warn().Err(err).Msg("host stats unavailable, performance feed disabled")
	} else {
		perf = sampler
	}

	mockLogger := logger.With().Str("component", "mock").Logger()
	cp := controlplane.NewMock(controlplane.MockConfig{
		AccountID:         cfg.Mock.AccountID,
		DefaultRegion:     cfg.Mock.DefaultRegion,
		ActivationDelay:   cfg.Mock.ActivationDelay,
		PerformancePeriod: cfg.Mock.PerformancePeriod,
	}, host, perf, mockLogger)
	mockLogger.Info().Dur("activation_delay", cfg.Mock.ActivationDelay).Msg("using mock control plane")

	return cp, func() { host.Close() }, nil
}
