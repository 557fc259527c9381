package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/gamestream/streamctl/internal/app"
	"github.com/gamestream/streamctl/internal/client"
	"github.com/gamestream/streamctl/internal/config"
	"github.com/gamestream/streamctl/internal/history"
	"github.com/gamestream/streamctl/internal/lifecycle"
	"github.com/gamestream/streamctl/internal/logging"
	"github.com/gamestream/streamctl/internal/telemetry"
	"github.com/gamestream/streamctl/internal/transport"
)

func main() {
	configPath := flag.String("config", "streamctl.yaml", "Path to config file (.yaml or .toml)")
	gatewayURL := flag.String("gateway", "", "Override the Session Gateway URL")
	token := flag.String("token", "", "Gateway auth token")
	appID := flag.String("app", "", "Application identifier")
	groupID := flag.String("group", "", "Stream group identifier")
	regions := flag.String("regions", "", "Comma separated region preference")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *gatewayURL, *token, *appID, *groupID, *regions)

	logger, closeLog, err := fileLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open log: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("exit")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config, gatewayURL, token, appID, groupID, regions string) {
	if gatewayURL != "" {
		cfg.Client.GatewayURL = gatewayURL
	}
	if token != "" {
		cfg.Client.Token = token
	}
	if appID != "" {
		cfg.Client.ApplicationID = appID
	}
	if groupID != "" {
		cfg.Client.StreamGroupID = groupID
	}
	if regions != "" {
		cfg.Client.Regions = app.ParseRegions(regions)
	}
}

// fileLogger keeps log output off the alternate screen.
func fileLogger(cfg *config.Config) (zerolog.Logger, func(), error) {
	path := cfg.Log.File
	if path == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		path = filepath.Join(dir, "streamctl", "streamctl.log")
	}
	f, err := logging.OpenFile(path)
	if err != nil {
		return zerolog.Nop(), func() {}, err
	}
	logger := logging.New("streamctl", logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, NoColor: true, Out: f})
	return logger, func() { f.Close() }, nil
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()
	bridge := app.NewBridge()

	initial := lifecycle.State{
		ApplicationID: cfg.Client.ApplicationID,
		StreamGroupID: cfg.Client.StreamGroupID,
		Regions:       cfg.Client.Regions,
	}

	var hist *history.Store
	if cfg.History.Path != "" {
		store, err := history.Open(ctx, cfg.History.Path, cfg.History.Limit)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.History.Path).Msg("session history disabled")
		} else {
			hist = store
			defer hist.Close()
			if latest, err := hist.Latest(ctx); err == nil {
				initial.PendingSessionARN = latest.ARN
			}
		}
	}

	ctrl, err := lifecycle.New(lifecycle.Options{
		Gateway: client.NewHTTPClient(cfg.Client.GatewayURL, cfg.Client.Token),
		NewEngine: transport.NewPeerFactory(transport.PeerConfig{
			ICEServers:    cfg.Transport.ICEServers,
			GatherTimeout: cfg.Transport.GatherTimeout,
			LoggerFactory: logging.NewPionFactory(logger, cfg.Transport.LogLevel),
		}),
		Notifier:     bridge,
		PollTimeout:  cfg.Client.PollTimeout,
		PollInterval: cfg.Client.PollInterval,
		Initial:      initial,
		Logger:       logger.With().Str("component", "lifecycle").Logger(),
	})
	if err != nil {
		return err
	}
	defer ctrl.Shutdown()

	sampler := telemetry.NewSampler(telemetry.SamplerOptions{
		Source:   ctrl,
		Interval: cfg.Stats.Interval,
		OnSample: bridge.OnSample,
		Logger:   logger.With().Str("component", "telemetry").Logger(),
	})
	defer sampler.Stop()

	deps := app.Deps{
		Controller:    ctrl,
		Stats:         sampler,
		Perf:          client.NewPerformanceClient(cfg.Client.GatewayURL, cfg.Client.Token),
		Bridge:        bridge,
		ApplicationID: cfg.Client.ApplicationID,
		StreamGroupID: cfg.Client.StreamGroupID,
		GatewayURL:    strings.TrimRight(cfg.Client.GatewayURL, "/"),
		Logger:        logger.With().Str("component", "ui").Logger(),
	}
	if hist != nil {
		deps.History = hist
	}

	logger.Info().Str("gateway", deps.GatewayURL).Msg("starting")
	_, err = tea.NewProgram(app.New(deps), tea.WithAltScreen()).Run()
	return err
}
