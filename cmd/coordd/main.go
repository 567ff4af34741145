// coordd is the coordination daemon. It hosts the manager registry, the
// signed message transport, the router, the consensus coordinator and the
// heartbeat monitor behind one HTTP listener.
//
// Usage:
//
//	coordd serve                      # start the daemon
//	coordd serve --config coordd.yaml # with a config file
//	coordd version                    # show version info
//	coordd health                     # probe a running daemon
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/trinity-symphony/coordination/config"
	"github.com/trinity-symphony/coordination/consensus"
	"github.com/trinity-symphony/coordination/heartbeat"
	"github.com/trinity-symphony/coordination/history"
	"github.com/trinity-symphony/coordination/internal/clock"
	"github.com/trinity-symphony/coordination/internal/metrics"
	"github.com/trinity-symphony/coordination/registry"
	"github.com/trinity-symphony/coordination/router"
	"github.com/trinity-symphony/coordination/session"
	"github.com/trinity-symphony/coordination/transport"
	"github.com/trinity-symphony/coordination/types"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting coordd",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("manager_id", cfg.Manager.ID),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("coordd failed", zap.Error(err))
	}
	logger.Info("coordd stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	collector := metrics.NewCollector("trinity", prometheus.DefaultRegisterer)

	hist, err := openHistory(cfg)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer hist.Close()

	reg := registry.New(cfg.RegistryConfig(), logger)
	for _, m := range cfg.BootstrapManagers() {
		if err := reg.Register(m); err != nil {
			return fmt.Errorf("register bootstrap manager %s: %w", m.ID, err)
		}
	}

	tr := transport.New(cfg.TransportConfig(), reg, logger)
	rt := router.New(reg, metrics.InstrumentDeliverer(tr, collector), hist, logger)
	rt.SetFanoutObserver(collector.ObserveBroadcast)

	coord := consensus.New(rt, clock.New(), cfg.ConsensusConfig(), logger)
	coord.SetResultObserver(func(r consensus.Result) {
		collector.ObserveConsensusResolved(r.Approved)
	})

	sessions := session.New(rt, clock.New(), logger)

	collector.RegisterGauges("trinity",
		func() float64 { return float64(reg.Stats().Online) },
		func() float64 { return float64(sessions.Active()) },
	)

	// The local manager receives its traffic in-process.
	tr.RegisterHandler(cfg.Manager.ID, localHandler(coord, collector, logger))
	if err := reg.Register(&types.Manager{
		ID:           cfg.Manager.ID,
		Name:         cfg.Manager.Name,
		Endpoint:     types.EndpointInternal,
		Capabilities: cfg.Manager.Capabilities,
	}); err != nil {
		return fmt.Errorf("register local manager: %w", err)
	}

	monitor := heartbeat.New(reg, clock.New(), cfg.HeartbeatConfig(), logger)

	inbound := transport.NewServer(&transport.ServerConfig{
		SharedSecret: cfg.Transport.SharedSecret,
		ReplayWindow: cfg.Server.ReplayWindow,
		Logger:       logger,
	}, tr, func() any {
		stats := reg.Stats()
		return map[string]any{
			"status":          "ok",
			"manager_id":      cfg.Manager.ID,
			"managers":        stats.Managers,
			"online":          stats.Online,
			"average_trust":   stats.AverageTrust,
			"active_sessions": sessions.Active(),
		}
	})

	mux := http.NewServeMux()
	mux.Handle(transport.MessagePath, inbound)
	mux.Handle(transport.HealthPath, inbound)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	monitor.Start()
	defer monitor.Stop()

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// voteEnvelope is the consensus payload external managers POST back when
// responding to a proposal broadcast.
type voteEnvelope struct {
	RoundID string              `json:"roundId"`
	Vote    types.ConsensusVote `json:"vote"`
}

// localHandler processes messages addressed to this node. Consensus votes
// feed the coordinator; everything else is acknowledged and left to the
// history log.
func localHandler(coord *consensus.Coordinator, collector *metrics.Collector, logger *zap.Logger) transport.Handler {
	logger = logger.With(zap.String("component", "local_handler"))

	return func(ctx context.Context, msg *types.Message) (json.RawMessage, error) {
		if msg.Type != types.MessageConsensus {
			logger.Debug("message received",
				zap.String("message_id", msg.ID),
				zap.String("from", msg.From),
				zap.String("type", string(msg.Type)),
			)
			return json.RawMessage(`{"status":"accepted"}`), nil
		}

		var env voteEnvelope
		if err := json.Unmarshal(msg.Payload, &env); err != nil || env.RoundID == "" {
			// Not a ballot; proposal broadcasts land here too.
			return json.RawMessage(`{"status":"accepted"}`), nil
		}

		if err := coord.SubmitVote(env.RoundID, &env.Vote); err != nil {
			return nil, fmt.Errorf("submit vote: %w", err)
		}
		collector.ObserveVote(env.Vote.Vote)
		return json.RawMessage(`{"status":"vote_recorded"}`), nil
	}
}

func openHistory(cfg *config.Config) (history.Store, error) {
	switch cfg.History.Backend {
	case "redis":
		return history.NewRedisStore(history.RedisConfig{
			Addr:     cfg.History.RedisAddr,
			Password: cfg.History.RedisPassword,
			DB:       cfg.History.RedisDB,
		})
	default:
		return history.NewMemoryStore(), nil
	}
}

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8745", "Daemon address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + transport.HealthPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func printVersion() {
	fmt.Printf("coordd %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`coordd - Trinity Symphony coordination daemon

Usage:
  coordd <command> [options]

Commands:
  serve     Start the coordination daemon
  version   Show version information
  health    Check daemon health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Examples:
  coordd serve
  coordd serve --config /etc/trinity/coordd.yaml
  coordd health --addr http://localhost:8745
  coordd version`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
	return zap.New(core, zap.AddCaller())
}
