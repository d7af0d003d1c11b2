// Command chatgov is the usage-governance service of the chat-to-game bridge.
// It:
//   - Loads configuration and initializes structured logging, metrics and tracing.
//   - Opens the snapshot store (memory, Postgres or Redis) and the save's session,
//     restoring the usage ledger and running the load-time sweep.
//   - Registers the configured chat commands with the dispatcher.
//   - Runs the autosave/daily-sweep loop and the HTTP API.
//
// Shutdown is graceful on SIGINT/SIGTERM and ends with a final save.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/chatgov/config"
	"github.com/onnwee/chatgov/dispatch"
	"github.com/onnwee/chatgov/governance"
	"github.com/onnwee/chatgov/server"
	"github.com/onnwee/chatgov/session"
	"github.com/onnwee/chatgov/settings"
	"github.com/onnwee/chatgov/store"
	"github.com/onnwee/chatgov/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Optional; requires OTEL_EXPORTER_OTLP_ENDPOINT
	shutdown, err := telemetry.InitTracing("chatgov", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg)
	if err != nil {
		slog.Error("snapshot store unavailable", slog.String("backend", cfg.StoreBackend), slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close store", slog.Any("err", err))
		}
	}()
	slog.Info("snapshot store ready", slog.String("backend", cfg.StoreBackend))

	var (
		clock  governance.Clock
		manual *governance.ManualClock
	)
	switch cfg.ClockMode {
	case config.ClockElapsed:
		clock = governance.ElapsedClock{Epoch: cfg.GameEpoch, DayLength: cfg.GameDayLength}
	default:
		manual = governance.NewManualClock(cfg.StartDay)
		clock = manual
	}

	ps := settings.New(cfg.Policy, cfg.Commands)
	sess, err := session.Open(ctx, st, cfg.SaveID, clock, cfg.Tables, ps)
	if err != nil {
		// a ledger that cannot be restored is a save-load failure
		slog.Error("failed to open session", slog.Any("err", err))
		os.Exit(1)
	}

	disp := dispatch.New(sess.Engine(), ps, dispatch.WithPrefix(cfg.CommandPrefix))
	for name := range cfg.Commands {
		disp.Register(name, logAction(name))
	}
	slog.Info("commands registered", slog.Any("commands", disp.Commands()))

	done := make(chan struct{})
	go func() {
		sess.Run(ctx, cfg.AutosaveInterval)
		close(done)
	}()

	if err := server.Start(ctx, server.Deps{Session: sess, Store: st, Dispatcher: disp, Clock: manual}, cfg.HTTPAddr); err != nil {
		slog.Error("http server exited with error", slog.Any("err", err))
		stop()
	}

	<-done
	slog.Info("shutdown complete")
}

// logAction stands in for the game-side effect of a command; the host reacts
// to the granted outcome.
func logAction(name string) dispatch.Action {
	return func(ctx context.Context, req dispatch.Request) error {
		telemetry.LoggerWithCorr(ctx).Info("command executed",
			slog.String("command", name), slog.String("user", req.User), slog.Any("args", req.Args))
		return nil
	}
}
