package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	log "log/slog"

	"github.com/aunorthrop/nora/pkg/notebook"
	"github.com/aunorthrop/nora/pkg/storage/loamstore"
	"github.com/aunorthrop/nora/pkg/storage/pgstore"
	"github.com/aunorthrop/nora/pkg/transport/httpchat"
	"github.com/aunorthrop/nora/pkg/transport/realtime"
	"github.com/aunorthrop/nora/pkg/voice/capture"
	"github.com/aunorthrop/nora/pkg/voice/speech"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	gatewayURL := cli.StringP("gateway", "g", "http://localhost:8080", "Gateway base URL")
	mode := cli.StringP("mode", "m", "http", "Transport mode: http or realtime")
	vaultPath := cli.StringP("vault", "v", defaultVaultPath(), "Notebook vault directory")
	chimePath := cli.StringP("chime", "c", "", "Startup chime mp3 (optional)")
	clear := cli.Bool("clear", false, "Clear the notebook and exit")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	logger := log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevelMap[*logLevel],
	}))
	log.SetDefault(logger)

	loadEnvFile(logger, *envFile, cli.CommandLine.Changed("env"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, *vaultPath, logger)
	if err != nil {
		log.Error("Failed to open notebook storage", "err", err)
		os.Exit(1)
	}

	if *clear {
		store.Clear(ctx)
		log.Info("Notebook cleared")
		return
	}

	if err := store.Load(ctx); err != nil {
		log.Error("Failed to load notebook", "err", err)
		os.Exit(1)
	}
	log.Info("Notebook loaded", "notes", store.Len())

	transport, err := buildTransport(ctx, *mode, *gatewayURL, logger)
	if err != nil {
		log.Error("Failed to build transport", "mode", *mode, "err", err)
		os.Exit(1)
	}

	speaker := speech.NewCommandSpeaker(speech.DefaultSpeakerConfig(), logger)
	mic := capture.NewConsole(os.Stdin, logger)

	session := notebook.NewSession(notebook.DefaultSessionConfig(), mic, speaker, transport, store, logger)
	if err := session.Start(); err != nil {
		log.Error("Failed to start session", "err", err)
		os.Exit(1)
	}

	if *chimePath != "" {
		if err := speech.PlayChime(*chimePath); err != nil {
			log.Warn("Startup chime failed", "err", err)
		}
	}

	log.Info("Listening", "mode", *mode, "gateway", *gatewayURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutting down", "signal", sig.String())
		session.Stop()
	case <-session.Done():
		log.Info("Session ended")
	}
}

// loadEnvFile loads an optional env file. Only the implicit default may be
// missing silently; a path the user named is always worth a warning.
func loadEnvFile(logger *log.Logger, path string, explicit bool) {
	if err := godotenv.Load(path); err != nil {
		if explicit || !os.IsNotExist(err) {
			logger.Warn("Env file not loaded", "path", path, "err", err)
		}
	}
}

// openStore uses Postgres when NORA_POSTGRES_DSN is set, otherwise a local
// document vault.
func openStore(ctx context.Context, vaultPath string, logger *log.Logger) (*notebook.Store, error) {
	if dsn := os.Getenv("NORA_POSTGRES_DSN"); dsn != "" {
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		return notebook.NewStore(pg, logger), nil
	}

	vault, err := loamstore.Open(vaultPath, logger)
	if err != nil {
		return nil, err
	}
	return notebook.NewStore(vault, logger), nil
}

func buildTransport(ctx context.Context, mode, gatewayURL string, logger *log.Logger) (notebook.Transport, error) {
	client := httpchat.NewClient(gatewayURL)
	if mode != "realtime" {
		return client, nil
	}

	info, err := client.FetchConnectionInfo(ctx)
	if err != nil {
		return nil, err
	}
	sess := realtime.NewSession(info, realtime.Config{
		Instructions: notebook.DefaultInstructions,
		Sampling:     notebook.DefaultSessionConfig().Sampling,
	}, logger)
	if err := sess.Connect(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

func defaultVaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nora"
	}
	return filepath.Join(home, ".nora", "notebook")
}
