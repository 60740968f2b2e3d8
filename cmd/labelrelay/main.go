package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orrn/labelrelay/internal/api"
	"github.com/orrn/labelrelay/internal/api/handlers"
	"github.com/orrn/labelrelay/internal/api/middleware"
	"github.com/orrn/labelrelay/internal/cache"
	"github.com/orrn/labelrelay/internal/config"
	"github.com/orrn/labelrelay/internal/core"
	"github.com/orrn/labelrelay/internal/db"
	"github.com/orrn/labelrelay/internal/easypost"
	"github.com/orrn/labelrelay/internal/logging"
	"github.com/orrn/labelrelay/internal/metrics"
	"github.com/orrn/labelrelay/internal/printnode"
)

const usage = `usage: labelrelay [-config FILE] [command]

commands:
  serve          run the webhook server (default)
  import FILE    load accounts and printers from an export file ("-" for stdin)
  export         write all accounts and printers as JSON to stdout
  token SUBJECT  print a management API token
`

func main() {
	configPath := flag.String("config", "labelrelay.yaml", "path to the YAML config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		panic("Invalid configuration: " + err.Error())
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	command := flag.Arg(0)
	if command == "" {
		command = "serve"
	}

	switch command {
	case "serve":
		err = serve(cfg, logger)
	case "import":
		err = importAccounts(cfg, flag.Arg(1))
	case "export":
		err = exportAccounts(cfg, os.Stdout)
	case "token":
		err = printToken(cfg, flag.Arg(1))
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("command failed", zap.String("command", command), zap.Error(err))
	}
}

func openDB(cfg *config.Config) (*db.DB, error) {
	return db.Open(db.Config{
		Path:          cfg.Database.Path,
		EncryptionKey: cfg.Database.EncryptionKey,
	})
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting labelrelay",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Path),
		zap.Bool("verify_signatures", cfg.Webhook.VerifySignatures),
	)

	database, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("Error closing database", zap.Error(err))
		}
	}()

	m := metrics.New()

	resolver := core.NewResolver(
		db.NewAccountStore(database),
		easypost.Factory(easypost.Config{
			BaseURL: cfg.Providers.ShippingBaseURL,
			Timeout: cfg.Providers.RequestTimeout,
		}, logger),
		core.LegacyConfig{
			ShippingAPIKey: cfg.Legacy.ShippingAPIKey,
			PrintAPIKey:    cfg.Legacy.PrintAPIKey,
			PrinterID:      cfg.Legacy.PrinterID,
			WebhookSecret:  cfg.Legacy.WebhookSecret,
		},
		logger,
	)
	dispatcher := core.NewDispatcher(printnode.Factory(printnode.Config{
		BaseURL: cfg.Providers.PrintBaseURL,
		Timeout: cfg.Providers.RequestTimeout,
	}, logger), logger)

	opts := []core.Option{core.WithRecorder(m), core.WithLogger(logger)}
	if cfg.Idempotency.Enabled {
		store, err := newIdempotencyStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, core.WithIdempotency(store, cfg.Idempotency.TTL))
		logger.Info("Idempotency guard enabled", zap.String("backend", cfg.Idempotency.Backend))
	}

	pipeline := core.NewPipeline(
		resolver,
		core.NewFetcher(core.NewHTTPDownloader(cfg.Fetcher.DownloadTimeout), logger),
		core.NewNormalizer(logger),
		dispatcher,
		opts...,
	)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := api.NewRouter(api.RouterConfig{
		Webhooks: handlers.NewWebhookHandler(core.NewIngestor(pipeline, logger), resolver, handlers.WebhookOptions{
			VerifySignatures: cfg.Webhook.VerifySignatures,
			SignatureHeader:  cfg.Webhook.SignatureHeader,
			MaxBodyBytes:     cfg.Server.MaxBodyBytes,
		}),
		Manage:  handlers.NewManageHandler(resolver),
		Auth:    middleware.NewAdminAuth(cfg.Admin.APIKey, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL),
		Metrics: m.Handler(),
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}

type idempotencyStore interface {
	core.IdempotencyStore
	Close() error
}

func newIdempotencyStore(cfg *config.Config) (idempotencyStore, error) {
	if cfg.Idempotency.Backend == "redis" {
		store, err := cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect idempotency backend: %w", err)
		}
		return store, nil
	}
	return cache.NewMemoryStore(), nil
}

func importAccounts(cfg *config.Config, path string) error {
	if path == "" {
		return errors.New("import requires a file argument")
	}

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := database.Import(context.Background(), r)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "imported %d accounts\n", n)
	return nil
}

func exportAccounts(cfg *config.Config, w io.Writer) error {
	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	export, err := database.Export(context.Background())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}

func printToken(cfg *config.Config, subject string) error {
	if subject == "" {
		subject = "admin"
	}
	token, err := middleware.NewAdminAuth(cfg.Admin.APIKey, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL).GenerateToken(subject)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
