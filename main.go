package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xiaot623/nudge/internal/adapter/llm"
	"github.com/xiaot623/nudge/internal/adapter/mailer"
	"github.com/xiaot623/nudge/internal/adapter/push"
	"github.com/xiaot623/nudge/internal/advice"
	"github.com/xiaot623/nudge/internal/config"
	"github.com/xiaot623/nudge/internal/dispatch"
	"github.com/xiaot623/nudge/internal/moderation"
	"github.com/xiaot623/nudge/internal/repository"
	"github.com/xiaot623/nudge/internal/service"
	handler "github.com/xiaot623/nudge/internal/transport/http"
	"github.com/xiaot623/nudge/policy"
)

var (
	httpPort     int
	internalPort int
	databaseURL  string
)

var rootCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Moderated group chat and nudge delivery service",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the external and internal HTTP servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cmd.Flags().Changed("http-port") {
			cfg.HTTPPort = httpPort
		}
		if cmd.Flags().Changed("internal-port") {
			cfg.InternalPort = internalPort
		}
		if cmd.Flags().Changed("db") {
			cfg.DatabaseURL = databaseURL
		}
		return serve(cfg)
	},
}

func init() {
	serveCmd.Flags().IntVar(&httpPort, "http-port", 8080, "external HTTP port")
	serveCmd.Flags().IntVar(&internalPort, "internal-port", 8081, "internal HTTP port")
	serveCmd.Flags().StringVar(&databaseURL, "db", "", "SQLite DSN")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func serve(cfg *config.Config) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting nudge",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("internal_port", cfg.InternalPort),
		zap.String("database", cfg.DatabaseURL),
		zap.String("llm_provider", cfg.LLMProvider))

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Initialize LLM client
	llmClient, err := llm.NewLLMClient(ctx, llm.Options{
		Provider: cfg.LLMProvider,
		BaseURL:  cfg.LLMBaseURL,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		Timeout:  cfg.LLMTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	// Delivery channels
	pusher := push.NewClient(cfg.PushURL, cfg.PushAccessToken, cfg.PushBatchTimeout)
	mail := mailer.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom, cfg.SMTPTimeout)
	dispatcher := dispatch.NewDispatcher(pusher, mail, cfg.PushBatchTimeout, logger.Named("dispatch"))

	// Initialize service
	svc := service.New(db,
		moderation.NewEngine(llmClient, "", logger.Named("moderation")),
		advice.NewEngine(db, llmClient, "", cfg.AdviceHistoryLimit, logger.Named("advice")),
		dispatcher,
		cfg, policyEngine, logger)

	externalServer := handler.NewExternalServer(svc, logger.Named("http"))
	internalServer := handler.NewInternalServer(svc, logger.Named("internal"))

	errCh := make(chan error, 2)

	// Start external server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := externalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("external server: %w", err)
		}
	}()

	// Start internal server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.InternalPort)
		if err := internalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("internal server: %w", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-errCh:
		logger.Error("server failed", zap.Error(runErr))
	}

	logger.Info("shutting down")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := externalServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown external server gracefully", zap.Error(err))
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown internal server gracefully", zap.Error(err))
	}

	logger.Info("stopped")
	return runErr
}
