package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"life-coach-agent/handler"
	"life-coach-agent/internal/config"
	"life-coach-agent/internal/integrations/anthropic"
	"life-coach-agent/internal/integrations/openai"
	"life-coach-agent/internal/integrations/paramstore"
	"life-coach-agent/internal/repository"
	"life-coach-agent/internal/usecase"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load configuration", err)
	}

	ctx := context.Background()

	// ---- AWS SDK config ----
	var awsCfg aws.Config
	if cfg.NeedsAWS() {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			fatal("failed to load AWS config", err)
		}
	}

	// ---- Clients ----
	tokens, err := tokenSource(cfg, awsCfg)
	if err != nil {
		fatal("failed to create token source", err)
	}
	llm, err := newCompleter(ctx, cfg, tokens)
	if err != nil {
		fatal("failed to create model client", err)
	}

	store, closeStore, err := newStore(cfg, awsCfg)
	if err != nil {
		fatal("failed to create session store", err)
	}
	defer closeStore()

	// ---- Handler ----
	coach, err := usecase.NewCoachService(llm, store, cfg.CompletionTimeout, cfg.MaxInputLength)
	if err != nil {
		fatal("failed to create coach service", err)
	}
	h, err := handler.NewHandler(coach)
	if err != nil {
		fatal("failed to create handler", err)
	}
	router := h.Routes(cfg.AllowedOrigins)

	slog.Info("starting",
		"provider", cfg.Provider,
		"state_backend", cfg.StateBackend,
		"lambda", isLambda(),
	)

	if isLambda() {
		l, err := handler.NewLambda(router)
		if err != nil {
			fatal("failed to create lambda adapter", err)
		}
		lambda.Start(l.Handle)
		return
	}

	serve(cfg.Port, router)
}

func serve(port string, router http.Handler) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server listening", "addr", "http://localhost:"+port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server failed", err)
		}
	}()

	<-ctx.Done()
	stop()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "err", err)
	}
}

// tokenSource prefers an explicit API key and falls back to SSM.
func tokenSource(cfg *config.Config, awsCfg aws.Config) (openai.TokenSource, error) {
	key := cfg.OpenAI.APIKey
	if cfg.Provider == config.ProviderAnthropic {
		key = cfg.Anthropic.APIKey
	}
	if key != "" {
		return paramstore.StaticToken(key), nil
	}

	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	return paramstore.NewTokenSource(ssmClient, cfg.TokenParameter())
}

func newCompleter(ctx context.Context, cfg *config.Config, tokens openai.TokenSource) (usecase.Completer, error) {
	if cfg.Provider == config.ProviderAnthropic {
		// The Anthropic SDK takes its key at construction.
		key, err := tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		return anthropic.NewClient(key, cfg.Anthropic.Model, cfg.Anthropic.BaseURL)
	}
	return openai.NewClient(tokens, cfg.OpenAI.Model, openai.WithBaseURL(cfg.OpenAI.BaseURL))
}

func newStore(cfg *config.Config, awsCfg aws.Config) (repository.Store, func(), error) {
	noop := func() {}
	switch cfg.StateBackend {
	case config.BackendDynamoDB:
		store, err := repository.NewDynamo(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable, cfg.SessionTTL)
		return store, noop, err
	case config.BackendSQLite:
		store, err := repository.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Error("failed to close session store", "err", err)
			}
		}, nil
	default:
		return repository.NewMemory(), noop, nil
	}
}

func isLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
