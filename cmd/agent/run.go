package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-chat-agent/internal/config"
	httpapi "github.com/tbourn/go-chat-agent/internal/http"
	"github.com/tbourn/go-chat-agent/internal/http/handlers"
	"github.com/tbourn/go-chat-agent/internal/llm"
	"github.com/tbourn/go-chat-agent/internal/observability"
	"github.com/tbourn/go-chat-agent/internal/profile"
	"github.com/tbourn/go-chat-agent/internal/repo"
	"github.com/tbourn/go-chat-agent/internal/services"
	"github.com/tbourn/go-chat-agent/internal/sysutil"
	"github.com/tbourn/go-chat-agent/internal/tools"
	"github.com/tbourn/go-chat-agent/internal/transport/telegram"
)

const shutdownGrace = 10 * time.Second

func newRunCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the Telegram assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAgent(ctx, cfg, version)
		},
	}
}

// retryConfig maps the LLM settings onto the retry decorator.
func retryConfig(c config.LLMConfig) llm.RetryConfig {
	rc := llm.DefaultRetryConfig()
	rc.MaxAttempts = uint(c.MaxAttempts)
	rc.AttemptTimeout = c.Timeout
	return rc
}

// runtimeConfig maps the agent settings onto the worker pool.
func runtimeConfig(c config.AgentConfig) services.RuntimeConfig {
	return services.RuntimeConfig{
		QueueCapacity:      c.QueueCapacity,
		Workers:            c.WorkerCount,
		MaxContextMessages: c.MaxContextMessages,
		MaxReplyChars:      c.MaxReplyChars,
		ProfileFactsLimit:  c.ProfileFactsLimit,
	}
}

// newToolRegistry builds the fixed tool set over the store.
func newToolRegistry(facts tools.FactReader, limit int) *tools.Registry {
	return tools.NewRegistry(
		tools.NewClock(time.Now),
		tools.Calculator{},
		tools.NewProfileRecall(facts, limit),
	)
}

func runAgent(ctx context.Context, cfg config.Config, version string) (err error) {
	lg := sysutil.SetupLogging(cfg.LogLevel, cfg.OTEL.ServiceName, cfg.LogPretty)
	for _, w := range cfg.Warnings() {
		lg.Warn().Msg(w)
	}

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, observability.Build{
		Version:   version,
		AgentName: cfg.Agent.Name,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if ferr := shutdownTracing(sctx); ferr != nil {
			lg.Warn().Err(ferr).Msg("tracer flush failed")
		}
	}()

	db, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer closeDB(db)
	store := repo.NewStore(db)

	client, err := llm.New(ctx, llm.Options{
		Provider:      cfg.LLM.Provider,
		OpenAIKey:     cfg.LLM.OpenAIKey,
		OpenAIModel:   cfg.LLM.OpenAIModel,
		OpenAIBaseURL: cfg.LLM.OpenAIBaseURL,
		GeminiKey:     cfg.LLM.GeminiKey,
		GeminiModel:   cfg.LLM.GeminiModel,
		Retry:         retryConfig(cfg.LLM),
	})
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	client.OnRetry(func(err error, wait time.Duration) {
		lg.Warn().Err(err).Dur("retry_in", wait).Msg("llm call failed, retrying")
	})

	registry := newToolRegistry(store, cfg.Agent.ProfileFactsLimit)

	tg, err := telegram.NewClient(
		&http.Client{Timeout: cfg.Telegram.PollTimeout + 15*time.Second},
		cfg.Telegram.APIBaseURL,
		cfg.Telegram.Token,
	)
	if err != nil {
		return err
	}
	me, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	lg.Info().Int64("bot_id", me.ID).Str("bot_username", me.Username).Msg("telegram bot identified")

	rt := services.NewRuntime(runtimeConfig(cfg.Agent), services.Deps{
		Store:     store,
		Extractor: profile.NewExtractor(),
		Planner:   services.NewPlanner(client, cfg.Agent.Name, registry.Names()),
		Responder: services.NewResponder(client, cfg.Agent.Name),
		Tools:     registry,
		Sender:    tg,
	})
	gw := telegram.NewGateway(tg, rt,
		telegram.WithPollTimeout(cfg.Telegram.PollTimeout),
		telegram.WithWebhookSecret(cfg.Telegram.WebhookSecret),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.Run(gctx) })

	if cfg.Telegram.Mode == config.TelegramPolling {
		g.Go(func() error { return gw.Poll(gctx) })
	}

	if cfg.HTTPEnabled {
		var webhook handlers.WebhookReceiver
		if cfg.Telegram.Mode == config.TelegramWebhook {
			webhook = gw
		}
		srv := httpapi.NewServer(cfg, httpapi.NewEngine(httpapi.Deps{
			Store:   store,
			Queue:   rt,
			Webhook: webhook,
		}, cfg))
		g.Go(func() error { return serveHTTP(srv, lg) })
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	lg.Info().
		Str("agent", cfg.Agent.Name).
		Str("provider", cfg.LLM.Provider).
		Str("telegram_mode", cfg.Telegram.Mode).
		Bool("http", cfg.HTTPEnabled).
		Msg("agent started")

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	lg.Info().Err(err).Msg("agent stopped")
	return err
}

func serveHTTP(srv *http.Server, lg zerolog.Logger) error {
	lg.Info().Str("addr", srv.Addr).Msg("http listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}
