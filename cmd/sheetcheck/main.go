package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/sheetcheck/internal/grader"
	"github.com/pavelanni/sheetcheck/internal/handler"
	appI18n "github.com/pavelanni/sheetcheck/internal/i18n"
	"github.com/pavelanni/sheetcheck/internal/llm"
	"github.com/pavelanni/sheetcheck/internal/llm/prompts"
	"github.com/pavelanni/sheetcheck/internal/metrics"
	"github.com/pavelanni/sheetcheck/internal/model"
	"github.com/pavelanni/sheetcheck/internal/store"
	"github.com/pavelanni/sheetcheck/internal/workflow"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sheetcheck",
		Short:        "Client for an AI answer sheet grading service",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), resultsCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `sheetcheck --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addServiceFlags registers the flags every command needs to reach the
// grading service and report back.
func addServiceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("service-url", grader.DefaultBaseURL, "Grading service base URL")
	f.Duration("http-timeout", time.Minute, "Timeout for a single request to the grading service")
	f.StringP("lang", "l", "en", "Report and message language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json, pretty)")
}

// addPollFlags registers the result polling policy.
func addPollFlags(cmd *cobra.Command) {
	def := workflow.DefaultRetryPolicy()
	f := cmd.Flags()
	f.Duration("poll-initial-delay", def.InitialDelay, "Wait before the first results poll")
	f.Duration("poll-interval", def.Interval, "Wait between results polls")
	f.Duration("poll-max-interval", def.MaxInterval, "Upper bound for the poll interval when it grows")
	f.Float64("poll-multiplier", def.Multiplier, "Interval growth factor per poll (1 = fixed)")
	f.Int("poll-max-attempts", def.MaxAttempts, "Give up after this many polls (0 = no limit)")
	f.Duration("poll-timeout", def.Timeout, "Give up after this long (0 = no limit)")
}

// addLLMFlags registers the optional class summary model.
func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", "", "OpenAI-compatible API base URL for class summaries (empty disables them)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("summary-variant", string(prompts.VariantStandard), "Summary prompt variant (brief, standard, detailed)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local grading workflow API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /grading)")
	addServiceFlags(cmd)
	addPollFlags(cmd)
	addLLMFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	case "pretty":
		logHandler = tint.NewHandler(os.Stderr, &tint.Options{Level: logLevel, TimeFormat: time.Kitchen})
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("SHEETCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("sheetcheck")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/sheetcheck")
	v.AddConfigPath("/etc/sheetcheck")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// appConfig collects the settings shared by all commands.
func appConfig(v *viper.Viper) model.AppConfig {
	return model.AppConfig{
		ServiceURL:  v.GetString("service-url"),
		HTTPTimeout: v.GetDuration("http-timeout"),
		Poll: model.PollConfig{
			InitialDelay: v.GetDuration("poll-initial-delay"),
			Interval:     v.GetDuration("poll-interval"),
			MaxInterval:  v.GetDuration("poll-max-interval"),
			Multiplier:   v.GetFloat64("poll-multiplier"),
			MaxAttempts:  v.GetInt("poll-max-attempts"),
			Timeout:      v.GetDuration("poll-timeout"),
		},
		Lang:           v.GetString("lang"),
		SummaryVariant: strings.ToLower(strings.TrimSpace(v.GetString("summary-variant"))),
	}
}

// newSummarizer returns nil when no LLM endpoint is configured.
func newSummarizer(v *viper.Viper, variant string) (*llm.Client, error) {
	url := v.GetString("llm-url")
	if url == "" {
		return nil, nil
	}
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid summary-variant, using standard", "variant", variant)
		variant = string(prompts.VariantStandard)
	}
	c, err := llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"), variant)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	slog.Info("class summaries enabled", "url", url, "model", v.GetString("llm-model"), "variant", variant)
	return c, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	cfg := appConfig(v)

	if err := appI18n.Init(cfg.Lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	metrics.Register()

	db, err := store.New()
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := grader.New(cfg.ServiceURL, cfg.HTTPTimeout)
	if err := client.Ping(ctx); err != nil {
		slog.Warn("grading service not reachable yet", "url", client.BaseURL(), "error", err)
	} else {
		slog.Info("grading service OK", "url", client.BaseURL())
	}

	var summarizer handler.Summarizer
	if c, err := newSummarizer(v, cfg.SummaryVariant); err != nil {
		return err
	} else if c != nil {
		summarizer = c
	}

	h, err := handler.New(db, client, summarizer, client.BaseURL(),
		workflow.WithPolicy(workflow.PolicyFromConfig(cfg.Poll)))
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(cfg.Lang))

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Handle("/metrics", promhttp.Handler())
			h.Routes(sub)
		})
	} else {
		r.Handle("/metrics", promhttp.Handler())
		h.Routes(r)
	}

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server",
			"addr", srv.Addr,
			"service_url", client.BaseURL(),
			"lang", cfg.Lang,
			"base_path", basePath,
			"poll_interval", cfg.Poll.Interval,
			"poll_timeout", cfg.Poll.Timeout,
			"summaries", summarizer != nil,
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if cerr := h.Close(); cerr != nil {
			slog.Warn("close session", "error", cerr)
		}
		return err
	})
	return g.Wait()
}
