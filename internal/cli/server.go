package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daily-quiz-bot/internal/app"
	"daily-quiz-bot/internal/clock"
	"daily-quiz-bot/internal/config"
	"daily-quiz-bot/internal/logger"
	transport "daily-quiz-bot/internal/transport/http"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	quizzes, err := b.catalog(cfg, log)
	if err != nil {
		return err
	}
	if _, err := quizzes.CurrentPeriod(ctx, time.Now()); err != nil {
		// not fatal: the bot answers "no active quiz" until one is published
		log.Warn("no quiz active at startup", "error", err)
	}

	bands := make([]app.Band, 0, len(cfg.Quiz.Bands))
	for _, band := range cfg.Quiz.Bands {
		bands = append(bands, app.Band{MinScore: band.MinScore, Label: band.Label})
	}

	clk := clock.New()
	hub := transport.NewHub()
	service, err := app.NewQuizService(b.store(cfg, log), quizzes, hub, app.NewTimers(clk, log), app.Options{
		QuestionTime:    config.Duration(cfg.Quiz.QuestionTime, 60*time.Second),
		RefreshInterval: config.Duration(cfg.Quiz.RefreshInterval, 5*time.Second),
		FeedbackDelay:   config.Duration(cfg.Quiz.FeedbackDelay, 2*time.Second),
		LeaderboardSize: cfg.Quiz.LeaderboardSize,
		Admins:          cfg.Quiz.Admins,
		Bands:           bands,
		Clock:           clk,
		Logger:          log.With("component", "quiz"),
	})
	if err != nil {
		return err
	}
	defer service.Close()

	bot := app.NewBot(service, hub, log.With("component", "bot"))
	wsHandler := transport.NewWSHandler(hub, bot, log.With("component", "ws"))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting quiz bot", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
