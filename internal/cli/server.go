package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"lingo-quiz-service/internal/app"
	"lingo-quiz-service/internal/config"
	"lingo-quiz-service/internal/domain"
	"lingo-quiz-service/internal/infra/memory"
	pgloader "lingo-quiz-service/internal/infra/postgres"
	redisinfra "lingo-quiz-service/internal/infra/redis"
	transport "lingo-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.VocabLoader = memory.NewStaticVocabLoader(sampleVocab())
	if pool != nil {
		loader = pgloader.NewVocabLoader(pool)
	}

	vocabTTL := config.TTLDuration(cfg.Quiz.VocabTTL, 10*time.Minute)
	var vocab app.VocabRepository
	if redisClient != nil {
		vocab = redisinfra.NewVocabRepository(redisClient, loader, vocabTTL)
	} else {
		vocab = memory.NewVocabRepository(loader, vocabTTL)
	}

	var store app.SessionStore
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, sessionTTL)
	} else {
		store = memory.NewSessionStore()
	}

	engine := app.NewEngine(store, vocab, app.EngineConfig{
		Scoring:    scoringFromConfig(cfg),
		Pacing:     app.PacingPolicy(cfg.Quiz.Pacing),
		TimerGrace: config.TTLDuration(cfg.Quiz.TimerGrace, 500*time.Millisecond),
	})
	defer engine.Close()

	wsHandler := transport.NewWSHandler(engine)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/host", wsHandler.ServeHost)
	mux.HandleFunc("/ws/play", wsHandler.ServePlayer)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func scoringFromConfig(cfg config.Config) app.ScoringConfig {
	scoring := app.ScoringConfig{
		BasePoints:       cfg.Scoring.BasePoints,
		MaxTimeBonus:     cfg.Scoring.MaxTimeBonus,
		StreakMultiplier: cfg.Scoring.StreakMultiplier,
		MaxStreakBonus:   cfg.Scoring.MaxStreakBonus,
	}
	if scoring == (app.ScoringConfig{}) {
		return app.DefaultScoring
	}
	return scoring
}

// sampleVocab provides a minimal pool for running without Postgres.
func sampleVocab() []domain.VocabEntry {
	return []domain.VocabEntry{
		{ID: "v1", Term: "hund", Translation: "dog", Unit: "animals", Level: "a1"},
		{ID: "v2", Term: "katt", Translation: "cat", Unit: "animals", Level: "a1"},
		{ID: "v3", Term: "häst", Translation: "horse", Unit: "animals", Level: "a1"},
		{ID: "v4", Term: "fågel", Translation: "bird", Unit: "animals", Level: "a1"},
		{ID: "v5", Term: "fisk", Translation: "fish", Unit: "animals", Level: "a1"},
		{ID: "v6", Term: "björn", Translation: "bear", Unit: "animals", Level: "a1"},
		{ID: "v7", Term: "räv", Translation: "fox", Unit: "animals", Level: "a1"},
		{ID: "v8", Term: "älg", Translation: "moose", Unit: "animals", Level: "a1"},
	}
}
