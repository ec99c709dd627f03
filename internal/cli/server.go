package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"trivia-live-service/internal/app"
	"trivia-live-service/internal/config"
	"trivia-live-service/internal/domain"
	"trivia-live-service/internal/game"
	"trivia-live-service/internal/infra/memory"
	pgloader "trivia-live-service/internal/infra/postgres"
	redisinfra "trivia-live-service/internal/infra/redis"
	transport "trivia-live-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia session server",
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

	log := newLogger(cfg)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		log.Info("migrations applied")
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgloader.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var stats game.StatsStore
	switch {
	case pool != nil:
		stats = pgloader.NewStatsStore(pool)
	case redisClient != nil:
		stats = redisinfra.NewStatsStore(redisClient)
	default:
		stats = memory.NewStatsStore()
	}

	registry := game.NewRegistry(gameConfig(cfg), stats, log)
	defer registry.Close()

	router := app.NewRouter(registry, quizRepo, log)
	wsHandler := transport.NewWSHandler(router, log)
	roomsHandler := transport.NewRoomsHandler(router, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/api/rooms", roomsHandler)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting trivia session server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(level)
	}
	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

func gameConfig(cfg config.Config) game.Config {
	gc := game.DefaultConfig()
	gc.RevealDuration = config.Seconds(cfg.Game.RevealSeconds, gc.RevealDuration)
	gc.RevealFallback = config.Seconds(cfg.Game.RevealFallbackSeconds, gc.RevealFallback)
	gc.GracePeriod = config.Seconds(cfg.Game.GraceSeconds, gc.GracePeriod)
	gc.IdleTTL = config.TTLDuration(cfg.Game.IdleTTL, gc.IdleTTL)
	gc.MaxAge = config.TTLDuration(cfg.Game.MaxAge, gc.MaxAge)
	gc.SweepInterval = config.TTLDuration(cfg.Game.SweepInterval, gc.SweepInterval)
	gc.EndLinger = config.Seconds(cfg.Game.EndLingerSeconds, gc.EndLinger)
	if cfg.Game.StreakCap > 0 {
		gc.StreakCap = cfg.Game.StreakCap
	}
	if cfg.Game.CodeLength > 0 {
		gc.CodeLength = cfg.Game.CodeLength
	}
	return gc
}

// sampleQuizzes provides demo content for the no-database mode; swap the
// loader for the Postgres one in production.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"demo-1": {
			ID:    "demo-1",
			Title: "Warm-up Trivia",
			Questions: []domain.Question{
				{
					Ordinal:        0,
					Type:           domain.QuestionSingle,
					Prompt:         "What is the capital of France?",
					Options:        []string{"Lyon", "Paris", "Marseille", "Nice"},
					Weight:         domain.WeightNormal,
					TimeLimitMs:    20000,
					CorrectIndices: []int{1},
				},
				{
					Ordinal:        1,
					Type:           domain.QuestionTrueFalse,
					Prompt:         "The Pacific is the largest ocean.",
					Options:        []string{"True", "False"},
					Weight:         domain.WeightHalf,
					TimeLimitMs:    10000,
					CorrectIndices: []int{0},
				},
				{
					Ordinal:        2,
					Type:           domain.QuestionMulti,
					Prompt:         "Which of these are prime numbers?",
					Options:        []string{"2", "4", "7", "9"},
					Weight:         domain.WeightDouble,
					TimeLimitMs:    30000,
					CorrectIndices: []int{0, 2},
				},
				{
					Ordinal:       3,
					Type:          domain.QuestionInput,
					Prompt:        "Name the red planet.",
					Weight:        domain.WeightNormal,
					TimeLimitMs:   15000,
					AcceptedTexts: []string{"mars"},
				},
				{
					Ordinal:      4,
					Type:         domain.QuestionOrdering,
					Prompt:       "Order these from smallest to largest: Moon, Earth, Sun.",
					Options:      []string{"Moon", "Earth", "Sun"},
					Weight:       domain.WeightNormal,
					TimeLimitMs:  25000,
					CorrectOrder: []int{0, 1, 2},
				},
				{
					Ordinal:        5,
					Type:           domain.QuestionMedia,
					Prompt:         "Which landmark is shown?",
					Options:        []string{"Eiffel Tower", "Big Ben", "Colosseum"},
					MediaURL:       "https://example.com/media/landmark.jpg",
					Weight:         domain.WeightNormal,
					TimeLimitMs:    20000,
					CorrectIndices: []int{2},
				},
				{
					Ordinal:     6,
					Type:        domain.QuestionPoll,
					Prompt:      "Cats or dogs?",
					Options:     []string{"Cats", "Dogs"},
					Weight:      domain.WeightNone,
					TimeLimitMs: 10000,
				},
				{
					Ordinal:     7,
					Type:        domain.QuestionOpen,
					Prompt:      "What was your favorite question?",
					Weight:      domain.WeightNone,
					TimeLimitMs: 15000,
				},
			},
		},
	}
}
