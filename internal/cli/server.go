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

	"github.com/vudinhan2525/CamQuizz-sub002/internal/config"
	"github.com/vudinhan2525/CamQuizz-sub002/internal/domain"
	"github.com/vudinhan2525/CamQuizz-sub002/internal/engine"
	"github.com/vudinhan2525/CamQuizz-sub002/internal/identity"
	"github.com/vudinhan2525/CamQuizz-sub002/internal/infra/memory"
	pginfra "github.com/vudinhan2525/CamQuizz-sub002/internal/infra/postgres"
	redisinfra "github.com/vudinhan2525/CamQuizz-sub002/internal/infra/redis"
	"github.com/vudinhan2525/CamQuizz-sub002/internal/transport/ws"
)

// NewStartCmd builds the CLI subcommand to start the session engine.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pginfra.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes engine.QuizRepository
	if redisClient != nil {
		quizzes = redisinfra.NewQuizCache(redisClient, loader, quizTTL)
	} else {
		quizzes = memory.NewQuizCache(loader, quizTTL)
	}

	var recorder engine.AttemptRecorder = memory.NewAttemptLog()
	if pool != nil {
		recorder = pginfra.NewAttemptRecorder(pool)
	} else if redisClient != nil {
		recorder = redisinfra.NewAttemptRecorder(redisClient, config.TTLDuration(cfg.Redis.AttemptTTL, 24*time.Hour))
	}

	engCfg := engine.DefaultConfig()
	if cfg.Room.CodeLength > 0 {
		engCfg.CodeLength = cfg.Room.CodeLength
	}
	if cfg.Room.BasePoints > 0 {
		engCfg.Score.BasePoints = cfg.Room.BasePoints
	}
	if cfg.Room.MinPoints > 0 {
		engCfg.Score.MinPoints = cfg.Room.MinPoints
	}
	engCfg.IdleTTL = config.TTLDuration(cfg.Room.IdleTTL, engCfg.IdleTTL)

	gateway := ws.NewGateway(ws.NewRegistry(), identity.NewInsecureResolver())
	eng := engine.NewEngine(engCfg, quizzes, gateway, recorder)
	gateway.BindEngine(eng)

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go eng.RunJanitor(janitorCtx, config.TTLDuration(cfg.Room.JanitorInterval, time.Minute))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", gateway.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting live quiz server on :%s", finalPort)
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

// sampleQuizzes seeds a playable quiz when no Postgres catalog is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					ID:      "q1",
					Content: "What is 2 + 2?",
					Options: []domain.Option{
						{Label: "a", Content: "3"},
						{Label: "b", Content: "4"},
						{Label: "c", Content: "5"},
					},
					CorrectLabels: []string{"b"},
					TimeLimitSec:  30,
				},
				{
					ID:      "q2",
					Content: "Which of these are prime?",
					Options: []domain.Option{
						{Label: "a", Content: "2"},
						{Label: "b", Content: "4"},
						{Label: "c", Content: "5"},
						{Label: "d", Content: "9"},
					},
					CorrectLabels: []string{"a", "c"},
					TimeLimitSec:  30,
				},
			},
		},
	}
}
