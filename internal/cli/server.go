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

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/config"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
	pgstore "quiz-battle-service/internal/infra/postgres"
	redisstore "quiz-battle-service/internal/infra/redis"
	transport "quiz-battle-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the battle server",
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Battle.SessionTTL, redisTTL)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var rooms app.RoomRepository
	var sessions app.SessionRegistry
	if redisClient != nil {
		rooms = redisstore.NewRoomStore(redisClient, redisTTL)
		sessions = redisstore.NewSessionRegistry(redisClient, sessionTTL)
	} else {
		rooms = memory.NewRoomStore()
		sessions = memory.NewSessionRegistry(sessionTTL)
	}

	var summaries app.SummaryStore = memory.NewSummaryStore()
	if pool != nil {
		summaries = pgstore.NewSummaryStore(pool)
	}

	service := app.NewBattleService(rooms, sessions, quizRepo, summaries, app.RoomConfig{
		DefaultQuestionTime: config.TTLDuration(cfg.Battle.QuestionTime, 30*time.Second),
		MinParticipants:     cfg.Battle.MinParticipants,
	})
	wsHandler := transport.NewWSHandler(service)
	roomsHandler := transport.NewRoomsHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("POST /rooms", roomsHandler.Create)
	mux.HandleFunc("GET /rooms", roomsHandler.List)
	mux.HandleFunc("GET /rooms/{id}", roomsHandler.Get)
	mux.HandleFunc("GET /rooms/{id}/summary", roomsHandler.Summary)
	mux.HandleFunc("POST /rooms/{id}/cancel", roomsHandler.Cancel)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting battle service on :%s", finalPort)
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

	service.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides a minimal quiz; swap the loader for the
// Postgres-backed one in production.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID: "quiz-1",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5"},
					},
					Points:       10,
					TimeLimitSec: 10,
				},
				{
					ID:     "q2",
					Prompt: "Which planet is closest to the sun?",
					Options: []domain.Option{
						{ID: "o1", Text: "Venus"},
						{ID: "o2", Text: "Mercury", Correct: true},
						{ID: "o3", Text: "Mars"},
					},
					Points:       10,
					TimeLimitSec: 10,
				},
			},
		},
	}
}
