package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"medscribe/internal/agent"
	"medscribe/internal/config"
	"medscribe/internal/platform/telegram"
	"medscribe/internal/processing"
	"medscribe/internal/report"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; processing requests will be rejected")
	}

	// 1. Infrastructure. The database is optional: without it the server
	// still processes recordings, it just keeps no history.
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		for i := 0; i < 10; i++ {
			db, err = sql.Open("postgres", cfg.DatabaseURL)
			if err == nil {
				err = db.Ping()
			}
			if err == nil {
				break
			}
			logger.Info("waiting for database", zap.Int("attempt", i+1))
			time.Sleep(2 * time.Second)
		}
		if err != nil {
			logger.Warn("could not connect to database, continuing without history", zap.Error(err))
			db = nil
		} else {
			logger.Info("connected to database")
			runMigrations(cfg.DatabaseURL, logger)
		}
	}

	// 2. Clients
	aiClient := agent.NewGeminiClient(agent.Config{
		APIKey:       cfg.Gemini.APIKey,
		Model:        cfg.Gemini.Model,
		BaseURL:      cfg.Gemini.BaseURL,
		PollInterval: cfg.Gemini.PollInterval,
		PollTimeout:  cfg.Gemini.PollTimeout,
	}, logger)

	var reportSvc processing.ReportService
	if cfg.Telegram.BotToken != "" && cfg.Telegram.WardChatID != 0 {
		tgClient := telegram.NewClient(cfg.Telegram.BotToken)
		reportSvc = report.NewService(tgClient, cfg.Telegram.WardChatID, logger)
	} else {
		logger.Info("telegram reporting disabled")
	}

	// 3. Services
	var repo processing.Repository
	if db != nil {
		repo = processing.NewRepository(db)
	}
	svc := processing.NewService(aiClient, repo, reportSvc, logger)
	handler := processing.NewHandler(svc, cfg.UploadDir, cfg.Gemini.APIKey != "", logger)

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS for the frontend
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
			if req.Method == "OPTIONS" {
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Route("/api", func(r chi.Router) {
		processing.RegisterRoutes(r, handler)
	})

	// Static frontend, when present.
	indexPath := filepath.Join(cfg.StaticDir, "index.html")
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		if _, err := os.Stat(indexPath); err == nil {
			http.ServeFile(w, req, indexPath)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "Medical Documentation API"}`))
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func runMigrations(databaseURL string, logger *zap.Logger) {
	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		logger.Warn("migration init failed", zap.Error(err))
		return
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		logger.Warn("migration up failed", zap.Error(err))
		return
	}
	logger.Info("migrations applied")
}
