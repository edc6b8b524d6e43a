// cmd/api/main.go
// Main entry point for the roommate matching API.
// Bootstraps configuration, storage, the matching engine and the HTTP server.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/roomatch/roomatch-backend/internal/auth"
	"github.com/roomatch/roomatch-backend/internal/common/database"
	"github.com/roomatch/roomatch-backend/internal/common/logging"
	"github.com/roomatch/roomatch-backend/internal/config"
	"github.com/roomatch/roomatch-backend/internal/matching"
	"github.com/roomatch/roomatch-backend/internal/profile"
)

func main() {
	// 1. Environment and configuration
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration validation failed: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting roommate matching API",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port))

	// 2. PostgreSQL
	db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// 3. Redis (optional, recommendation caching degrades gracefully)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClientFromURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info("connected to Redis")
		}
	} else {
		logger.Info("Redis URL not configured, caching disabled")
	}

	// 4. Migrations
	if err := runMigrations(db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations completed")

	// 5. Wire the matching engine
	profileRepo := profile.NewRepository(db)
	matchingRepo := matching.NewRepository(db)

	matchingService := matching.NewService(matchingRepo, profileRepo, redisClient, logger, matching.ServiceConfig{
		DefaultRecommendationLimit: cfg.DefaultRecommendationLimit,
		MaxRecommendationLimit:     cfg.MaxRecommendationLimit,
		RecommendationCacheTTL:     cfg.RecommendationCacheTTL,
	})
	matchingHandlers := matching.NewHandlers(matchingService, logger)
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	// 6. Routes
	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	matching.RegisterRoutes(router, matchingHandlers, authMiddleware)

	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware)

	// 7. Nightly batch refresh
	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()

	scheduler := matching.NewScheduler(matchingService, logger, cfg.BatchRefreshHour, cfg.BatchRefreshMinute)
	scheduler.Start(schedulerCtx)
	logger.Info("batch refresh scheduled",
		zap.Int("hour", cfg.BatchRefreshHour),
		zap.Int("minute", cfg.BatchRefreshMinute))

	// 8. HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")
	cancelScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","uptime":"%s"}`, time.Since(startTime).Round(time.Second))
}

var startTime = time.Now()

// loggingMiddleware logs all requests with their status and duration
func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("took", time.Since(start)))
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// runMigrations executes database migrations
func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			is_active BOOLEAN DEFAULT true,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS user_profiles (
			id SERIAL PRIMARY KEY,
			user_id INTEGER UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			date_of_birth DATE,
			gender VARCHAR(20) DEFAULT '',
			occupation VARCHAR(255),
			min_budget DECIMAL(10,2),
			max_budget DECIMAL(10,2),
			preferred_locations JSONB DEFAULT '[]',
			cleanliness_level INTEGER CHECK (cleanliness_level BETWEEN 1 AND 10),
			noise_tolerance INTEGER CHECK (noise_tolerance BETWEEN 1 AND 10),
			social_level INTEGER CHECK (social_level BETWEEN 1 AND 10),
			smoker VARCHAR(20) DEFAULT '',
			drinking VARCHAR(20) DEFAULT '',
			pets VARCHAR(20) DEFAULT '',
			schedule_type VARCHAR(20) DEFAULT '',
			works_from_home BOOLEAN DEFAULT false,
			preferred_age_min INTEGER,
			preferred_age_max INTEGER,
			preferred_gender VARCHAR(20) DEFAULT 'any',
			max_roommates INTEGER DEFAULT 1,
			profile_completed BOOLEAN DEFAULT false,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS matching_criteria (
			id SERIAL PRIMARY KEY,
			user_id INTEGER UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			budget_importance INTEGER DEFAULT 3 CHECK (budget_importance BETWEEN 1 AND 5),
			location_importance INTEGER DEFAULT 3 CHECK (location_importance BETWEEN 1 AND 5),
			lifestyle_importance INTEGER DEFAULT 3 CHECK (lifestyle_importance BETWEEN 1 AND 5),
			schedule_importance INTEGER DEFAULT 3 CHECK (schedule_importance BETWEEN 1 AND 5),
			habits_importance INTEGER DEFAULT 3 CHECK (habits_importance BETWEEN 1 AND 5),
			deal_breakers JSONB DEFAULT '[]',
			strict_age_preference BOOLEAN DEFAULT false,
			strict_gender_preference BOOLEAN DEFAULT false,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS compatibility_scores (
			id SERIAL PRIMARY KEY,
			user1_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			user2_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			overall_score DECIMAL(5,2) NOT NULL,
			budget_score DECIMAL(5,2) NOT NULL,
			location_score DECIMAL(5,2) NOT NULL,
			lifestyle_score DECIMAL(5,2) NOT NULL,
			schedule_score DECIMAL(5,2) NOT NULL,
			habits_score DECIMAL(5,2) NOT NULL,
			breakdown JSONB NOT NULL DEFAULT '{}',
			is_active BOOLEAN DEFAULT true,
			calculated_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(user1_id, user2_id),
			CHECK (user1_id < user2_id)
		)`,

		`CREATE TABLE IF NOT EXISTS user_recommendations (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			recommended_user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			score DECIMAL(5,2) NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			highlights JSONB NOT NULL DEFAULT '[]',
			viewed BOOLEAN DEFAULT false,
			viewed_at TIMESTAMP,
			contacted BOOLEAN DEFAULT false,
			contacted_at TIMESTAMP,
			dismissed BOOLEAN DEFAULT false,
			dismissed_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(user_id, recommended_user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS user_interactions (
			id UUID PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			target_user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			interaction_type VARCHAR(50) NOT NULL,
			was_recommended BOOLEAN DEFAULT false,
			score_at_time DECIMAL(5,2),
			metadata JSONB DEFAULT '{}',
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS matching_activities (
			id SERIAL PRIMARY KEY,
			user_id INTEGER REFERENCES users(id) ON DELETE CASCADE,
			activity_type VARCHAR(50) NOT NULL,
			success BOOLEAN DEFAULT true,
			error_message TEXT DEFAULT '',
			duration_ms BIGINT DEFAULT 0,
			scores_calculated INTEGER DEFAULT 0,
			recommendations_generated INTEGER DEFAULT 0,
			details JSONB DEFAULT '{}',
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_compatibility_scores_users
			ON compatibility_scores(user1_id, user2_id)`,
		`CREATE INDEX IF NOT EXISTS idx_user_recommendations_user_score
			ON user_recommendations(user_id, dismissed, score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_user_interactions_user
			ON user_interactions(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_matching_activities_user
			ON matching_activities(user_id, activity_type, created_at DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
