package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code_clash/internal/api"
	"code_clash/internal/app/service"
	"code_clash/internal/common/security"
	"code_clash/internal/domain/repository"
	"code_clash/internal/platform/config"
	"code_clash/internal/platform/database"
	"code_clash/internal/platform/queue"
)

func main() {
	// 1. Load Configuration
	config.Load()
	fmt.Println("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT()
	fmt.Println("JWT initialized.")

	// 3. Initialize Database (schema must already be applied by cmd/migrate)
	database.Connect()
	defer database.Close()
	fmt.Println("Database connected.")

	// 4. Initialize Redis
	queue.ConnectRedis()
	defer queue.CloseRedis()
	fmt.Println("Redis connected.")

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	battleRepo := repository.NewPgBattleRepository(database.DB)
	solutionRepo := repository.NewPgSolutionRepository(database.DB)
	ratingRepo := repository.NewPgRatingRepository(database.DB)
	feedbackRepo := repository.NewPgFeedbackRepository(database.DB)

	// 6. Initialize Services
	feed := queue.NewBattleFeed(queue.RDB, config.AppConfig.BattleChannelPrefix)
	authService := service.NewAuthService(userRepo)
	ratingService := service.NewRatingService(userRepo, ratingRepo, config.AppConfig.RatingKFactor)
	battleService := service.NewBattleService(battleRepo, solutionRepo, problemRepo, userRepo, ratingService, feed, database.DB)
	problemService := service.NewProblemService(problemRepo, database.DB)
	feedbackService := service.NewFeedbackService(feedbackRepo, battleRepo)

	// 7. Initialize Router & HTTP Server
	router := api.NewRouter(authService, battleService, problemService, feedbackService, ratingService, feed)

	server := &http.Server{
		Addr:        ":" + config.AppConfig.APIPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: arena SSE streams stay open for a whole battle.
		IdleTimeout: 120 * time.Second,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped gracefully.")
}
