package api

import (
	"net/http"

	"code_clash/internal/api/handler"
	"code_clash/internal/app/service"
	"code_clash/internal/common/security"
	"code_clash/internal/platform/queue"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	battleService *service.BattleService,
	problemService *service.ProblemService,
	feedbackService *service.FeedbackService,
	ratingService *service.RatingService,
	feed *queue.BattleFeed,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger) // Chi's logger
	r.Use(chiMiddleware.Recoverer)
	// No blanket timeout: the arena stream stays open for the whole battle.

	// JWT Auth Middleware Setup. Verifies the "Authorization: Bearer T"
	// token and puts claims in context; enforcement happens per route
	// group via middleware.Authenticator.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// API v1 Routes
	r.Route("/api/v1", func(v1 chi.Router) {
		// Auth routes (public signup/login, private profile)
		authHandler := handler.NewAuthHandler(authService, ratingService)
		v1.Group(func(auth chi.Router) {
			authHandler.RegisterRoutes(auth)
		})

		// Problem routes (read public, create admin)
		problemHandler := handler.NewProblemHandler(problemService)
		v1.Route("/problems", problemHandler.RegisterRoutes)

		// Battle routes (authenticated); includes the SSE arena stream.
		battleHandler := handler.NewBattleHandler(battleService, feedbackService, feed)
		v1.Route("/battles", battleHandler.RegisterRoutes)

		// Leaderboard routes (public)
		leaderboardHandler := handler.NewLeaderboardHandler(ratingService)
		v1.Route("/leaderboard", leaderboardHandler.RegisterRoutes)
	})

	return r
}
