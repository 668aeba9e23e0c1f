package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/icehouse-dev/curling-server/handlers"
	"github.com/icehouse-dev/curling-server/middleware"
)

// SetupRoutes wires every endpoint onto the router. Match mutation
// endpoints require a Bearer token; the stream authenticates through a
// query-string token because browsers cannot set headers on WebSocket
// upgrades.
func SetupRoutes(
	router *chi.Mux,
	authHandler *handlers.AuthHandler,
	matchHandler *handlers.MatchHandler,
	streamHandler *handlers.StreamHandler,
	jwtSecret string,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	secret := []byte(jwtSecret)

	router.Post("/users/signup", authHandler.Register)
	router.Post("/users/signin", authHandler.Login)

	router.Route("/matches", func(r chi.Router) {
		r.Post("/", matchHandler.StartMatch)
		r.Get("/{matchID}", matchHandler.GetMatch)
		r.Get("/{matchID}/state", matchHandler.LatestState)
		r.Get("/{matchID}/ends/{endNumber}", matchHandler.EndStates)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(secret))

			r.Post("/{matchID}/team", matchHandler.ConfigureTeam)
			r.Post("/{matchID}/shots", matchHandler.SubmitShot)
			r.Post("/{matchID}/end-setup", matchHandler.PerformEndSetup)
		})
	})

	// The stream is public for viewers; a valid token upgrades the session
	// to the player path.
	router.With(middleware.TokenFromQuery(secret)).
		Get("/matches/{matchID}/stream", streamHandler.ServeMatchStream)
}
