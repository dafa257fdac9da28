package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nrc-robotics/tournament-system/handlers"
	"github.com/nrc-robotics/tournament-system/middleware"
	"github.com/nrc-robotics/tournament-system/models"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Tournament *handlers.TournamentHandler
	Team       *handlers.TeamHandler
	Match      *handlers.MatchHandler
	RobotClass *handlers.RobotClassHandler
	Import     *handlers.ImportHandler
	WebSocket  *handlers.WebSocketHandler
}

// InitRoutes собирает маршруты API. Чтение открыто всем, мутации
// закрыты ролями: организатор управляет турниром, судья фиксирует
// результаты матчей.
func InitRoutes(h Handlers, auth *middleware.Authenticator) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/register", h.Auth.Register)
	router.Post("/auth/login", h.Auth.Login)

	router.Route("/robot-classes", func(r chi.Router) {
		r.Get("/", h.RobotClass.List)
		r.Get("/{classID}", h.RobotClass.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.RequireRole(models.RoleOrganizer))
			r.Post("/", h.RobotClass.Create)
		})
	})

	router.Route("/tournaments", func(r chi.Router) {
		// Публичное чтение
		r.Get("/", h.Tournament.List)
		r.Get("/{tournamentID}", h.Tournament.GetByID)
		r.Get("/{tournamentID}/standings", h.Tournament.GetStandings)
		r.Get("/{tournamentID}/bracket", h.Tournament.GetBracket)
		r.Get("/{tournamentID}/rounds", h.Tournament.ListRounds)
		r.Get("/{tournamentID}/teams", h.Team.ListByTournament)
		r.Get("/{tournamentID}/matches", h.Match.ListByTournament)

		// Управление турниром
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.RequireRole(models.RoleOrganizer))

			r.Post("/", h.Tournament.Create)
			r.Put("/{tournamentID}", h.Tournament.Update)
			r.Delete("/{tournamentID}", h.Tournament.Delete)
			r.Post("/{tournamentID}/logo", h.Tournament.UploadLogo)

			r.Post("/{tournamentID}/advance", h.Tournament.AdvancePhase)
			r.Post("/{tournamentID}/cancel", h.Tournament.Cancel)
			r.Post("/{tournamentID}/rounds", h.Tournament.GenerateSwissRound)
			r.Post("/{tournamentID}/rounds/{roundNumber}/regenerate", h.Tournament.RegenerateSwissRound)
			r.Post("/{tournamentID}/bracket", h.Tournament.GenerateBracket)

			r.Post("/{tournamentID}/teams", h.Team.Create)
			r.Post("/{tournamentID}/import", h.Import.ImportRoster)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/{teamID}", h.Team.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.RequireRole(models.RoleOrganizer))

			r.Put("/{teamID}", h.Team.Update)
			r.Put("/{teamID}/seed", h.Team.SetSeed)
			r.Delete("/{teamID}", h.Team.Delete)
			r.Post("/{teamID}/logo", h.Team.UploadLogo)

			r.Post("/{teamID}/robots", h.Team.AddRobot)
			r.Post("/{teamID}/players", h.Team.AddPlayer)
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(middleware.RequireRole(models.RoleOrganizer))

		r.Delete("/robots/{robotID}", h.Team.RemoveRobot)
		r.Delete("/players/{playerID}", h.Team.RemovePlayer)
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", h.Match.GetByID)

		// Судейские операции доступны и организатору
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.RequireRole(models.RoleOrganizer, models.RoleScorekeeper))

			r.Post("/{matchID}/start", h.Match.Start)
			r.Post("/{matchID}/complete", h.Match.Complete)
			r.Post("/{matchID}/cancel", h.Match.Cancel)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	return router
}
