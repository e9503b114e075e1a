package routes

import (
	"github.com/bracketforge/esports-arena/handlers"
	"github.com/bracketforge/esports-arena/middleware"
	"github.com/bracketforge/esports-arena/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRoutes монтирует все маршруты API. Роли проверяются здесь, владение и
// бизнес-правила — в сервисах.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	registrationHandler *handlers.RegistrationHandler,
	teamHandler *handlers.TeamHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticator([]byte(jwtSecret))

	router.Get("/swagger/*", httpSwagger.Handler())

	router.Post("/auth/signup", authHandler.Signup)
	router.Post("/auth/login", authHandler.Login)

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты для просмотра турниров
		r.Get("/", tournamentHandler.List)
		r.Get("/{id}", tournamentHandler.GetByID)

		// Управление турнирами: организаторы и админы
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin))

			r.Post("/", tournamentHandler.Create)
			r.Put("/{id}", tournamentHandler.Update)
			r.Delete("/{id}", tournamentHandler.Delete)
			r.Post("/{id}/logo", tournamentHandler.UploadLogo)
		})

		// Переход статуса: роль внутри не гейтится, таблица переходов сама
		// решает, кому какой переход доступен.
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Patch("/{id}/status", tournamentHandler.Transition)
		})

		// Заявки на участие
		r.Route("/{tournamentID}", func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/register", registrationHandler.Register)
			r.Get("/registrations", registrationHandler.List)
			r.Patch("/registrations/{id}", registrationHandler.UpdateStatus)
			r.Delete("/registrations/{id}", registrationHandler.Remove)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/", teamHandler.List)
		r.Get("/{id}", teamHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", teamHandler.Create)
			r.Put("/{id}", teamHandler.Update)
			r.Delete("/{id}", teamHandler.Delete)
			r.Post("/{id}/logo", teamHandler.UploadLogo)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
