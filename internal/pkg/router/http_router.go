package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/promptdeck/promptdeck/app/controllers"
	"github.com/promptdeck/promptdeck/app/repository"
	"github.com/promptdeck/promptdeck/internal/pkg/database"
	"github.com/promptdeck/promptdeck/internal/pkg/middleware"
	"github.com/promptdeck/promptdeck/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init repositories
	repository.InitializeFactory(database.GetDB())

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Billing provider webhooks (signature-verified in controller, so no
	// session auth and no CSRF in front of them)
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
}
