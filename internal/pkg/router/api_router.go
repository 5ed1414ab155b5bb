package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/promptdeck/promptdeck/app/controllers"
	"github.com/promptdeck/promptdeck/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Auth
	v1.Post("/auth/register", controllers.HandleAuthRegister)
	v1.Post("/auth/login", controllers.HandleAuthLogin)
	v1.Post("/auth/logout", middleware.RequireAPISessionAuth, controllers.HandleAuthLogout)

	// Account
	v1.Get("/user/account", middleware.RequireAPISessionAuth, controllers.HandleGetUserAccount)

	// Billing
	v1.Get("/billing/plans", controllers.HandleGetPlans)
	v1.Post("/billing/checkout", middleware.RequireAPISessionAuth, controllers.HandleBillingCheckout)
	v1.Post("/billing/cancel", middleware.RequireAPISessionAuth, controllers.HandleBillingCancel)
	v1.Get("/billing/subscription", middleware.RequireAPISessionAuth, controllers.HandleGetSubscription)
	v1.Get("/billing/payments", middleware.RequireAPISessionAuth, controllers.HandleListPayments)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
