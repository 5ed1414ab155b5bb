package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/promptdeck/promptdeck/app/models"
	"github.com/promptdeck/promptdeck/app/repository"
	"github.com/promptdeck/promptdeck/internal/pkg/entitlements"
	"github.com/promptdeck/promptdeck/internal/pkg/usercontext"
)

// HandleGetUserAccount returns account information for the authenticated user.
func HandleGetUserAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	account, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	plan := entitlements.Normalize(account.Plan)

	response := fiber.Map{
		"id":            account.ID,
		"username":      account.Name,
		"email":         account.Email,
		"status":        account.Status,
		"plan":          string(plan),
		"is_admin":      account.Role == models.ROLE_ADMIN,
		"created_at":    account.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at": formatTimePtr(account.LastLoginAt),
		"limits": fiber.Map{
			"max_projects": entitlements.MaxProjects(plan),
		},
	}

	if sub, err := repos.Subscription.GetActiveByUserID(userCtx.UserID, models.BillingProviderStripe); err == nil {
		response["subscription"] = fiber.Map{
			"plan":                 sub.Plan,
			"status":               sub.Status,
			"cancel_at_period_end": sub.CancelAtPeriodEnd,
			"current_period_end":   formatTimePtr(sub.CurrentPeriodEnd),
		}
	}

	return c.JSON(response)
}
