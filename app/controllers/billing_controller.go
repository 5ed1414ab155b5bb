package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/promptdeck/promptdeck/internal/pkg/billing"
	"github.com/promptdeck/promptdeck/internal/pkg/database"
	"github.com/promptdeck/promptdeck/internal/pkg/entitlements"
	"github.com/promptdeck/promptdeck/internal/pkg/usercontext"
)

type checkoutRequestBody struct {
	Plan string `json:"plan"`
}

// HandleGetPlans lists the purchasable tiers with their prices. Public.
func HandleGetPlans(c *fiber.Ctx) error {
	catalog := billing.NewCatalogFromEnv()

	plans := make([]fiber.Map, 0, len(entitlements.PaidPlans)+1)
	plans = append(plans, fiber.Map{
		"plan":         string(entitlements.PlanFree),
		"amount":       0,
		"max_projects": entitlements.MaxProjects(entitlements.PlanFree),
	})
	for _, plan := range entitlements.PaidPlans {
		pp, ok := catalog.Price(string(plan))
		if !ok {
			continue
		}
		plans = append(plans, fiber.Map{
			"plan":         pp.Plan,
			"amount":       pp.Amount,
			"currency":     pp.Currency,
			"interval":     pp.Interval,
			"max_projects": entitlements.MaxProjects(plan),
		})
	}

	return c.JSON(fiber.Map{"plans": plans})
}

// HandleBillingCheckout opens a hosted checkout session for the logged-in
// user. No local state changes here; entitlement arrives via webhook.
func HandleBillingCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}

	var req checkoutRequestBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed JSON body"})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	sess, err := svc.Checkout(ctx, userCtx.UserID, req.Plan)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNotConfigured):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing_unavailable", "message": "Billing is not configured"})
		case errors.Is(err, billing.ErrAdminForbidden):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin_forbidden", "message": "Admin accounts cannot purchase a plan"})
		case errors.Is(err, billing.ErrUnknownPlan):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "unknown_plan", "message": "Unknown or non-purchasable plan"})
		case errors.Is(err, billing.ErrAlreadySubscribed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already_subscribed", "message": "An active subscription for this plan already exists"})
		case errors.Is(err, billing.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "checkout_failed", "message": "Failed to start checkout"})
		}
	}

	return c.JSON(sess)
}

// HandleStripeWebhook receives provider events. The raw body bytes are
// handed to verification untouched; parsing them first would break the
// signature. A non-2xx response makes the provider redeliver, so only
// retryable failures return 500.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := svc.ProcessWebhook(ctx, rawBody, signature); err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	return c.JSON(fiber.Map{"received": true})
}

// HandleBillingCancel schedules the active subscription to end at the
// period boundary. Access continues until the provider confirms the end.
func HandleBillingCancel(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	sub, err := svc.CancelAtPeriodEnd(ctx, userCtx.UserID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNotConfigured):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing_unavailable", "message": "Billing is not configured"})
		case errors.Is(err, billing.ErrNoActiveSubscription):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_active_subscription", "message": "There is no active subscription to cancel"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cancel_failed", "message": "Failed to cancel subscription"})
		}
	}

	return c.JSON(sub)
}

// HandleGetSubscription returns the logged-in user's active subscription.
func HandleGetSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	sub, err := svc.CurrentSubscription(userCtx.UserID)
	if err != nil {
		if errors.Is(err, billing.ErrNoActiveSubscription) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_active_subscription", "message": "No active subscription"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription"})
	}

	return c.JSON(sub)
}

// HandleListPayments returns the logged-in user's payment ledger.
func HandleListPayments(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	payments, err := svc.ListPayments(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payments"})
	}

	return c.JSON(fiber.Map{"payments": payments})
}
