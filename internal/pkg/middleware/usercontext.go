package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/promptdeck/promptdeck/app/controllers"
	"github.com/promptdeck/promptdeck/app/repository"
	"github.com/promptdeck/promptdeck/internal/pkg/cache"
	"github.com/promptdeck/promptdeck/internal/pkg/session"
	"github.com/promptdeck/promptdeck/internal/pkg/usercontext"
)

const planCacheTTL = 5 * time.Minute

// UserContextMiddleware sets up the complete user context for every request.
// This centralizes user session handling and eliminates code duplication.
func UserContextMiddleware(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		setAnonymousContext(c)
		return c.Next()
	}

	userID := sess.Get(controllers.USER_ID)
	if userID == nil {
		setAnonymousContext(c)
		return c.Next()
	}

	username := session.GetSessionValue(c, controllers.USER_NAME)
	isAdmin := sess.Get(controllers.USER_IS_ADMIN)

	// Plan with cache-first strategy. The cached copy is best-effort: it
	// is repopulated from the users table when missing, dropped on login,
	// and otherwise expires after planCacheTTL, so a plan written by the
	// billing dispatcher is visible after the TTL at the latest.
	planKey := usercontext.PlanCacheKey(userID.(uint))
	plan, err := cache.Get(planKey)
	if err != nil || plan == "" {
		plan = "free"
		if user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userID.(uint)); err == nil && user.Plan != "" {
			plan = user.Plan
		}
		_ = cache.Set(planKey, plan, planCacheTTL)
	}

	userCtx := usercontext.UserContext{
		UserID:     userID.(uint),
		Username:   username,
		IsLoggedIn: true,
		IsAdmin:    isAdmin != nil && isAdmin.(bool),
		Plan:       plan,
	}
	c.Locals("USER_CONTEXT", userCtx)

	c.Locals(controllers.FROM_PROTECTED, true)
	c.Locals(controllers.USER_NAME, username)
	c.Locals(controllers.USER_ID, userID.(uint))
	c.Locals(controllers.USER_IS_ADMIN, userCtx.IsAdmin)

	return c.Next()
}

func setAnonymousContext(c *fiber.Ctx) {
	c.Locals("USER_CONTEXT", usercontext.UserContext{
		IsLoggedIn: false,
		IsAdmin:    false,
	})
	c.Locals(controllers.FROM_PROTECTED, false)
	c.Locals(controllers.USER_IS_ADMIN, false)
}
