package usercontext

import "fmt"

// Shared Locals/session keys used across controllers and middlewares
const (
	KeyUserID   = "user_id"
	KeyUsername = "username"
	KeyIsAdmin  = "is_admin"
	KeyLoggedIn = "logged_in"
	KeyPlan     = "user_plan"
)

// PlanCacheKey is the cache key under which a user's plan projection is
// cached. Middleware reads and writes it; the login path invalidates it.
func PlanCacheKey(userID uint) string {
	return fmt.Sprintf("%s:%d", KeyPlan, userID)
}
