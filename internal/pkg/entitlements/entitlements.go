package entitlements

import "strings"

type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
	PlanElite   Plan = "elite"
)

// PaidPlans lists the tiers that can be purchased through checkout,
// ordered from cheapest to most expensive.
var PaidPlans = []Plan{PlanStarter, PlanPro, PlanElite}

// Normalize maps arbitrary input to a known plan, falling back to free.
func Normalize(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanStarter):
		return PlanStarter
	case string(PlanPro):
		return PlanPro
	case string(PlanElite):
		return PlanElite
	default:
		return PlanFree
	}
}

// IsPaid reports whether the plan is a purchasable tier.
func IsPaid(plan Plan) bool {
	switch plan {
	case PlanStarter, PlanPro, PlanElite:
		return true
	default:
		return false
	}
}

// Rank orders plans so a higher tier always outranks a lower one.
func Rank(plan Plan) int {
	switch plan {
	case PlanElite:
		return 3
	case PlanPro:
		return 2
	case PlanStarter:
		return 1
	default:
		return 0
	}
}

// MaxProjects returns the workspace project quota for a plan.
func MaxProjects(plan Plan) int {
	switch plan {
	case PlanElite:
		return 200
	case PlanPro:
		return 50
	case PlanStarter:
		return 10
	default:
		return 3
	}
}
