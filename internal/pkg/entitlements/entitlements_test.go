package entitlements

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Plan
	}{
		{in: "free", want: PlanFree},
		{in: "starter", want: PlanStarter},
		{in: "pro", want: PlanPro},
		{in: "elite", want: PlanElite},
		{in: " PRO ", want: PlanPro},
		{in: "invalid", want: PlanFree},
		{in: "", want: PlanFree},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRankOrdering(t *testing.T) {
	if Rank(PlanFree) >= Rank(PlanStarter) {
		t.Fatalf("expected starter to outrank free")
	}
	if Rank(PlanStarter) >= Rank(PlanPro) {
		t.Fatalf("expected pro to outrank starter")
	}
	if Rank(PlanPro) >= Rank(PlanElite) {
		t.Fatalf("expected elite to outrank pro")
	}
}

func TestIsPaid(t *testing.T) {
	for _, plan := range PaidPlans {
		if !IsPaid(plan) {
			t.Fatalf("expected plan %q to be paid", plan)
		}
	}
	if IsPaid(PlanFree) {
		t.Fatalf("expected free to not be paid")
	}
	if IsPaid(Plan("enterprise")) {
		t.Fatalf("expected unknown plan to not be paid")
	}
}
