package calculator

import "sort"

// Helper is a candidate account that can lend points
type Helper struct {
	UserID  string
	Balance int64
}

// Share is the amount taken from one helper
type Share struct {
	HelperID string
	Amount   int64
}

// AllocationPlan is the result of distributing a shortfall over helpers.
// Allocated + Remaining always equals Needed.
type AllocationPlan struct {
	Needed    int64
	Allocated int64
	Remaining int64
	Shares    []Share
}

// Covered reports whether the plan sources the full amount.
func (p AllocationPlan) Covered() bool {
	return p.Remaining == 0
}

// PlanAllocation distributes need across helpers, richest first.
//
// Algorithm:
// - Drop helpers with a non-positive balance
// - Order by balance descending, then user ID ascending
// - Take min(balance, remaining) from each until nothing remains
//
// A non-positive need yields the empty plan. The input slice is not modified.
func PlanAllocation(need int64, helpers []Helper) AllocationPlan {
	if need <= 0 {
		return AllocationPlan{}
	}
	plan := AllocationPlan{Needed: need, Remaining: need}

	candidates := make([]Helper, 0, len(helpers))
	for _, h := range helpers {
		if h.Balance > 0 {
			candidates = append(candidates, h)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Balance != candidates[j].Balance {
			return candidates[i].Balance > candidates[j].Balance
		}
		return candidates[i].UserID < candidates[j].UserID
	})

	for _, h := range candidates {
		if plan.Remaining == 0 {
			break
		}
		take := min(h.Balance, plan.Remaining)
		plan.Shares = append(plan.Shares, Share{HelperID: h.UserID, Amount: take})
		plan.Allocated += take
		plan.Remaining -= take
	}

	return plan
}
