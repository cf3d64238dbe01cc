package services

import (
	"github.com/benefia/approvals/modules/approvals/domain/aggregates/assignment"
	"github.com/benefia/approvals/modules/approvals/domain/aggregates/policy"
	"github.com/benefia/approvals/modules/approvals/domain/aggregates/request"
)

// AggregateStatus computes a request's status from its active assignments
// and the policy strategy. It is the only place the PENDING/APPROVED/
// REJECTED outcome is derived.
//
// A single rejection is decisive regardless of strategy. Otherwise
// SIMPLE and SELF_APPROVAL_BY_ROLE complete on any approval, MAJORITY and
// SECTOR_ESCALATION on a strict majority of active assignments.
func AggregateStatus(strategy policy.Strategy, assignments []*assignment.Assignment) request.Status {
	active := make([]*assignment.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if a.Active {
			active = append(active, a)
		}
	}

	approvals := 0
	for _, a := range active {
		if a.Rejected() {
			return request.StatusRejected
		}
		if a.Approved() {
			approvals++
		}
	}

	if approvals == 0 {
		return request.StatusPending
	}

	switch strategy {
	case policy.StrategyMajority, policy.StrategySectorEscalation:
		if approvals >= majorityThreshold(len(active)) {
			return request.StatusApproved
		}
		return request.StatusPending
	default:
		// SIMPLE and SELF_APPROVAL_BY_ROLE: one approval suffices.
		return request.StatusApproved
	}
}

// majorityThreshold is floor(n/2)+1, a strict majority.
func majorityThreshold(n int) int {
	return n/2 + 1
}
