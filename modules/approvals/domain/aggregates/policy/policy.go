package policy

import (
	"time"

	"github.com/google/uuid"
)

// Strategy selects how many and which approvals move a request to APPROVED.
type Strategy string

const (
	StrategySimple             Strategy = "SIMPLE"
	StrategyMajority           Strategy = "MAJORITY"
	StrategySectorEscalation   Strategy = "SECTOR_ESCALATION"
	StrategySelfApprovalByRole Strategy = "SELF_APPROVAL_BY_ROLE"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategySimple, StrategyMajority, StrategySectorEscalation, StrategySelfApprovalByRole:
		return true
	}
	return false
}

// Policy is the administrator-configured rule set for one action type.
// Exactly one active policy exists per action type. This subsystem only
// reads policies; administration happens elsewhere.
type Policy struct {
	ID                   uuid.UUID   `json:"id"`
	ActionType           string      `json:"action_type"`
	Strategy             Strategy    `json:"strategy"`
	ConfiguredApprovers  []uuid.UUID `json:"configured_approvers"`
	EscalationSector     *string     `json:"escalation_sector,omitempty"`
	EscalationPermission *string     `json:"escalation_permission,omitempty"`
	SelfApprovalRoles    []string    `json:"self_approval_roles,omitempty"`
	Active               bool        `json:"active"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}
