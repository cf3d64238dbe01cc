package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/benefia/approvals/modules/approvals/domain/aggregates/assignment"
	"github.com/benefia/approvals/modules/approvals/domain/aggregates/policy"
	"github.com/benefia/approvals/modules/approvals/domain/aggregates/request"
	"github.com/benefia/approvals/modules/approvals/domain/directory"
)

// ApproverAssigner resolves the concrete approver set for one submitted
// request under one policy.
type ApproverAssigner interface {
	Assign(ctx context.Context, pol *policy.Policy, req *request.Request) ([]*assignment.Assignment, error)
}

// AssignerFactory selects the strategy implementation for a policy.
// SECTOR_ESCALATION and SELF_APPROVAL_BY_ROLE degrade to the configured
// approver set whenever resolution fails: an approval workflow must never
// end up with zero approvers.
type AssignerFactory struct {
	dir directory.Directory
	log *logrus.Logger
}

func NewAssignerFactory(dir directory.Directory, log *logrus.Logger) *AssignerFactory {
	return &AssignerFactory{dir: dir, log: log}
}

func (f *AssignerFactory) For(strategy policy.Strategy) ApproverAssigner {
	configured := &configuredAssigner{}
	switch strategy {
	case policy.StrategySectorEscalation:
		return &sectorAssigner{dir: f.dir, log: f.log, fallback: configured}
	case policy.StrategySelfApprovalByRole:
		return &selfApprovalAssigner{dir: f.dir, log: f.log, fallback: configured}
	default:
		return configured
	}
}

func buildAssignments(pol *policy.Policy, req *request.Request, approverIDs []uuid.UUID) []*assignment.Assignment {
	seen := make(map[uuid.UUID]struct{}, len(approverIDs))
	out := make([]*assignment.Assignment, 0, len(approverIDs))
	for _, id := range approverIDs {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, &assignment.Assignment{
			RequestID:  req.ID,
			PolicyID:   pol.ID,
			ApproverID: id,
			Active:     true,
		})
	}
	return out
}

// configuredAssigner serves SIMPLE and MAJORITY: every configured approver
// is assigned.
type configuredAssigner struct{}

func (a *configuredAssigner) Assign(_ context.Context, pol *policy.Policy, req *request.Request) ([]*assignment.Assignment, error) {
	out := buildAssignments(pol, req, pol.ConfiguredApprovers)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: policy %s has no configured approvers", ErrConfiguration, pol.ActionType)
	}
	return out, nil
}

// sectorAssigner serves SECTOR_ESCALATION: the approvers are the users both
// belonging to the escalation sector and holding the escalation permission.
type sectorAssigner struct {
	dir      directory.Directory
	log      *logrus.Logger
	fallback ApproverAssigner
}

func (a *sectorAssigner) Assign(ctx context.Context, pol *policy.Policy, req *request.Request) ([]*assignment.Assignment, error) {
	ids, ok := a.resolve(ctx, pol)
	if !ok {
		a.log.WithFields(logrus.Fields{
			"action_type": pol.ActionType,
			"request_id":  req.ID,
		}).Warn("approvals: sector escalation unresolved, falling back to configured approvers")
		return a.fallback.Assign(ctx, pol, req)
	}
	return buildAssignments(pol, req, ids), nil
}

func (a *sectorAssigner) resolve(ctx context.Context, pol *policy.Policy) ([]uuid.UUID, bool) {
	if pol.EscalationSector == nil || strings.TrimSpace(*pol.EscalationSector) == "" ||
		pol.EscalationPermission == nil || strings.TrimSpace(*pol.EscalationPermission) == "" {
		return nil, false
	}

	bySector, err := a.dir.UsersBySector(ctx, []string{*pol.EscalationSector})
	if err != nil || len(bySector) == 0 {
		if err != nil {
			a.log.WithError(err).Warn("approvals: sector lookup failed")
		}
		return nil, false
	}
	byPermission, err := a.dir.UsersByPermission(ctx, []string{*pol.EscalationPermission})
	if err != nil || len(byPermission) == 0 {
		if err != nil {
			a.log.WithError(err).Warn("approvals: permission lookup failed")
		}
		return nil, false
	}

	holders := make(map[uuid.UUID]struct{}, len(byPermission))
	for _, u := range byPermission {
		holders[u.ID] = struct{}{}
	}
	var ids []uuid.UUID
	for _, u := range bySector {
		if _, ok := holders[u.ID]; ok {
			ids = append(ids, u.ID)
		}
	}
	if len(ids) == 0 {
		return nil, false
	}
	return ids, true
}

// selfApprovalAssigner serves SELF_APPROVAL_BY_ROLE: an active requester
// whose role is in the allowed set becomes their own sole approver.
type selfApprovalAssigner struct {
	dir      directory.Directory
	log      *logrus.Logger
	fallback ApproverAssigner
}

func (a *selfApprovalAssigner) Assign(ctx context.Context, pol *policy.Policy, req *request.Request) ([]*assignment.Assignment, error) {
	user, err := a.dir.UserByID(ctx, req.RequesterID)
	if err != nil || user == nil {
		if err != nil {
			a.log.WithError(err).WithField("requester_id", req.RequesterID).
				Warn("approvals: requester lookup failed, falling back to configured approvers")
		}
		return a.fallback.Assign(ctx, pol, req)
	}

	if user.Active && roleAllowed(user.RoleCode, pol.SelfApprovalRoles) {
		return buildAssignments(pol, req, []uuid.UUID{req.RequesterID}), nil
	}
	return a.fallback.Assign(ctx, pol, req)
}

func roleAllowed(roleCode string, allowed []string) bool {
	for _, r := range allowed {
		if strings.EqualFold(strings.TrimSpace(r), strings.TrimSpace(roleCode)) {
			return true
		}
	}
	return false
}
