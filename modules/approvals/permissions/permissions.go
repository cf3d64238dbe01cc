// Package permissions names the authorization surface of the approvals
// module as casbin objects and actions.
package permissions

import "github.com/benefia/approvals/pkg/authz"

const ModuleName = "approvals"

var (
	ObjectRequests = authz.ObjectName(ModuleName, "requests")
)

const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionDecide = "decide"
	ActionCancel = "cancel"
)
