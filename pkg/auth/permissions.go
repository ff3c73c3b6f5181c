package auth

import "github.com/StricklySoft/whisper-grc/pkg/models"

// Action is an operation a role may be granted. The set is closed: values
// exist only as the package-level Action variables, so an unknown action
// cannot be expressed outside this package.
type Action struct {
	name string
}

// Actions within an organisation.
var (
	ActionRead            = Action{"org.read"}
	ActionManageUsers     = Action{"org.manage_users"}
	ActionManageControls  = Action{"org.manage_controls"}
	ActionManageEvidence  = Action{"org.manage_evidence"}
	ActionManageRisks     = Action{"org.manage_risks"}
	ActionManageIncidents = Action{"org.manage_incidents"}
)

// String returns the dotted action name, or "" for the zero Action.
func (a Action) String() string {
	return a.name
}

// Actions returns every defined action.
func Actions() []Action {
	return []Action{
		ActionRead,
		ActionManageUsers,
		ActionManageControls,
		ActionManageEvidence,
		ActionManageRisks,
		ActionManageIncidents,
	}
}

// ParseAction returns the action with the given dotted name.
func ParseAction(name string) (Action, bool) {
	for _, a := range Actions() {
		if a.name == name {
			return a, true
		}
	}
	return Action{}, false
}

type actionSet map[Action]struct{}

func newActionSet(actions ...Action) actionSet {
	s := make(actionSet, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

// rolePermissions is the static role-to-action matrix. RoleOwner is
// absent because it is granted every action unconditionally.
var rolePermissions = map[models.Role]actionSet{
	models.RoleAdmin: newActionSet(Actions()...),
	models.RoleMember: newActionSet(
		ActionRead,
		ActionManageEvidence,
		ActionManageRisks,
		ActionManageIncidents,
	),
	models.RoleAuditor: newActionSet(ActionRead),
}

// HasPermission reports whether role grants action. The owner role grants
// every action, including the zero Action; unknown roles grant nothing.
func HasPermission(role models.Role, action Action) bool {
	if role == models.RoleOwner {
		return true
	}
	_, ok := rolePermissions[role][action]
	return ok
}

// PermissionsFor lists the actions role grants, in Actions order.
func PermissionsFor(role models.Role) []Action {
	var out []Action
	for _, a := range Actions() {
		if HasPermission(role, a) {
			out = append(out, a)
		}
	}
	return out
}
