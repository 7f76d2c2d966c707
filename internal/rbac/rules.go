package rbac

// Attempt permissions.
const (
	PermAttemptStart  = "attempt:start"
	PermAttemptAnswer = "attempt:answer"
	PermAttemptSubmit = "attempt:submit"
	PermAttemptView   = "attempt:view-own"
)

// RolePermissions is the default policy. Teachers may open an attempt to
// preview an assignment but cannot submit one.
var RolePermissions = map[string][]string{
	"student": {
		"attempt:*",
	},
	"teacher": {
		PermAttemptStart,
		PermAttemptAnswer,
		PermAttemptView,
	},
	"admin": {
		"*",
	},
}
