package permissions

import (
	"sort"
	"strings"

	"bizassist/internal/model"
)

// Action names checked by mutating tools.
const (
	ActionCreateInvoice = "create_invoice"
	ActionSendReminder  = "send_reminder"
	ActionRecordPayment = "record_payment"
	ActionRecordExpense = "record_expense"
	ActionCreateTask    = "create_task"
	ActionMoveTask      = "move_task"
)

var matrix = map[string]map[model.Role]struct{}{
	ActionCreateInvoice: roles(model.RoleOwner, model.RoleManager),
	ActionSendReminder:  roles(model.RoleOwner, model.RoleManager),
	ActionRecordPayment: roles(model.RoleOwner, model.RoleManager),
	ActionRecordExpense: roles(model.RoleOwner, model.RoleManager),
	ActionCreateTask:    roles(model.RoleOwner, model.RoleManager, model.RoleMember),
	ActionMoveTask:      roles(model.RoleOwner, model.RoleManager, model.RoleMember),
}

func roles(rs ...model.Role) map[model.Role]struct{} {
	out := make(map[model.Role]struct{}, len(rs))
	for _, r := range rs {
		out[r] = struct{}{}
	}
	return out
}

// IsAllowed reports whether role may perform action. Unknown actions are
// denied for every role.
func IsAllowed(role model.Role, action string) bool {
	allowed, ok := matrix[strings.TrimSpace(action)]
	if !ok {
		return false
	}
	_, ok = allowed[model.Role(strings.TrimSpace(string(role)))]
	return ok
}

// Require returns a Forbidden error when role may not perform action.
func Require(role model.Role, action string) error {
	if IsAllowed(role, action) {
		return nil
	}
	if strings.TrimSpace(string(role)) == "" {
		return model.Forbidden("a role is required to %s", humanize(action))
	}
	return model.Forbidden("role %q may not %s", role, humanize(action))
}

// AllowedRoles lists the roles permitted for action, sorted.
func AllowedRoles(action string) []model.Role {
	var out []model.Role
	for r := range matrix[action] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Actions lists every action in the matrix, sorted.
func Actions() []string {
	out := make([]string, 0, len(matrix))
	for a := range matrix {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func humanize(action string) string {
	return strings.ReplaceAll(action, "_", " ")
}
