package auth

const (
	RoleStaff      = "staff"
	RoleSupervisor = "supervisor"
	RoleHR         = "hr"
	RoleMD         = "md"
	RoleAdmin      = "admin"
)

var Roles = []string{RoleStaff, RoleSupervisor, RoleHR, RoleMD, RoleAdmin}

const (
	PermStaffRead      = "staff.read"
	PermStaffWrite     = "staff.write"
	PermStaffDelete    = "staff.delete"
	PermPeriodRead     = "period.read"
	PermPeriodWrite    = "period.write"
	PermPeriodDelete   = "period.delete"
	PermAppraisalRead  = "appraisal.read"
	PermAppraisalWrite = "appraisal.write"
	PermAppraisalAdmin = "appraisal.admin"
	PermLedgerRead     = "ledger.read"
	PermLedgerAdmin    = "ledger.admin"
)

var DefaultPermissions = []string{
	PermStaffRead,
	PermStaffWrite,
	PermStaffDelete,
	PermPeriodRead,
	PermPeriodWrite,
	PermPeriodDelete,
	PermAppraisalRead,
	PermAppraisalWrite,
	PermAppraisalAdmin,
	PermLedgerRead,
	PermLedgerAdmin,
}

// RolePermissions gates routes. Whether a given actor may act on a given
// appraisal is decided by the workflow, not here.
var RolePermissions = map[string][]string{
	RoleStaff: {
		PermPeriodRead,
		PermAppraisalRead,
		PermAppraisalWrite,
		PermLedgerRead,
	},
	RoleSupervisor: {
		PermStaffRead,
		PermPeriodRead,
		PermAppraisalRead,
		PermAppraisalWrite,
		PermLedgerRead,
	},
	RoleHR: {
		PermStaffRead,
		PermStaffWrite,
		PermPeriodRead,
		PermPeriodWrite,
		PermAppraisalRead,
		PermAppraisalWrite,
		PermLedgerRead,
	},
	RoleMD: {
		PermStaffRead,
		PermPeriodRead,
		PermPeriodWrite,
		PermAppraisalRead,
		PermAppraisalWrite,
		PermLedgerRead,
	},
	RoleAdmin: DefaultPermissions,
}

// CanSupervise reports whether role may be assigned as, and act as, a
// staff member's supervisor.
func CanSupervise(role string) bool {
	switch role {
	case RoleSupervisor, RoleHR, RoleMD, RoleAdmin:
		return true
	}
	return false
}

func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

func HasPermission(role, permission string) bool {
	for _, perm := range RolePermissions[role] {
		if perm == permission {
			return true
		}
	}
	return false
}
