// Package tenant decides whether a caller may act on a school-scoped resource.
package tenant

import "github.com/trezcool/gradebook/core"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

var Roles = []Role{RoleAdmin, RoleTeacher, RoleStudent}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// Principal is the authenticated caller, as carried by the request token.
type Principal struct {
	SchoolID string
	UserID   string
	Role     Role
}

func (p Principal) IsAdmin() bool   { return p.Role == RoleAdmin }
func (p Principal) IsTeacher() bool { return p.Role == RoleTeacher }
func (p Principal) IsStudent() bool { return p.Role == RoleStudent }

type Action int

const (
	ActionCreate Action = iota + 1
	ActionRead
	ActionUpdate
	ActionDelete
	ActionListByTeacher
	ActionListCohort
	ActionListByStudent
	ActionViewHistory
	ActionViewStatistics
	ActionRecalculate
	ActionListAssignments
)

var actionNames = map[Action]string{
	ActionCreate:          "create",
	ActionRead:            "read",
	ActionUpdate:          "update",
	ActionDelete:          "delete",
	ActionListByTeacher:   "list-by-teacher",
	ActionListCohort:      "list-cohort",
	ActionListByStudent:   "list-by-student",
	ActionViewHistory:     "view-history",
	ActionViewStatistics:  "view-statistics",
	ActionRecalculate:     "recalculate",
	ActionListAssignments: "list-assignments",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Resource describes the target of an action.
// TeacherID and StudentID are the owners of a result, or the subject of a listing.
type Resource struct {
	SchoolID  string
	TeacherID string
	StudentID string
}

type Decision int

const (
	Allowed Decision = iota
	Forbidden
	NotFound
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Forbidden:
		return "forbidden"
	default:
		return "not found"
	}
}

// Err maps a Decision to core.ErrForbidden / core.ErrNotFound, or nil when allowed.
func (d Decision) Err() error {
	switch d {
	case Allowed:
		return nil
	case Forbidden:
		return core.ErrForbidden
	default:
		return core.ErrNotFound
	}
}

// Authorize is the single policy function consulted before every operation.
// A resource outside the caller's school is reported as NotFound so that other
// tenants' data cannot be probed.
func Authorize(p Principal, action Action, res Resource) Decision {
	if p.SchoolID == "" || res.SchoolID != p.SchoolID {
		return NotFound
	}

	switch p.Role {
	case RoleAdmin:
		return Allowed
	case RoleTeacher:
		return authorizeTeacher(p, action, res)
	case RoleStudent:
		return authorizeStudent(p, action, res)
	default:
		return Forbidden
	}
}

func authorizeTeacher(p Principal, action Action, res Resource) Decision {
	switch action {
	case ActionCreate, ActionRead, ActionListCohort, ActionListByStudent,
		ActionViewHistory, ActionViewStatistics, ActionRecalculate:
		return Allowed
	case ActionUpdate, ActionListByTeacher, ActionListAssignments:
		if res.TeacherID == p.UserID {
			return Allowed
		}
		return Forbidden
	default: // ActionDelete is admin only
		return Forbidden
	}
}

func authorizeStudent(p Principal, action Action, res Resource) Decision {
	switch action {
	case ActionRead, ActionListByStudent:
		if res.StudentID == p.UserID {
			return Allowed
		}
		return Forbidden
	default:
		return Forbidden
	}
}
