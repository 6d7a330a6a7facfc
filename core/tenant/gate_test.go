package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/gradebook/core"
)

func TestAuthorize(t *testing.T) {
	admin := Principal{SchoolID: "s1", UserID: "a1", Role: RoleAdmin}
	teacher := Principal{SchoolID: "s1", UserID: "t1", Role: RoleTeacher}
	student := Principal{SchoolID: "s1", UserID: "st1", Role: RoleStudent}
	stranger := Principal{SchoolID: "s1", UserID: "x", Role: Role("janitor")}

	own := Resource{SchoolID: "s1", TeacherID: "t1", StudentID: "st1"}
	others := Resource{SchoolID: "s1", TeacherID: "t2", StudentID: "st2"}
	foreign := Resource{SchoolID: "s2", TeacherID: "t1", StudentID: "st1"}

	tests := []struct {
		name   string
		p      Principal
		action Action
		res    Resource
		want   Decision
	}{
		// tenant isolation
		{name: "admin: other school", p: admin, action: ActionRead, res: foreign, want: NotFound},
		{name: "teacher: other school", p: teacher, action: ActionUpdate, res: foreign, want: NotFound},
		{name: "student: other school", p: student, action: ActionRead, res: foreign, want: NotFound},
		{name: "no school in principal", p: Principal{UserID: "a1", Role: RoleAdmin}, action: ActionRead, res: Resource{}, want: NotFound},

		// admin
		{name: "admin: delete", p: admin, action: ActionDelete, res: others, want: Allowed},
		{name: "admin: update any", p: admin, action: ActionUpdate, res: others, want: Allowed},
		{name: "admin: list any teacher", p: admin, action: ActionListByTeacher, res: others, want: Allowed},

		// teacher
		{name: "teacher: create", p: teacher, action: ActionCreate, res: others, want: Allowed},
		{name: "teacher: read any in school", p: teacher, action: ActionRead, res: others, want: Allowed},
		{name: "teacher: update own", p: teacher, action: ActionUpdate, res: own, want: Allowed},
		{name: "teacher: update others", p: teacher, action: ActionUpdate, res: others, want: Forbidden},
		{name: "teacher: delete own", p: teacher, action: ActionDelete, res: own, want: Forbidden},
		{name: "teacher: list self", p: teacher, action: ActionListByTeacher, res: own, want: Allowed},
		{name: "teacher: list other teacher", p: teacher, action: ActionListByTeacher, res: others, want: Forbidden},
		{name: "teacher: history", p: teacher, action: ActionViewHistory, res: others, want: Allowed},
		{name: "teacher: recalculate", p: teacher, action: ActionRecalculate, res: others, want: Allowed},
		{name: "teacher: assignments of other", p: teacher, action: ActionListAssignments, res: others, want: Forbidden},

		// student
		{name: "student: read own", p: student, action: ActionRead, res: own, want: Allowed},
		{name: "student: read others", p: student, action: ActionRead, res: others, want: Forbidden},
		{name: "student: list own", p: student, action: ActionListByStudent, res: own, want: Allowed},
		{name: "student: update own", p: student, action: ActionUpdate, res: own, want: Forbidden},
		{name: "student: statistics", p: student, action: ActionViewStatistics, res: own, want: Forbidden},
		{name: "student: cohort list", p: student, action: ActionListCohort, res: own, want: Forbidden},

		{name: "unknown role", p: stranger, action: ActionRead, res: own, want: Forbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.p, tt.action, tt.res))
		})
	}
}

func TestDecision_Err(t *testing.T) {
	assert.NoError(t, Allowed.Err())
	assert.Equal(t, core.ErrForbidden, Forbidden.Err())
	assert.Equal(t, core.ErrNotFound, NotFound.Err())
}
