package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/result"
	"github.com/trezcool/gradebook/core/tenant"
	"github.com/trezcool/gradebook/core/user"
	"github.com/trezcool/gradebook/testutil"
)

func TestUserRepository(t *testing.T) {
	b := testutil.NewPostgresBackend(t)
	ctx := context.Background()
	repo := b.UserRepo

	school := testutil.CreateSchool(t, repo, "Green Valley", "greenvalley")
	_, err := repo.CreateSchool(ctx, user.School{Name: "Copy", Code: "greenvalley"})
	assert.True(t, core.IsConflict(err), "duplicate code: %v", err)

	got, err := repo.GetSchool(ctx, user.GetSchoolFilter{Code: "greenvalley"})
	require.NoError(t, err)
	assert.Equal(t, school.ID, got.ID)

	schools, err := repo.QuerySchools(ctx)
	require.NoError(t, err)
	assert.Len(t, schools, 1)

	usr := testutil.CreateUser(t, repo, school.ID, "Tunde", "Okafor", "tunde@gv.test", "s3cret-pass", tenant.RoleTeacher, true)
	_, err = repo.CreateUser(ctx, user.User{SchoolID: school.ID, FirstName: "A", LastName: "B", Email: "tunde@gv.test", Role: tenant.RoleStudent})
	assert.True(t, core.IsConflict(err), "duplicate email: %v", err)

	tests := []struct {
		name    string
		filter  user.GetFilter
		wantErr error
	}{
		{name: "by id", filter: user.GetFilter{SchoolID: school.ID, ID: usr.ID}},
		{name: "by email", filter: user.GetFilter{SchoolID: school.ID, Email: "tunde@gv.test"}},
		{name: "malformed id", filter: user.GetFilter{ID: "nope"}, wantErr: core.ErrNotFound},
		{name: "empty filter", wantErr: core.ErrNotFound},
		{name: "other school", filter: user.GetFilter{SchoolID: "3f1c7a1e-0000-4000-8000-000000000000", ID: usr.ID}, wantErr: core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetUser(ctx, tt.filter)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, usr.ID, got.ID)
			assert.NoError(t, got.CheckPassword("s3cret-pass"))
			assert.True(t, got.LastLogin.IsZero())
		})
	}

	usr.IsActive = false
	_, err = repo.UpdateUser(ctx, usr)
	require.NoError(t, err)
	got2, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.False(t, got2.IsActive)
}

func TestResultRepository(t *testing.T) {
	b := testutil.NewPostgresBackend(t)
	ctx := context.Background()

	school := testutil.CreateSchool(t, b.UserRepo, "Green Valley", "greenvalley")
	teacher := testutil.CreateUser(t, b.UserRepo, school.ID, "Tunde", "Okafor", "tunde@gv.test", "", tenant.RoleTeacher, true)
	amaka := testutil.CreateUser(t, b.UserRepo, school.ID, "Amaka", "Eze", "amaka@gv.test", "", tenant.RoleStudent, true)
	bayo := testutil.CreateUser(t, b.UserRepo, school.ID, "Bayo", "Adeyemi", "bayo@gv.test", "", tenant.RoleStudent, true)
	p := tenant.Principal{SchoolID: school.ID, UserID: teacher.ID, Role: tenant.RoleTeacher}

	r1 := testutil.CreateResult(t, b.ResultSvc, p, testutil.Scores(amaka.ID, teacher.ID, 10, 10, 8, 40))
	r2 := testutil.CreateResult(t, b.ResultSvc, p, testutil.Scores(bayo.ID, teacher.ID, 15, 15, 10, 50))

	_, err := b.ResultSvc.Create(ctx, p, testutil.Scores(amaka.ID, teacher.ID, 1, 1, 1, 1))
	assert.True(t, core.IsConflict(err), "duplicate cohort entry: %v", err)

	t.Run("get", func(t *testing.T) {
		got, err := b.ResultRepo.GetResult(ctx, school.ID, r1.ID, false)
		require.NoError(t, err)
		assert.Equal(t, 68.0, got.TotalScore)
		assert.Equal(t, "Amaka", got.StudentFirstName)
		assert.Equal(t, "Tunde Okafor", got.TeacherName)
		require.NotNil(t, got.Position)
		assert.Equal(t, 2, *got.Position)

		_, err = b.ResultRepo.GetResult(ctx, school.ID, "nope", false)
		assert.Equal(t, core.ErrNotFound, err)
	})

	t.Run("query", func(t *testing.T) {
		filter := result.QueryFilter{SchoolID: school.ID, TeacherID: teacher.ID}
		results, err := b.ResultRepo.QueryResults(ctx, filter)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, r2.ID, results[0].ID) // best first
		assert.Equal(t, r1.ID, results[1].ID)

		filter.Search = "EZE"
		results, err = b.ResultRepo.QueryResults(ctx, filter)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, r1.ID, results[0].ID)

		filter.Search = "%"
		results, err = b.ResultRepo.QueryResults(ctx, filter)
		require.NoError(t, err)
		assert.Empty(t, results)

		results, err = b.ResultRepo.QueryResults(ctx, result.QueryFilter{SchoolID: school.ID, Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, r1.ID, results[0].ID)
	})

	t.Run("assignments", func(t *testing.T) {
		assignments, err := b.ResultRepo.QueryAssignments(ctx, school.ID, teacher.ID)
		require.NoError(t, err)
		assert.Equal(t, []result.Assignment{
			{SubjectName: "Mathematics", Class: "JSS1", Session: "2024/2025", Term: "First Term"},
		}, assignments)
	})

	t.Run("rolled back bulk update", func(t *testing.T) {
		_, err := b.ResultSvc.BulkUpdate(ctx, p, result.BulkUpdate{Updates: []result.BulkItem{
			{ID: r1.ID, UpdateResult: result.UpdateResult{ExamScore: testutil.F(60)}},
			{ID: "3f1c7a1e-0000-4000-8000-000000000000", UpdateResult: result.UpdateResult{ExamScore: testutil.F(60)}},
		}}, result.ChangeMeta{})
		assert.Equal(t, core.ErrNotFound, errors.Cause(err))

		got, err := b.ResultRepo.GetResult(ctx, school.ID, r1.ID, false)
		require.NoError(t, err)
		assert.Equal(t, 40.0, got.ExamScore)
	})

	t.Run("delete", func(t *testing.T) {
		admin := tenant.Principal{SchoolID: school.ID, UserID: teacher.ID, Role: tenant.RoleAdmin}
		_, err := b.ResultSvc.Delete(ctx, admin, r2.ID)
		require.NoError(t, err)
		assert.Equal(t, core.ErrNotFound, b.ResultRepo.DeleteResult(ctx, school.ID, r2.ID))

		got, err := b.ResultRepo.GetResult(ctx, school.ID, r1.ID, false)
		require.NoError(t, err)
		require.NotNil(t, got.Position)
		assert.Equal(t, 1, *got.Position)
	})
}
