package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/tenant"
	"github.com/trezcool/gradebook/testutil"
)

type brokenRepo struct{}

func (brokenRepo) InsertEntry(context.Context, audit.Entry, ...core.DBExecutor) (audit.Entry, error) {
	return audit.Entry{}, errors.New("connection reset")
}

func (brokenRepo) QueryEntries(context.Context, string, string, ...core.DBExecutor) ([]audit.Entry, error) {
	return nil, errors.New("connection reset")
}

func TestTrail(t *testing.T) {
	b := testutil.NewBackend(t)
	ctx := context.Background()
	school := testutil.CreateSchool(t, b.UserRepo, "Green Valley", "greenvalley")
	teacher := testutil.CreateUser(t, b.UserRepo, school.ID, "Tunde", "Okafor", "tunde@gv.test", "", tenant.RoleTeacher, true)
	student := testutil.CreateUser(t, b.UserRepo, school.ID, "Amaka", "Eze", "amaka@gv.test", "", tenant.RoleStudent, true)

	fixedNow := time.Date(2024, time.October, 1, 8, 0, 0, 0, time.UTC)
	audit.NowFunc = func() time.Time { return fixedNow }
	defer func() { audit.NowFunc = time.Now }()

	resultID := "8a6c2a5e-58d3-4b8e-9b55-6f4f7c9d3c11"
	b.Trail.Record(ctx, audit.Entry{
		SchoolID:        school.ID,
		StudentResultID: resultID,
		Previous:        audit.Snapshot{ExamScore: 40, TotalScore: 70, Grade: "B3"},
		New:             audit.Snapshot{ExamScore: 50, TotalScore: 80, Grade: "B2"},
		ChangedBy:       teacher.ID,
		ChangeReason:    "re-marked",
	})
	b.Trail.Record(ctx, audit.Entry{
		SchoolID:        school.ID,
		StudentResultID: resultID,
		Previous:        audit.Snapshot{ExamScore: 50, TotalScore: 80, Grade: "B2"},
		New:             audit.Snapshot{ExamScore: 55, TotalScore: 85, Grade: "B2"},
		ChangedBy:       teacher.ID,
		CreatedAt:       fixedNow.Add(time.Hour),
	})

	entries, err := b.Trail.History(ctx, teacher.Principal(), resultID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, fixedNow.Add(time.Hour), entries[0].CreatedAt)
	assert.Equal(t, 85.0, entries[0].New.TotalScore)
	assert.Equal(t, fixedNow, entries[1].CreatedAt)
	assert.Equal(t, "re-marked", entries[1].ChangeReason)
	assert.Equal(t, "Tunde Okafor", entries[1].ChangedByName)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)

	_, err = b.Trail.History(ctx, student.Principal(), resultID)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	entries, err = b.Trail.History(ctx, tenant.Principal{SchoolID: "another", UserID: teacher.ID, Role: tenant.RoleAdmin}, resultID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrail_failures(t *testing.T) {
	logger := new(testutil.Logger)
	metrics := new(testutil.Metrics)
	trail := audit.NewTrail(brokenRepo{}, logger, metrics)
	p := tenant.Principal{SchoolID: "school", UserID: "admin", Role: tenant.RoleAdmin}

	assert.NotPanics(t, func() {
		trail.Record(context.Background(), audit.Entry{SchoolID: "school", StudentResultID: "result", ChangedBy: "admin"})
	})
	assert.Equal(t, 1, metrics.AuditFailures)
	assert.Equal(t, 1, logger.Len())

	_, err := trail.History(context.Background(), p, "result")
	assert.Error(t, err)
}
