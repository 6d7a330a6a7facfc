package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/result"
	"github.com/trezcool/gradebook/core/stats"
	inmemdb "github.com/trezcool/gradebook/storage/database/inmem"
	"github.com/trezcool/gradebook/testutil"
)

func newResult(schoolID, studentID string, total float64) result.Result {
	nr := testutil.Scores(studentID, "t1", 0, 0, 0, 0)
	return result.Result{
		SchoolID:    schoolID,
		StudentID:   studentID,
		SubjectName: nr.SubjectName,
		TeacherID:   nr.TeacherID,
		Class:       nr.Class,
		Session:     nr.Session,
		Term:        nr.Term,
		TotalScore:  total,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestDB_WithinTx(t *testing.T) {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	results := inmemdb.NewResultRepository(db)
	statistics := inmemdb.NewStatisticsRepository(db)
	ctx := context.Background()
	key := testutil.Cohort("s1")

	kept, err := results.CreateResult(ctx, newResult("s1", "st1", 50))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := results.CreateResult(ctx, newResult("s1", "st2", 70), exec); err != nil {
			return err
		}
		if err := statistics.SaveStatistics(ctx, stats.ClassStatistics{CohortKey: key, StudentCount: 2}, exec); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)

	got, err := results.QueryResults(ctx, result.QueryFilter{SchoolID: "s1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, kept.ID, got[0].ID)
	_, err = statistics.GetStatistics(ctx, key)
	assert.Equal(t, core.ErrNotFound, err)

	t.Run("panic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = db.WithinTx(ctx, func(exec core.DBExecutor) error {
				_, _ = results.CreateResult(ctx, newResult("s1", "st3", 70), exec)
				panic("boom")
			})
		})
		got, err := results.QueryResults(ctx, result.QueryFilter{SchoolID: "s1"})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("commit", func(t *testing.T) {
		err := db.WithinTx(ctx, func(exec core.DBExecutor) error {
			_, err := results.CreateResult(ctx, newResult("s1", "st4", 70), exec)
			return err
		})
		require.NoError(t, err)
		got, err := results.QueryResults(ctx, result.QueryFilter{SchoolID: "s1"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		called := false
		err := db.WithinTx(cctx, func(core.DBExecutor) error {
			called = true
			return nil
		})
		assert.Equal(t, context.Canceled, err)
		assert.False(t, called)
	})

	t.Run("reset", func(t *testing.T) {
		db.Reset()
		got, err := results.QueryResults(ctx, result.QueryFilter{SchoolID: "s1"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
