package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core/stats"
	"github.com/trezcool/gradebook/testutil"
)

func Test_statisticsApi(t *testing.T) {
	f := setup(t)
	path := "/v1/statistics?" + cohortQuery()

	t.Run("not computed yet", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, path, f.token(t, f.teacher))
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}, rec)
	})

	p := principal(f.teacher)
	testutil.CreateResult(t, f.ResultSvc, p, testutil.Scores(f.student.ID, f.teacher.ID, 10, 10, 8, 40))
	testutil.CreateResult(t, f.ResultSvc, p, testutil.Scores(f.student2.ID, f.teacher.ID, 10, 10, 8, 20))

	t.Run("retrieve", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, path, f.token(t, f.teacher))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var st stats.ClassStatistics
		unmarshal(t, rec, &st)
		assert.Equal(t, f.school.ID, st.SchoolID)
		assert.Equal(t, 2, st.StudentCount)
		assert.Equal(t, 58.0, st.AverageScore)
		assert.Equal(t, 68.0, st.HighestScore)
		assert.Equal(t, 48.0, st.LowestScore)
	})

	t.Run("recalculate from body", func(t *testing.T) {
		key := testutil.Cohort("")
		rec := f.do(t, http.MethodPost, "/v1/statistics/recalculate", f.token(t, f.teacher), marchallObj(t, key))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rc stats.Recomputation
		unmarshal(t, rec, &rc)
		assert.Equal(t, 2, rc.Statistics.StudentCount)
		require.Len(t, rc.Positions, 2)
		assert.Equal(t, f.student.ID, rc.Positions[0].StudentID)
		assert.Equal(t, 1, rc.Positions[0].Position)
		assert.Equal(t, 2, rc.Positions[1].Position)
	})

	t.Run("recalculate from query", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/statistics/recalculate?"+cohortQuery(), f.token(t, f.admin))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	tests := []httpTest{
		{name: "student reads", path: path, token: f.token(t, f.student), wantCode: http.StatusForbidden},
		{name: "other school", path: path, token: f.token(t, f.otherAdmin), wantCode: http.StatusNotFound},
		{name: "missing cohort", path: "/v1/statistics?class=JSS1", token: f.token(t, f.admin), wantCode: http.StatusBadRequest},
		{
			name: "student recalculates", method: http.MethodPost, path: "/v1/statistics/recalculate?" + cohortQuery(),
			token: f.token(t, f.student), wantCode: http.StatusForbidden,
		},
		{name: "no token", path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
	}
	runHttpTests(t, f, tests)
}
