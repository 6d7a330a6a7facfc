package echoapi_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/gradebook/apps/api/echo"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/result"
	"github.com/trezcool/gradebook/core/tenant"
	"github.com/trezcool/gradebook/core/user"
	"github.com/trezcool/gradebook/testutil"
)

func principal(usr user.User) tenant.Principal {
	return tenant.Principal{SchoolID: usr.SchoolID, UserID: usr.ID, Role: usr.Role}
}

func cohortQuery() string {
	q := url.Values{}
	q.Set("subject_name", "Mathematics")
	q.Set("class", "JSS1")
	q.Set("session", "2024/2025")
	q.Set("term", "First Term")
	return q.Encode()
}

func Test_resultApi_create(t *testing.T) {
	f := setup(t)
	teacherToken := f.token(t, f.teacher)

	t.Run("success", func(t *testing.T) {
		body := marchallObj(t, testutil.Scores(f.student.ID, f.teacher.ID, 10, 10, 8, 56))
		rec := f.do(t, http.MethodPost, "/v1/results", teacherToken, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var res result.Result
		unmarshal(t, rec, &res)
		assert.NotEmpty(t, res.ID)
		assert.Equal(t, f.school.ID, res.SchoolID)
		assert.Equal(t, 84.0, res.TotalScore)
		assert.Equal(t, "B2", res.Grade)
		assert.Equal(t, f.teacher.ID, res.LastUpdatedBy)
	})

	invalid := testutil.Scores(f.student2.ID, f.teacher.ID, 10, 10, 8, 61)
	badSession := testutil.Scores(f.student2.ID, f.teacher.ID, 10, 10, 8, 50)
	badSession.Session = "2024/2026"

	tests := []httpTest{
		{
			name: "duplicate", token: teacherToken,
			body:     marchallObj(t, testutil.Scores(f.student.ID, f.teacher.ID, 1, 1, 1, 1)),
			wantCode: http.StatusConflict,
		},
		{
			name: "exam score out of range", token: teacherToken, body: marchallObj(t, invalid),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"exam_score": "exam_score must be 60 or less"}),
		},
		{
			name: "bad session", token: teacherToken, body: marchallObj(t, badSession),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"session": "session must look like 2024/2025"}),
		},
		{
			name: "student", token: f.token(t, f.student),
			body:     marchallObj(t, testutil.Scores(f.student2.ID, f.teacher.ID, 1, 1, 1, 1)),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "no token",
			body:     marchallObj(t, testutil.Scores(f.student2.ID, f.teacher.ID, 1, 1, 1, 1)),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/results"
	}
	runHttpTests(t, f, tests)
}

func Test_resultApi_detail(t *testing.T) {
	f := setup(t)
	res := testutil.CreateResult(t, f.ResultSvc, principal(f.teacher), testutil.Scores(f.student.ID, f.teacher.ID, 10, 10, 8, 40))
	path := "/v1/results/" + res.ID
	notFound := marchallObj(t, httpErr{Error: "not found"})

	tests := []httpTest{
		{name: "teacher", path: path, token: f.token(t, f.teacher), wantCode: http.StatusOK},
		{name: "colleague teacher", path: path, token: f.token(t, f.teacher2), wantCode: http.StatusOK},
		{name: "colleague teacher history", path: path + "/history", token: f.token(t, f.teacher2), wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "owner student", path: path, token: f.token(t, f.student), wantCode: http.StatusOK},
		{name: "other student", path: path, token: f.token(t, f.student2), wantCode: http.StatusForbidden},
		{name: "other school", path: path, token: f.token(t, f.otherAdmin), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "unknown", path: "/v1/results/nope", token: f.token(t, f.admin), wantCode: http.StatusNotFound, wantData: notFound},
	}
	runHttpTests(t, f, tests)
}

func Test_resultApi_update(t *testing.T) {
	f := setup(t)
	res := testutil.CreateResult(t, f.ResultSvc, principal(f.teacher), testutil.Scores(f.student.ID, f.teacher.ID, 10, 10, 8, 40))
	path := "/v1/results/" + res.ID

	t.Run("patch", func(t *testing.T) {
		body := marchallObj(t, result.UpdateResult{ExamScore: testutil.F(55), ChangeReason: "remark"})
		req, rec := newAuthRequest(http.MethodPatch, path, f.token(t, f.teacher), body)
		req.Header.Set("X-Real-IP", "10.1.2.3")
		req.Header.Set("User-Agent", "gradebook-test")
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var updated result.Result
		unmarshal(t, rec, &updated)
		assert.Equal(t, 83.0, updated.TotalScore)

		rec = f.do(t, http.MethodGet, path+"/history", f.token(t, f.admin))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var entries []audit.Entry
		unmarshal(t, rec, &entries)
		require.Len(t, entries, 1)
		assert.Equal(t, 40.0, entries[0].Previous.ExamScore)
		assert.Equal(t, 55.0, entries[0].New.ExamScore)
		assert.Equal(t, "Tunde Okafor", entries[0].ChangedByName)
		assert.Equal(t, "remark", entries[0].ChangeReason)
		assert.Equal(t, "192.0.2.1", entries[0].IPAddress, "headers are ignored without trusted proxies")
		assert.Equal(t, "gradebook-test", entries[0].UserAgent)
	})

	tests := []httpTest{
		{
			name: "put by other teacher", method: http.MethodPut, path: path, token: f.token(t, f.teacher2),
			body: marchallObj(t, result.UpdateResult{ExamScore: testutil.F(10)}), wantCode: http.StatusForbidden,
		},
		{
			name: "out of range", method: http.MethodPut, path: path, token: f.token(t, f.teacher),
			body:     marchallObj(t, result.UpdateResult{CATest: testutil.F(11)}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"ca_test": "ca_test must be 10 or less"}),
		},
		{
			name: "student", method: http.MethodPatch, path: path, token: f.token(t, f.student),
			body: marchallObj(t, result.UpdateResult{ExamScore: testutil.F(60)}), wantCode: http.StatusForbidden,
		},
		{
			name: "other school", method: http.MethodPatch, path: path, token: f.token(t, f.otherAdmin),
			body: marchallObj(t, result.UpdateResult{ExamScore: testutil.F(60)}), wantCode: http.StatusNotFound,
		},
		{name: "history of unknown", path: "/v1/results/nope/history", token: f.token(t, f.admin), wantCode: http.StatusNotFound},
		{name: "history by other student", path: path + "/history", token: f.token(t, f.student2), wantCode: http.StatusForbidden},
	}
	runHttpTests(t, f, tests)
}

func Test_resultApi_updateClientIP(t *testing.T) {
	f := setup(t)
	res := testutil.CreateResult(t, f.ResultSvc, principal(f.teacher), testutil.Scores(f.student.ID, f.teacher.ID, 10, 10, 8, 40))

	proxied := *f.Conf
	proxied.Server.TrustedProxies = []string{"192.0.2.0/24", "not-a-proxy"}
	behindProxy := newServer(t, f.Backend, &proxied)

	tests := []struct {
		name   string
		app    Server
		xff    string
		wantIP string
	}{
		{name: "direct", app: f.app, wantIP: "192.0.2.1"},
		{name: "direct ignores forwarded", app: f.app, xff: "203.0.113.7", wantIP: "192.0.2.1"},
		{name: "direct ignores oversized forwarded", app: f.app, xff: strings.Repeat("x", 100), wantIP: "192.0.2.1"},
		{name: "trusted proxy", app: behindProxy, xff: "203.0.113.7", wantIP: "203.0.113.7"},
		{name: "trusted proxy chain", app: behindProxy, xff: "198.51.100.4, 192.0.2.9", wantIP: "198.51.100.4"},
		{name: "trusted proxy ipv6", app: behindProxy, xff: "2001:db8::1", wantIP: "2001:db8::1"},
		{name: "trusted proxy oversized forwarded", app: behindProxy, xff: strings.Repeat("x", 100), wantIP: "192.0.2.1"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := marchallObj(t, result.UpdateResult{ExamScore: testutil.F(float64(41 + i))})
			req, rec := newAuthRequest(http.MethodPatch, "/v1/results/"+res.ID, f.token(t, f.teacher), body)
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			tt.app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			entries, err := f.ResultSvc.History(context.Background(), principal(f.admin), res.ID)
			require.NoError(t, err)
			require.Len(t, entries, i+1, "every update is recorded")
			assert.Equal(t, tt.wantIP, entries[0].IPAddress)
			assert.LessOrEqual(t, len(entries[0].IPAddress), 45)
		})
	}
}

func Test_resultApi_bulkUpdate(t *testing.T) {
	f := setup(t)
	p := principal(f.teacher)
	r1 := testutil.CreateResult(t, f.ResultSvc, p, testutil.Scores(f.student.ID, f.teacher.ID, 10, 10, 8, 40))
	r2 := testutil.CreateResult(t, f.ResultSvc, p, testutil.Scores(f.student2.ID, f.teacher.ID, 10, 10, 8, 30))
	token := f.token(t, f.teacher)

	item := func(id string, exam float64) result.BulkItem {
		return result.BulkItem{ID: id, UpdateResult: result.UpdateResult{ExamScore: testutil.F(exam)}}
	}

	t.Run("atomic failure", func(t *testing.T) {
		body := marchallObj(t, result.BulkUpdate{Updates: []result.BulkItem{item(r1.ID, 60), item("nope", 60)}})
		rec := f.do(t, http.MethodPut, "/v1/results/bulk", token, body)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		got, err := f.ResultSvc.Get(context.Background(), p, r1.ID)
		require.NoError(t, err)
		assert.Equal(t, 40.0, got.ExamScore)
	})

	t.Run("invalid item", func(t *testing.T) {
		body := marchallObj(t, result.BulkUpdate{Updates: []result.BulkItem{item(r1.ID, 61)}})
		rec := f.do(t, http.MethodPut, "/v1/results/bulk", token, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/v1/results/bulk", token, []byte(`{"updates":[]}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		body := marchallObj(t, result.BulkUpdate{Updates: []result.BulkItem{item(r1.ID, 20), item(r2.ID, 50)}})
		rec := f.do(t, http.MethodPut, "/v1/results/bulk", token, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp BulkUpdateResponse
		unmarshal(t, rec, &resp)
		require.Equal(t, 2, resp.Count)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, 48.0, resp.Results[0].TotalScore)
		assert.Equal(t, 78.0, resp.Results[1].TotalScore)

		// positions follow the new totals
		got, err := f.ResultSvc.Get(context.Background(), p, r2.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Position)
		assert.Equal(t, 1, *got.Position)
	})
}

func Test_resultApi_delete(t *testing.T) {
	f := setup(t)
	res := testutil.CreateResult(t, f.ResultSvc, principal(f.teacher), testutil.Scores(f.student.ID, f.teacher.ID, 10, 10, 8, 40))
	path := "/v1/results/" + res.ID

	tests := []httpTest{
		{name: "teacher", method: http.MethodDelete, path: path, token: f.token(t, f.teacher), wantCode: http.StatusForbidden},
		{name: "other school", method: http.MethodDelete, path: path, token: f.token(t, f.otherAdmin), wantCode: http.StatusNotFound},
		{name: "admin", method: http.MethodDelete, path: path, token: f.token(t, f.admin), wantCode: http.StatusOK},
		{name: "gone", path: path, token: f.token(t, f.admin), wantCode: http.StatusNotFound},
	}
	runHttpTests(t, f, tests)
}

func Test_resultApi_queries(t *testing.T) {
	f := setup(t)
	p := principal(f.teacher)
	testutil.CreateResult(t, f.ResultSvc, p, testutil.Scores(f.student.ID, f.teacher.ID, 10, 10, 8, 40))
	testutil.CreateResult(t, f.ResultSvc, p, testutil.Scores(f.student2.ID, f.teacher.ID, 10, 10, 8, 30))
	english := testutil.Scores(f.student.ID, f.teacher2.ID, 5, 5, 5, 5)
	english.SubjectName = "English"
	testutil.CreateResult(t, f.ResultSvc, principal(f.teacher2), english)

	count := func(t *testing.T, path, token string) int {
		t.Helper()
		rec := f.do(t, http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var results []result.Result
		unmarshal(t, rec, &results)
		return len(results)
	}

	t.Run("class", func(t *testing.T) {
		assert.Equal(t, 2, count(t, "/v1/results/class?"+cohortQuery(), f.token(t, f.teacher2)))
		assert.Equal(t, 1, count(t, "/v1/results/class?limit=1&"+cohortQuery(), f.token(t, f.admin)))

		rec := f.do(t, http.MethodGet, "/v1/results/class?class=JSS1", f.token(t, f.admin))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = f.do(t, http.MethodGet, "/v1/results/class?limit=abc&"+cohortQuery(), f.token(t, f.admin))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("teacher", func(t *testing.T) {
		path := "/v1/teachers/" + f.teacher.ID + "/results"
		assert.Equal(t, 2, count(t, path, f.token(t, f.teacher)))
		assert.Equal(t, 1, count(t, path+"?student_search=bayo", f.token(t, f.teacher)))
		assert.Equal(t, 2, count(t, path, f.token(t, f.admin)))

		rec := f.do(t, http.MethodGet, path, f.token(t, f.teacher2))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = f.do(t, http.MethodGet, "/v1/teachers/"+f.student.ID+"/results", f.token(t, f.admin))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("assignments", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/teachers/"+f.teacher.ID+"/assignments", f.token(t, f.teacher))
		require.Equal(t, http.StatusOK, rec.Code)
		var assignments []result.Assignment
		unmarshal(t, rec, &assignments)
		assert.Equal(t, []result.Assignment{
			{SubjectName: "Mathematics", Class: "JSS1", Session: "2024/2025", Term: "First Term"},
		}, assignments)
	})

	t.Run("student", func(t *testing.T) {
		path := "/v1/students/" + f.student.ID + "/results"
		assert.Equal(t, 2, count(t, path, f.token(t, f.student)))
		assert.Equal(t, 1, count(t, path+"?subject_name=English", f.token(t, f.teacher)))

		rec := f.do(t, http.MethodGet, path, f.token(t, f.student2))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = f.do(t, http.MethodGet, path, f.token(t, f.otherAdmin))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
