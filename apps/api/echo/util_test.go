package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/labstack/echo/v4"

	. "github.com/trezcool/gradebook/apps/api/echo"
	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/tenant"
	"github.com/trezcool/gradebook/core/user"
	"github.com/trezcool/gradebook/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	*testutil.Backend
	app Server

	school   user.School
	admin    user.User
	teacher  user.User
	teacher2 user.User
	student  user.User
	student2 user.User

	other      user.School
	otherAdmin user.User
}

const password = "s3cret-pass"

func setup(t *testing.T) fixture {
	b := testutil.NewBackend(t)
	f := fixture{Backend: b}

	f.app = newServer(t, b, b.Conf)

	f.school = testutil.CreateSchool(t, b.UserRepo, "Green Valley", "greenvalley")
	f.admin = testutil.CreateUser(t, b.UserRepo, f.school.ID, "Ada", "Admin", "admin@gv.test", password, tenant.RoleAdmin, true)
	f.teacher = testutil.CreateUser(t, b.UserRepo, f.school.ID, "Tunde", "Okafor", "tunde@gv.test", password, tenant.RoleTeacher, true)
	f.teacher2 = testutil.CreateUser(t, b.UserRepo, f.school.ID, "Grace", "Bello", "grace@gv.test", password, tenant.RoleTeacher, true)
	f.student = testutil.CreateUser(t, b.UserRepo, f.school.ID, "Amaka", "Eze", "amaka@gv.test", password, tenant.RoleStudent, true)
	f.student2 = testutil.CreateUser(t, b.UserRepo, f.school.ID, "Bayo", "Adeyemi", "bayo@gv.test", password, tenant.RoleStudent, true)

	f.other = testutil.CreateSchool(t, b.UserRepo, "Hill Top", "hilltop")
	f.otherAdmin = testutil.CreateUser(t, b.UserRepo, f.other.ID, "Olu", "Admin", "admin@ht.test", password, tenant.RoleAdmin, true)
	return f
}

func newServer(t *testing.T, b *testutil.Backend, conf *core.Config, middleware ...echo.MiddlewareFunc) Server {
	app := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     b.Logger,
		Validate:   b.Validate,
		Translator: core.NewTranslator(),
		Middleware: middleware,
		UserSvc:    b.UserSvc,
		ResultSvc:  b.ResultSvc,
		Engine:     b.Engine,
	})
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func (f fixture) token(t *testing.T, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr, f.Conf), []byte(f.Conf.SecretKey))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func (f fixture) do(t *testing.T, method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHttpTests(t *testing.T, f fixture, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := f.do(t, method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
