package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"worksite-attendance/internal/attendance"
	"worksite-attendance/internal/auth"
	"worksite-attendance/internal/employee"
	"worksite-attendance/internal/media"
)

type fakeEmployees struct {
	registered  *employee.RegisterInput
	queued      int
	authErr     error
	registerErr error
}

func (f *fakeEmployees) Register(_ context.Context, in employee.RegisterInput) (employee.Employee, error) {
	if f.registerErr != nil {
		return employee.Employee{}, f.registerErr
	}
	f.registered = &in
	return employee.Employee{EmployeeID: in.EmployeeID, Name: in.Name, Email: in.Email, Designation: in.Designation}, nil
}

func (f *fakeEmployees) QueueEmbedding(employee.Employee) { f.queued++ }

func (f *fakeEmployees) Authenticate(_ context.Context, email, _ string) (employee.Employee, error) {
	if f.authErr != nil {
		return employee.Employee{}, f.authErr
	}
	return employee.Employee{EmployeeID: "EMP1", Email: email, Designation: "Engineer"}, nil
}

func (f *fakeEmployees) Update(context.Context, string, employee.UpdateInput) error { return nil }

func (f *fakeEmployees) ReplaceProfilePhoto(context.Context, string, media.Upload) (string, error) {
	return "Jane.png", nil
}

func (f *fakeEmployees) Get(_ context.Context, id string) (employee.Employee, error) {
	if id != "EMP1" {
		return employee.Employee{}, employee.ErrNotFound
	}
	return employee.Employee{EmployeeID: "EMP1", Name: "Jane"}, nil
}

type fakeAttendance struct {
	outcome attendance.Outcome
	err     error
	name    string
}

func (f *fakeAttendance) RecordEvent(_ context.Context, name string, _ time.Time, _ attendance.PPESignals) (attendance.Outcome, error) {
	f.name = name
	return f.outcome, f.err
}

func (f *fakeAttendance) History(context.Context, string) ([]attendance.Record, error) {
	return nil, nil
}

func (f *fakeAttendance) Roster(context.Context, string, string, attendance.RosterFilter) ([]attendance.RosterEntry, error) {
	return nil, nil
}

func (f *fakeAttendance) GroupedByDay(context.Context) (map[string][]attendance.RosterEntry, error) {
	return map[string][]attendance.RosterEntry{}, nil
}

type fakeStager struct{}

func (fakeStager) Stage(_ io.Reader, originalName string) (media.Upload, error) {
	return media.Upload{OriginalName: originalName, TempPath: "/tmp/" + originalName}, nil
}

func testRouter(emp *fakeEmployees, att *fakeAttendance) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := Config{JWTIssuer: "test", JWTSigningKey: "test-key", SessionTTL: time.Hour}
	h := New(emp, att, fakeStager{}, cfg)
	r := gin.New()
	h.Mount(r, auth.SessionAuth(cfg.JWTSigningKey, cfg.JWTIssuer), auth.RequireDesignation("Admin"))
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMarkAttendanceCheckIn(t *testing.T) {
	att := &fakeAttendance{outcome: attendance.OutcomeCheckIn}
	r := testRouter(&fakeEmployees{}, att)

	w := postJSON(r, "/mark-attendance", `{"name":"Jane","ppe_compliant":true,"ppe_items":{"helmet":true},"ppe_confidence":0.9}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if att.name != "Jane" {
		t.Errorf("service got name %q", att.name)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["message"] != "Check-in recorded successfully" {
		t.Errorf("message = %q", resp["message"])
	}
}

func TestMarkAttendanceCheckOut(t *testing.T) {
	r := testRouter(&fakeEmployees{}, &fakeAttendance{outcome: attendance.OutcomeCheckOut})
	w := postJSON(r, "/mark-attendance", `{"name":"Jane"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Check-out recorded") {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
}

func TestMarkAttendanceErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{attendance.ErrNotFound, http.StatusNotFound},
		{attendance.ErrDayComplete, http.StatusConflict},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := testRouter(&fakeEmployees{}, &fakeAttendance{err: tc.err})
		w := postJSON(r, "/mark-attendance", `{"name":"Jane"}`)
		if w.Code != tc.want {
			t.Errorf("err %v: status = %d, want %d", tc.err, w.Code, tc.want)
		}
	}
}

func TestMarkAttendanceRequiresName(t *testing.T) {
	r := testRouter(&fakeEmployees{}, &fakeAttendance{})
	w := postJSON(r, "/mark-attendance", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	r := testRouter(&fakeEmployees{}, &fakeAttendance{})
	w := postJSON(r, "/login", `{"email":"jane@example.com","password":"abc123"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}

	var sessionCookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == auth.CookieName {
			sessionCookie = ck
		}
	}
	if sessionCookie == nil {
		t.Fatal("session cookie not set")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie must be HTTP-only")
	}
	if _, err := auth.Parse(sessionCookie.Value, "test-key", "test"); err != nil {
		t.Errorf("cookie does not hold a valid token: %v", err)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	r := testRouter(&fakeEmployees{authErr: employee.ErrBadCredentials}, &fakeAttendance{})
	w := postJSON(r, "/login", `{"email":"jane@example.com","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	r := testRouter(&fakeEmployees{}, &fakeAttendance{})
	for _, path := range []string{"/api/user", "/api/user/history", "/api/attendance"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, w.Code)
		}
	}
}

func TestAdminRoutesRequireDesignation(t *testing.T) {
	r := testRouter(&fakeEmployees{}, &fakeAttendance{})
	token, _, _ := auth.Issue("EMP1", "jane@example.com", "Engineer", "test", "test-key", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/attendance/all", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-admin aggregate: status = %d, want 403", w.Code)
	}

	adminToken, _, _ := auth.Issue("EMP1", "admin@example.com", "Admin", "test", "test-key", time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/api/attendance/all", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: adminToken})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("admin aggregate: status = %d, want 200", w.Code)
	}
}
