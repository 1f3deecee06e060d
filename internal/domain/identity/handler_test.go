package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/doctorsportal/portal/internal/platform/auth"
)

type testEnv struct {
	e      *echo.Echo
	users  *mockUserRepo
	tokens *auth.Tokens
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	svc, users, _ := newTestService()
	tokens, err := auth.NewTokens(auth.TokenConfig{Secret: []byte("identity-handler-test-secret"), TTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	h := NewHandler(svc, tokens)
	h.RegisterRoutes(e.Group(""), auth.RequireIdentity(tokens), auth.RequireAdmin(auth.NewGate(svc)))
	return &testEnv{e: e, users: users, tokens: tokens}
}

func (env *testEnv) do(t *testing.T, method, path, body, email string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if email != "" {
		tok, _, err := env.tokens.Issue(email)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) makeAdmin(email string) {
	env.users.users[email] = &User{Email: email, Role: RoleAdmin}
}

func TestHandler_UpsertUser_ReturnsToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/user/a@x.com", `{"name":"A"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Result User   `json:"result"`
		Token  string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Result.Email != "a@x.com" || resp.Result.Name != "A" {
		t.Errorf("unexpected result: %+v", resp.Result)
	}
	id, err := env.tokens.Verify(resp.Token)
	if err != nil {
		t.Fatalf("returned token does not verify: %v", err)
	}
	if id.Email != "a@x.com" {
		t.Errorf("token subject = %q, want a@x.com", id.Email)
	}
}

func TestHandler_UpsertUser_InvalidEmail(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/user/nobody", `{"name":"A"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_ListUsers_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/user", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	env.do(t, http.MethodPut, "/user/a@x.com", `{"name":"A"}`, "")
	rec := env.do(t, http.MethodGet, "/user?limit=10", "", "a@x.com")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Total int `json:"total"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Total != 1 {
		t.Errorf("expected 1 user, got %d", page.Total)
	}
}

func TestHandler_CheckAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.makeAdmin("boss@x.com")
	env.do(t, http.MethodPut, "/user/a@x.com", `{"name":"A"}`, "")

	tests := []struct {
		email string
		want  bool
	}{
		{"boss@x.com", true},
		{"a@x.com", false},
		{"ghost@x.com", false},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodGet, "/admin/"+tt.email, "", "a@x.com")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.email, rec.Code)
		}
		var body map[string]bool
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		if body["admin"] != tt.want {
			t.Errorf("%s: admin = %v, want %v", tt.email, body["admin"], tt.want)
		}
	}

	if rec := env.do(t, http.MethodGet, "/admin/boss@x.com", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
}

func TestHandler_AdminRoutes_DenyNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPut, "/user/member@x.com", `{"name":"M"}`, "")

	routes := []struct {
		method, path, body string
	}{
		{http.MethodPut, "/user/admin/member@x.com", ""},
		{http.MethodDelete, "/user/admin/member@x.com", ""},
		{http.MethodPost, "/doctor", `{"name":"D","email":"d@x.com"}`},
		{http.MethodGet, "/doctor", ""},
		{http.MethodDelete, "/doctor/d@x.com", ""},
	}
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			if rec := env.do(t, r.method, r.path, r.body, "member@x.com"); rec.Code != http.StatusForbidden {
				t.Errorf("member: expected 403, got %d", rec.Code)
			}
			if rec := env.do(t, r.method, r.path, r.body, "ghost@x.com"); rec.Code != http.StatusForbidden {
				t.Errorf("absent user: expected 403, got %d", rec.Code)
			}
			if rec := env.do(t, r.method, r.path, r.body, ""); rec.Code != http.StatusUnauthorized {
				t.Errorf("no token: expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestHandler_PromoteAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.makeAdmin("boss@x.com")
	env.do(t, http.MethodPut, "/user/a@x.com", `{"name":"A"}`, "")

	rec := env.do(t, http.MethodPut, "/user/admin/a@x.com", "", "boss@x.com")
	if rec.Code != http.StatusOK {
		t.Fatalf("promote: expected 200, got %d", rec.Code)
	}
	if !env.users.users["a@x.com"].IsAdmin() {
		t.Error("expected a@x.com to be admin")
	}

	if rec := env.do(t, http.MethodPut, "/user/admin/ghost@x.com", "", "boss@x.com"); rec.Code != http.StatusNotFound {
		t.Errorf("promote unknown: expected 404, got %d", rec.Code)
	}

	if rec := env.do(t, http.MethodDelete, "/user/admin/a@x.com", "", "boss@x.com"); rec.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/user/admin/a@x.com", "", "boss@x.com"); rec.Code != http.StatusNotFound {
		t.Errorf("delete again: expected 404, got %d", rec.Code)
	}
}

func TestHandler_Doctors(t *testing.T) {
	env := newTestEnv(t)
	env.makeAdmin("boss@x.com")

	rec := env.do(t, http.MethodPost, "/doctor", `{"name":"Dr. A","email":"dra@x.com","specialty":"Cosmetic","img":"a.png"}`, "boss@x.com")
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, "/doctor", `{"name":"Dr. A","email":"dra@x.com"}`, "boss@x.com"); rec.Code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/doctor", "", "boss@x.com")
	var docs []Doctor
	_ = json.Unmarshal(rec.Body.Bytes(), &docs)
	if len(docs) != 1 || docs[0].Image != "a.png" {
		t.Errorf("unexpected doctors: %+v", docs)
	}

	if rec := env.do(t, http.MethodDelete, "/doctor/dra@x.com", "", "boss@x.com"); rec.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", rec.Code)
	}
}
