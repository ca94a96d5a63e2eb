package tests

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

func Test_userApi_register(t *testing.T) {
	a := setup(t)

	tests := []httpTest{
		{
			name: "empty body fails validation",
			body: marchallObj(t, map[string]string{}), wantCode: http.StatusBadRequest,
		},
		{
			name: "password mismatch",
			body: marchallObj(t, map[string]string{
				"name": "Awe", "email": "awe@test.cd", "password": "LinnganISKing!", "password_confirm": "nope",
			}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "ok",
			body: marchallObj(t, map[string]string{
				"name": "Awe", "email": "awe@test.cd", "password": "LinnganISKing!", "password_confirm": "LinnganISKing!",
			}),
			wantCode: http.StatusCreated,
		},
		{
			name: "duplicate email",
			body: marchallObj(t, map[string]string{
				"name": "Awe 2", "email": "awe@test.cd", "password": "LinnganISKing!", "password_confirm": "LinnganISKing!",
			}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/register", tt.body)
			a.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_login(t *testing.T) {
	a := setup(t)
	testutil.CreateUser(t, a.usrRepo, "Awe", "awe@test.cd", "LinnganISKing!", false)

	tests := []httpTest{
		{
			name: "unknown user",
			body: marchallObj(t, map[string]string{"email": "lol@test.cd", "password": "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password",
			body: marchallObj(t, map[string]string{"email": "awe@test.cd", "password": "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "ok",
			body: marchallObj(t, map[string]string{"email": "awe@test.cd", "password": "LinnganISKing!"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			a.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp struct {
					Token string `json:"token"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
					t.Errorf("login did not return a token: %s", rec.Body.Bytes())
				}
			}
		})
	}
}

func Test_userApi_query(t *testing.T) {
	a := setup(t)

	path := func(search string, isAdmin *bool, createdFrom, createdTo time.Time) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if isAdmin != nil {
			v.Add("is_admin", strconv.FormatBool(*isAdmin))
		}
		if !createdFrom.IsZero() {
			v.Add("created_from", createdFrom.Format(time.RFC3339))
		}
		if !createdTo.IsZero() {
			v.Add("created_to", createdTo.Format(time.RFC3339))
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now().UTC()
	t1 := now.Add(-2 * time.Hour)
	t2 := now.Add(-1 * time.Hour)

	admin := testutil.CreateUser(t, a.usrRepo, "Admin", "admin@test.cd", "", true, t1)
	awe := testutil.CreateUser(t, a.usrRepo, "Awe", "awe@test.cd", "", false, t2)
	king := testutil.CreateUser(t, a.usrRepo, "King", "king@test.cd", "", false)

	adminToken := getToken(t, admin)
	empty := marchallList(t)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/users", token: getToken(t, awe),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "get all", path: "/v1/users", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, admin, awe, king)},
		{name: "search (unknown)", path: path("lol", nil, time.Time{}, time.Time{}), token: adminToken, wantCode: http.StatusOK, wantData: empty},
		{name: "search", path: path("awe", nil, time.Time{}, time.Time{}), token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, awe)},
		{name: "is_admin=true", path: path("", bPtr(true), time.Time{}, time.Time{}), token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, admin)},
		{name: "is_admin=false", path: path("", bPtr(false), time.Time{}, time.Time{}), token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, awe, king)},
		{name: "created window", path: path("", nil, t1.Add(-time.Minute), t2.Add(time.Minute)), token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, admin, awe)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			a.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_me(t *testing.T) {
	a := setup(t)
	awe := testutil.CreateUser(t, a.usrRepo, "Awe", "awe@test.cd", "LinnganISKing!", false)
	token := getToken(t, awe)

	t.Run("retrieve", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, awe)}
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", token)
		a.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("update name", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"name": "Awe Sum"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/me", token, body)
		a.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.Bytes())
		}
		var got user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("Unmarshal() failed: %v", err)
		}
		if got.Name != "Awe Sum" {
			t.Errorf("name = %q, want Awe Sum", got.Name)
		}
	})
}

func Test_userApi_grantAdmin(t *testing.T) {
	a := setup(t)
	admin := testutil.CreateUser(t, a.usrRepo, "Admin", "admin@test.cd", "", true)
	awe := testutil.CreateUser(t, a.usrRepo, "Awe", "awe@test.cd", "", false)

	t.Run("non-admin denied", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/admin@test.cd/grant-admin", getToken(t, awe))
		a.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v, want 403", rec.Code)
		}
	})

	t.Run("admin grants", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/awe@test.cd/grant-admin", getToken(t, admin))
		a.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.Bytes())
		}
		var got user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("Unmarshal() failed: %v", err)
		}
		if !got.IsAdmin {
			t.Error("user is not an admin")
		}
	})
}
