package cvcweb

import (
	"net/http"
	"testing"
)

func adminConfig() SiteConfig {
	return SiteConfig{AdminPassword: "correct horse", SessionSecret: "test-session-secret"}
}

func TestNewRequiresSessionSecret(t *testing.T) {
	if _, err := New(SiteConfig{AdminPassword: "x"}); err == nil {
		t.Fatal("expected error without SESSION_SECRET")
	}
}

func TestAdminRoutesNeedSession(t *testing.T) {
	a := newTestApp(t, adminConfig())
	id := seedProject(t, a, PortfolioProject{Title: "Acme"})

	rec := doJSON(t, a, http.MethodPost, projectPath(id, "featured"), `{"featured":true}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
	rec = doJSON(t, a, http.MethodPost, "/api/portfolio/sync", `{"projects":[]}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("sync status %d, want 401", rec.Code)
	}

	rec = doJSON(t, a, http.MethodPost, "/api/auth/admin", `{"password":"correct horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	var resp successResponse
	decodeBody(t, rec, &resp)
	if resp.Message != "Admin authentication successful" {
		t.Errorf("message = %q", resp.Message)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	rec = doJSON(t, a, http.MethodPost, projectPath(id, "featured"), `{"featured":true}`, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("featured with session: status %d: %s", rec.Code, rec.Body.String())
	}
	if !getProject(t, a, id).Featured {
		t.Error("project should be featured")
	}
}

func TestAnonymousSeesOnlyPublished(t *testing.T) {
	a := newTestApp(t, adminConfig())
	draft := seedProject(t, a, PortfolioProject{Title: "Secret", Status: StatusDraft})
	seedProject(t, a, PortfolioProject{Title: "Public"})

	rec := doJSON(t, a, http.MethodGet, "/api/portfolio?status=draft", "")
	var list listResponse
	decodeBody(t, rec, &list)
	if list.TotalDocs != 1 || list.Docs[0].Slug != "public" {
		t.Errorf("anonymous list = %+v", list.Docs)
	}
	if rec := doJSON(t, a, http.MethodGet, "/api/portfolio/"+itoa(draft), ""); rec.Code != http.StatusNotFound {
		t.Errorf("anonymous draft get: status %d, want 404", rec.Code)
	}
}

func TestAdminLoginFailures(t *testing.T) {
	a := newTestApp(t, adminConfig())

	if rec := doJSON(t, a, http.MethodPost, "/api/auth/admin", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing password: status %d, want 400", rec.Code)
	}

	rec := doJSON(t, a, http.MethodPost, "/api/auth/admin", `{"password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d, want 401", rec.Code)
	}
	var fail loginFailure
	decodeBody(t, rec, &fail)
	if fail.RemainingAttempts != 4 {
		t.Errorf("remainingAttempts = %d, want 4", fail.RemainingAttempts)
	}

	for i := 0; i < 4; i++ {
		doJSON(t, a, http.MethodPost, "/api/auth/admin", `{"password":"wrong"}`)
	}
	rec = doJSON(t, a, http.MethodPost, "/api/auth/admin", `{"password":"correct horse"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("after limit: status %d, want 429", rec.Code)
	}
}

func TestAdminLoginNotConfigured(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	if rec := doJSON(t, a, http.MethodPost, "/api/auth/admin", `{"password":"x"}`); rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404", rec.Code)
	}
}

func TestAdminLogout(t *testing.T) {
	a := newTestApp(t, adminConfig())
	rec := doJSON(t, a, http.MethodPost, "/api/auth/admin", `{"password":"correct horse"}`)
	cookies := rec.Result().Cookies()

	rec = doJSON(t, a, http.MethodDelete, "/api/auth/admin", "", cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName && c.MaxAge >= 0 {
			t.Errorf("session cookie not expired: %+v", c)
		}
	}
}
