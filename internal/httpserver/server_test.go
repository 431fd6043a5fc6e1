package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/account"
	"github.com/MrSnakeDoc/marksync/internal/analyze"
	"github.com/MrSnakeDoc/marksync/internal/auth"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/lock"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/reconcile"
	"github.com/MrSnakeDoc/marksync/internal/scheduler"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
	"github.com/MrSnakeDoc/marksync/internal/store/sqlite"
)

type testEnv struct {
	t        *testing.T
	handler  http.Handler
	store    *sqlite.Store
	accounts *account.Service
}

func newTestEnv(t *testing.T, mutate ...func(*deps.Deps)) *testEnv {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "marksync.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	log := logger.Nop()
	accounts := account.New(st, issuer, log)

	d := deps.Deps{
		Logger:            log,
		StartTime:         time.Now(),
		Version:           "test",
		DB:                st,
		LockMode:          "local",
		Reconciler:        reconcile.New(st, lock.NewLocal(), log),
		Accounts:          accounts,
		Analyzer:          analyze.NewService(analyze.NewFetcher(2*time.Second), analyze.NewClassifier(2*time.Second), log, analyze.Options{}),
		Stats:             scheduler.NewStatsRefresher(st, log, time.Minute, nil),
		StatsTrigger:      make(chan struct{}, 1),
		MaxSnapshotSize:   5,
		MaxBodyBytes:      1 << 20,
		MaxAnalyzeURLs:    3,
		RequestTimeout:    5 * time.Second,
		AnalyzeTimeout:    10 * time.Second,
		LoginBurst:        100,
		LoginRefillPerMin: 100,
	}
	for _, m := range mutate {
		m(&d)
	}

	return &testEnv{t: t, handler: NewHandler(log, d), store: st, accounts: accounts}
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	e.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(email string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/register", "", fmt.Sprintf(`{"email":%q,"password":"secret123"}`, email))
	if rec.Code != http.StatusOK {
		e.t.Fatalf("register %s: status %d: %s", email, rec.Code, rec.Body)
	}
	var out struct{ Token string }
	decode(e.t, rec, &out)
	return out.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct{ Detail string }
	decode(t, rec, &body)
	return body.Detail
}

type syncBody struct {
	Success    bool
	Added      int
	Updated    int
	Deleted    int
	Conflicts  int
	LastSyncAt string `json:"lastSyncAt"`
	Bookmarks  []struct {
		ID         string `json:"id"`
		URL        string `json:"url"`
		Title      string `json:"title"`
		FolderPath string `json:"folderPath"`
		DateAdded  int64  `json:"dateAdded"`
	}
}

func TestSystemEndpoints(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path     string
		contains string
	}{
		{path: "/", contains: `"message":"Bookmark Sync API"`},
		{path: "/health", contains: `"status":"ok"`},
		{path: "/healthz", contains: `"version":"test"`},
		{path: "/readyz", contains: `"ready":true`},
		{path: "/infra", contains: `"sync_mode":"operational"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.do(http.MethodGet, tt.path, "", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body %s does not contain %s", rec.Body, tt.contains)
			}
		})
	}
}

func TestUnknownRouteIsJSON(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/nope", "", "")
	if rec.Code != http.StatusNotFound || detail(t, rec) != "not found" {
		t.Errorf("got %d %s", rec.Code, rec.Body)
	}
}

func TestInfraGuardedByCIDR(t *testing.T) {
	env := newTestEnv(t, func(d *deps.Deps) { d.AllowedCIDRS = []string{"10.0.0.0/8"} })
	// httptest requests come from 192.0.2.1
	if rec := env.do(http.MethodGet, "/infra", "", ""); rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/", "", ""); rec.Code != http.StatusOK {
		t.Errorf("root status = %d, want 200", rec.Code)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)

	token := env.register("alice@example.com")
	if token == "" {
		t.Fatal("empty token")
	}

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{name: "duplicate email", path: "/api/register", body: `{"email":"alice@example.com","password":"secret123"}`, status: http.StatusBadRequest},
		{name: "weak password", path: "/api/register", body: `{"email":"bob@example.com","password":"123"}`, status: http.StatusBadRequest},
		{name: "invalid email", path: "/api/register", body: `{"email":"not-an-email","password":"secret123"}`, status: http.StatusBadRequest},
		{name: "malformed body", path: "/api/register", body: `{"email":`, status: http.StatusBadRequest},
		{name: "wrong password", path: "/api/login", body: `{"email":"alice@example.com","password":"nope-nope"}`, status: http.StatusUnauthorized},
		{name: "unknown user", path: "/api/login", body: `{"email":"ghost@example.com","password":"secret123"}`, status: http.StatusUnauthorized},
		{name: "valid login", path: "/api/login", body: `{"email":"alice@example.com","password":"secret123"}`, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, tt.path, "", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
		})
	}

	if rec := env.do(http.MethodGet, "/api/me", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("me without token = %d, want 401", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/me", "garbage", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("me with bad token = %d, want 401", rec.Code)
	}

	rec := env.do(http.MethodGet, "/api/me", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("me = %d: %s", rec.Code, rec.Body)
	}
	var me struct {
		Email      string
		LastSyncAt *string `json:"last_sync_at"`
	}
	decode(t, rec, &me)
	if me.Email != "alice@example.com" || me.LastSyncAt != nil {
		t.Errorf("me = %+v", me)
	}
}

func TestSyncFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.register("sync@example.com")

	first := `{"bookmarks":[
		{"id":"c1","url":"https://go.dev","title":"Go","folderPath":"/dev","dateAdded":1},
		{"id":"c2","title":"no url, ignored"}
	]}`
	rec := env.do(http.MethodPost, "/api/sync", token, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync = %d: %s", rec.Code, rec.Body)
	}
	var out syncBody
	decode(t, rec, &out)
	if !out.Success || out.Added != 1 || out.Updated != 0 || out.Deleted != 0 || out.Conflicts != 0 {
		t.Errorf("first sync counts = %+v", out)
	}
	if len(out.Bookmarks) != 1 || out.Bookmarks[0].ID != "c1" || out.Bookmarks[0].URL != "https://go.dev" {
		t.Errorf("merged bookmarks = %+v", out.Bookmarks)
	}
	if _, err := time.Parse(time.RFC3339, out.LastSyncAt); err != nil {
		t.Errorf("lastSyncAt %q: %v", out.LastSyncAt, err)
	}

	// Unchanged resubmission is a no-op.
	rec = env.do(http.MethodPost, "/api/sync", token, first)
	out = syncBody{}
	decode(t, rec, &out)
	if out.Added != 0 || out.Updated != 0 || out.Deleted != 0 {
		t.Errorf("resubmission counts = %+v", out)
	}

	// A far-future edit wins over the cloud copy.
	future := time.Now().Add(time.Hour).UnixMilli()
	rec = env.do(http.MethodPost, "/api/sync", token,
		fmt.Sprintf(`{"bookmarks":[{"id":"c1","url":"https://go.dev","title":"Go home","folderPath":"/lang","dateAdded":%d}]}`, future))
	out = syncBody{}
	decode(t, rec, &out)
	if out.Updated != 1 || out.Bookmarks[0].Title != "Go home" || out.Bookmarks[0].FolderPath != "/lang" {
		t.Errorf("update sync = %+v", out)
	}

	rec = env.do(http.MethodPost, "/api/sync", token, `{"bookmarks":[{"url":"https://go.dev","deleted":true}]}`)
	out = syncBody{}
	decode(t, rec, &out)
	if out.Deleted != 1 || len(out.Bookmarks) != 0 {
		t.Errorf("delete sync = %+v", out)
	}

	rec = env.do(http.MethodGet, "/api/bookmarks", token, "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("bookmarks = %d %s", rec.Code, rec.Body)
	}

	rec = env.do(http.MethodGet, "/api/status", token, "")
	var st struct {
		LoggedIn      bool    `json:"logged_in"`
		Email         string  `json:"email"`
		LastSyncAt    *string `json:"last_sync_at"`
		BookmarkCount int     `json:"bookmark_count"`
		SyncCount     int     `json:"sync_count"`
	}
	decode(t, rec, &st)
	if !st.LoggedIn || st.Email != "sync@example.com" || st.LastSyncAt == nil || st.BookmarkCount != 0 || st.SyncCount != 4 {
		t.Errorf("status = %+v", st)
	}
}

func TestSyncRejections(t *testing.T) {
	env := newTestEnv(t, func(d *deps.Deps) { d.MaxBodyBytes = 2048 })
	token := env.register("limits@example.com")

	var tooMany []string
	for i := 0; i < 6; i++ {
		tooMany = append(tooMany, fmt.Sprintf(`{"url":"https://example.com/%d"}`, i))
	}

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "too many entries", body: `{"bookmarks":[` + strings.Join(tooMany, ",") + `]}`, status: http.StatusRequestEntityTooLarge},
		{name: "body too large", body: `{"bookmarks":[{"url":"https://example.com","title":"` + strings.Repeat("x", 4096) + `"}]}`, status: http.StatusRequestEntityTooLarge},
		{name: "missing bookmarks", body: `{}`, status: http.StatusBadRequest},
		{name: "malformed", body: `{"bookmarks":[`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/sync", token, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
		})
	}

	if rec := env.do(http.MethodPost, "/api/sync", "", `{"bookmarks":[]}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous sync = %d, want 401", rec.Code)
	}
}

func TestSyncIsolatesUsers(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com")
	bob := env.register("bob@example.com")

	env.do(http.MethodPost, "/api/sync", alice, `{"bookmarks":[{"url":"https://alice.example"}]}`)

	rec := env.do(http.MethodPost, "/api/sync", bob, `{"bookmarks":[{"url":"https://alice.example","deleted":true}]}`)
	var out syncBody
	decode(t, rec, &out)
	if out.Deleted != 0 || len(out.Bookmarks) != 0 {
		t.Errorf("bob sync = %+v", out)
	}

	rec = env.do(http.MethodGet, "/api/bookmarks", alice, "")
	if !strings.Contains(rec.Body.String(), "https://alice.example") {
		t.Errorf("alice lost her bookmark: %s", rec.Body)
	}
}

func TestSyncStorageFailureIsRetryable(t *testing.T) {
	mem := memory.New()
	env := newTestEnv(t, func(d *deps.Deps) {
		d.Reconciler = reconcile.New(mem, nil, d.Logger)
	})
	token := env.register("retry@example.com")

	mem.FailNextApply(errors.New("disk on fire"))
	rec := env.do(http.MethodPost, "/api/sync", token, `{"bookmarks":[{"url":"https://example.com"}]}`)
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("status = %d, Retry-After = %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if strings.Contains(detail(t, rec), "disk on fire") {
		t.Errorf("storage detail leaked: %s", rec.Body)
	}

	rec = env.do(http.MethodPost, "/api/sync", token, `{"bookmarks":[{"url":"https://example.com"}]}`)
	var out syncBody
	decode(t, rec, &out)
	if rec.Code != http.StatusOK || out.Added != 1 {
		t.Errorf("retry = %d %+v", rec.Code, out)
	}
}

func TestImportHomepage(t *testing.T) {
	env := newTestEnv(t)
	token := env.register("home@example.com")

	doc := `
- Developer:
    - Github:
        - abbr: GH
          href: https://github.com/
    - Docs:
        - abbr: DO
          href: "{{HOMEPAGE_VAR_DOCS}}"
- Social:
    - Reddit:
        - abbr: RE
          href: https://reddit.com/
`
	rec := env.do(http.MethodPost, "/api/import/homepage", token, doc)
	if rec.Code != http.StatusOK {
		t.Fatalf("import = %d: %s", rec.Code, rec.Body)
	}
	var out syncBody
	decode(t, rec, &out)
	if out.Added != 2 || len(out.Bookmarks) != 2 {
		t.Errorf("import = %+v", out)
	}

	rec = env.do(http.MethodPost, "/api/import/homepage", token, doc)
	out = syncBody{}
	decode(t, rec, &out)
	if out.Added != 0 || out.Updated != 0 {
		t.Errorf("second import = %+v", out)
	}

	if rec := env.do(http.MethodPost, "/api/import/homepage?kind=widgets", token, doc); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind = %d, want 400", rec.Code)
	}
	if rec := env.do(http.MethodPost, "/api/import/homepage", token, "- [unclosed"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad yaml = %d, want 400", rec.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	if err := env.accounts.EnsureAdmin(context.Background(), "admin@example.com", "admin-pass"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	userToken := env.register("user@example.com")
	env.do(http.MethodPost, "/api/sync", userToken, `{"bookmarks":[{"url":"https://example.com","title":"Ex"}]}`)

	if rec := env.do(http.MethodPost, "/admin/login", "", `{"email":"user@example.com","password":"secret123"}`); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin admin login = %d, want 403", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/admin/stats", userToken, ""); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin stats = %d, want 403", rec.Code)
	}

	rec := env.do(http.MethodPost, "/admin/login", "", `{"email":"admin@example.com","password":"admin-pass"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin login = %d: %s", rec.Code, rec.Body)
	}
	var login struct{ Token string }
	decode(t, rec, &login)
	admin := login.Token

	rec = env.do(http.MethodGet, "/admin/stats", admin, "")
	var stats struct {
		TotalUsers     int `json:"total_users"`
		ActiveUsers    int `json:"active_users"`
		TotalBookmarks int `json:"total_bookmarks"`
		TotalSyncs     int `json:"total_syncs"`
		TodaySyncs     int `json:"today_syncs"`
	}
	decode(t, rec, &stats)
	if stats.TotalUsers != 2 || stats.ActiveUsers != 2 || stats.TotalBookmarks != 1 || stats.TotalSyncs != 1 || stats.TodaySyncs != 1 {
		t.Errorf("stats = %+v", stats)
	}

	rec = env.do(http.MethodGet, "/admin/users", admin, "")
	var users []struct {
		ID            int64  `json:"id"`
		Email         string `json:"email"`
		BookmarkCount int    `json:"bookmark_count"`
	}
	decode(t, rec, &users)
	if len(users) != 2 {
		t.Fatalf("users = %+v", users)
	}
	var userID, adminID int64
	for _, u := range users {
		switch u.Email {
		case "user@example.com":
			userID = u.ID
			if u.BookmarkCount != 1 {
				t.Errorf("bookmark_count = %d", u.BookmarkCount)
			}
		case "admin@example.com":
			adminID = u.ID
		}
	}

	rec = env.do(http.MethodGet, fmt.Sprintf("/admin/user/%d", userID), admin, "")
	var det struct {
		Email       string `json:"email"`
		SyncCount   int    `json:"sync_count"`
		Bookmarks   []map[string]any
		RecentSyncs []map[string]any `json:"recent_syncs"`
	}
	decode(t, rec, &det)
	if det.Email != "user@example.com" || det.SyncCount != 1 || len(det.Bookmarks) != 1 || len(det.RecentSyncs) != 1 {
		t.Errorf("detail = %+v", det)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "invalid id", method: http.MethodGet, path: "/admin/user/abc", status: http.StatusBadRequest},
		{name: "missing user", method: http.MethodGet, path: "/admin/user/9999", status: http.StatusNotFound},
		{name: "invalid status", method: http.MethodPut, path: fmt.Sprintf("/admin/user/%d", userID), body: `{"status":"banned"}`, status: http.StatusBadRequest},
		{name: "self delete", method: http.MethodDelete, path: fmt.Sprintf("/admin/user/%d", adminID), status: http.StatusBadRequest},
		{name: "disable", method: http.MethodPut, path: fmt.Sprintf("/admin/user/%d", userID), body: `{"status":"disabled"}`, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, admin, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
		})
	}

	if rec := env.do(http.MethodGet, "/api/me", userToken, ""); rec.Code != http.StatusForbidden {
		t.Errorf("disabled user me = %d, want 403", rec.Code)
	}

	if rec := env.do(http.MethodDelete, fmt.Sprintf("/admin/user/%d", userID), admin, ""); rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/me", userToken, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("deleted user me = %d, want 401", rec.Code)
	}

	if rec := env.do(http.MethodPost, "/admin/stats/refresh", admin, ""); rec.Code != http.StatusAccepted {
		t.Errorf("first refresh = %d, want 202", rec.Code)
	}
	if rec := env.do(http.MethodPost, "/admin/stats/refresh", admin, ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second refresh = %d, want 429", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t, func(d *deps.Deps) {
		d.LoginBurst = 2
		d.LoginRefillPerMin = 1
	})

	body := `{"email":"nobody@example.com","password":"whatever"}`
	for i := 0; i < 2; i++ {
		if rec := env.do(http.MethodPost, "/api/login", "", body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d = %d, want 401", i, rec.Code)
		}
	}
	rec := env.do(http.MethodPost, "/api/login", "", body)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Errorf("throttled attempt = %d, Retry-After = %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}

func TestAnalyzeRoutes(t *testing.T) {
	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><head><title>Gophers</title></head><body><h1>Go</h1></body></html>`)
	}))
	defer pages.Close()

	ai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{
				"role":    "assistant",
				"content": `{"name":"Gopher home","category":"Dev","isNew":false}`,
			}}},
		})
	}))
	defer ai.Close()

	env := newTestEnv(t)
	token := env.register("analyze@example.com")

	rec := env.do(http.MethodPost, "/api/batch-analyze", token,
		`{"urls":["a","b","c","d"],"existingCategories":[],"renameMode":"normal","apiConfig":{"apiUrl":"x"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("over limit = %d, want 400", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/batch-analyze", token, fmt.Sprintf(
		`{"urls":[%q,%q],"existingCategories":["Dev"],"renameMode":"normal","apiConfig":{"apiUrl":%q,"apiKey":"k"}}`,
		pages.URL+"/ok", pages.URL+"/missing", ai.URL))
	if rec.Code != http.StatusOK {
		t.Fatalf("batch = %d: %s", rec.Code, rec.Body)
	}
	var rep struct {
		Total, Success, Failed int
		Results                []struct {
			URL           string  `json:"url"`
			Success       bool    `json:"success"`
			SuggestedName *string `json:"suggestedName"`
			Error         *string `json:"error"`
		}
	}
	decode(t, rec, &rep)
	if rep.Total != 2 || rep.Success != 1 || rep.Failed != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if !rep.Results[0].Success || rep.Results[0].SuggestedName == nil || *rep.Results[0].SuggestedName != "Gopher home" {
		t.Errorf("first result = %+v", rep.Results[0])
	}
	if rep.Results[1].Success || rep.Results[1].Error == nil || *rep.Results[1].Error != "HTTP 404" {
		t.Errorf("second result = %+v", rep.Results[1])
	}

	if rec := env.do(http.MethodPost, "/api/fetch-page", token, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("fetch-page without url = %d, want 400", rec.Code)
	}
	rec = env.do(http.MethodPost, "/api/fetch-page?url="+pages.URL+"/ok", token, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"title":"Gophers"`) {
		t.Errorf("fetch-page = %d %s", rec.Code, rec.Body)
	}
	if rec := env.do(http.MethodPost, "/api/fetch-page?url="+pages.URL+"/missing", token, ""); rec.Code != http.StatusBadGateway {
		t.Errorf("fetch-page upstream 404 = %d, want 502", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/sync", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
