package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JeanGrijp/niji-api/internal/adapters/http/middleware"
	"github.com/JeanGrijp/niji-api/internal/adapters/storage/memory"
	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/services"
)

type stubKeys map[string]domain.Identity

func (s stubKeys) FindByCredential(_ context.Context, credential string) (domain.Identity, error) {
	if id, ok := s[credential]; ok {
		return id, nil
	}
	return domain.Identity{}, domain.ErrKeyNotFound
}

func (s stubKeys) FindByUsername(context.Context, string) (domain.Identity, error) {
	return domain.Identity{}, domain.ErrKeyNotFound
}

func (s stubKeys) Insert(context.Context, domain.Identity) error { return nil }

func (s stubKeys) Count(context.Context) (int64, error) { return int64(len(s)), nil }

type stubCatalog struct {
	lastFilter domain.ImageFilter
	lastPage   domain.PageRequest
	lastID     string
	lastCreate domain.ImageCreate
	err        error
}

func (s *stubCatalog) Search(_ context.Context, f domain.ImageFilter, p domain.PageRequest) (domain.ImagePage, error) {
	s.lastFilter, s.lastPage = f, p
	if s.err != nil {
		return domain.ImagePage{}, s.err
	}
	if !f.HasAny() {
		return domain.ImagePage{}, fmt.Errorf("%w: at least one filter must be provided for searching", domain.ErrInvalidInput)
	}
	return domain.ImagePage{Page: p.Page, Size: p.Size, Total: 1, TotalPages: 1, Images: []domain.Image{{ID: "a1"}}}, nil
}

func (s *stubCatalog) ByCategory(_ context.Context, category string, p domain.PageRequest) (domain.ImagePage, error) {
	s.lastFilter, s.lastPage = domain.ImageFilter{Category: category}, p
	if s.err != nil {
		return domain.ImagePage{}, s.err
	}
	return domain.ImagePage{Page: p.Page, Size: p.Size, Total: 1, TotalPages: 1, Images: []domain.Image{{ID: "a1", Category: category}}}, nil
}

func (s *stubCatalog) Random(_ context.Context, f domain.ImageFilter, size int64) ([]domain.Image, error) {
	s.lastFilter, s.lastPage = f, domain.PageRequest{Size: size}
	return []domain.Image{{ID: "r1"}}, s.err
}

func (s *stubCatalog) Create(_ context.Context, in domain.ImageCreate) (domain.Image, error) {
	s.lastCreate = in
	return domain.Image{ID: "n1", URL: "https://cdn.test/images/neko/x.png", Category: in.Category}, s.err
}

func (s *stubCatalog) Update(_ context.Context, id string, _ domain.ImageUpdate) (domain.Image, error) {
	s.lastID = id
	return domain.Image{ID: id}, s.err
}

func (s *stubCatalog) Delete(_ context.Context, id string) error {
	s.lastID = id
	return s.err
}

type stubIssuer struct{ err error }

func (s stubIssuer) Issue(_ context.Context, username string) (domain.Identity, error) {
	if s.err != nil {
		return domain.Identity{}, s.err
	}
	return domain.Identity{Username: username, Key: "0123456789abcdef0123456789abcdef", Role: domain.RoleUser}, nil
}

type stubReporter struct{}

func (stubReporter) Report(context.Context) (domain.StatsReport, error) {
	return domain.StatsReport{GlobalStats: domain.GlobalStats{TotalRequests: 3, TotalUsers: 2, TotalImages: 1}, Timestamp: 1}, nil
}

type countingRecorder struct{ calls int }

func (c *countingRecorder) RecordRequest(context.Context) error {
	c.calls++
	return nil
}

type testServer struct {
	handler  http.Handler
	catalog  *stubCatalog
	requests *countingRecorder
}

func newTestServer(t *testing.T, minuteCeiling int64) *testServer {
	t.Helper()
	keys := stubKeys{
		"user-key":  {Username: "alice", Key: "user-key", Role: domain.RoleUser},
		"team-key":  {Username: "crew", Key: "team-key", Role: domain.RoleTeam},
		"admin-key": {Username: "root", Key: "admin-key", Role: domain.RoleAdmin},
	}
	auth, err := services.NewAuthenticator(keys, services.AuthenticatorConfig{StoreTimeout: time.Second})
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	now := func() time.Time { return time.Unix(0, 0) }
	limiter, err := services.NewRateLimiterService(memory.NewWithClock(now), services.Config{
		Rule: domain.RateLimitRule{MinuteCeiling: minuteCeiling, DayCeiling: 1000},
	})
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	gate, err := services.NewGate(auth, limiter, now)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}

	catalog := &stubCatalog{}
	requests := &countingRecorder{}
	health := NewHealthHandler(map[string]Pinger{"counter": func(context.Context) error { return nil }})

	return &testServer{
		handler: NewRouter(RouterDeps{
			Gate:     gate,
			Images:   NewImageHandler(catalog),
			Keys:     NewKeyHandler(stubIssuer{}),
			Stats:    NewStatsHandler(stubReporter{}),
			Health:   health,
			Requests: requests,
		}),
		catalog:  catalog,
		requests: requests,
	}
}

func (s *testServer) do(method, target, key, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if key != "" {
		req.Header.Set(middleware.APIKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestRouter_RoleRequirements(t *testing.T) {
	srv := newTestServer(t, 100)

	cases := []struct {
		method, target, key, body string
		status                    int
	}{
		{http.MethodGet, "/v1/img/waifu", "", "", http.StatusUnauthorized},
		{http.MethodGet, "/v1/img/waifu", "user-key", "", http.StatusOK},
		{http.MethodPost, "/v1/img/", "user-key", `{"url":"https://x/y.png","category":"neko"}`, http.StatusForbidden},
		{http.MethodPost, "/v1/img/", "team-key", `{"url":"https://x/y.png","category":"neko"}`, http.StatusOK},
		{http.MethodPut, "/v1/img/abc", "team-key", `{"nsfw":true}`, http.StatusForbidden},
		{http.MethodPut, "/v1/img/abc", "admin-key", `{"nsfw":true}`, http.StatusOK},
		{http.MethodDelete, "/v1/img/abc", "team-key", "", http.StatusForbidden},
		{http.MethodDelete, "/v1/img/abc", "admin-key", "", http.StatusOK},
		{http.MethodGet, "/v1/stats", "team-key", "", http.StatusForbidden},
		{http.MethodGet, "/v1/stats", "admin-key", "", http.StatusOK},
	}

	for _, tc := range cases {
		rec := srv.do(tc.method, tc.target, tc.key, tc.body)
		if rec.Code != tc.status {
			t.Fatalf("%s %s with %q: expected %d, got %d (%s)", tc.method, tc.target, tc.key, tc.status, rec.Code, rec.Body.String())
		}
	}
}

func TestRouter_ForbiddenDetailNamesAction(t *testing.T) {
	srv := newTestServer(t, 100)

	rec := srv.do(http.MethodDelete, "/v1/img/abc", "user-key", "")
	body := decode(t, rec)
	if body["detail"] != "user is not authorized to delete images" || body["code"] != "FORBIDDEN" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRouter_RateLimitReturns429WithRetryAfter(t *testing.T) {
	srv := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		if rec := srv.do(http.MethodGet, "/v1/img/waifu", "user-key", ""); rec.Code != http.StatusOK {
			t.Fatalf("expected request %d to pass, got %d", i+1, rec.Code)
		}
	}
	rec := srv.do(http.MethodGet, "/v1/img/waifu", "user-key", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
	}

	for i := 0; i < 5; i++ {
		if rec := srv.do(http.MethodGet, "/v1/img/waifu", "admin-key", ""); rec.Code != http.StatusOK {
			t.Fatalf("admin must bypass the limiter, got %d", rec.Code)
		}
	}
}

func TestRouter_SearchParsesFilters(t *testing.T) {
	srv := newTestServer(t, 100)

	rec := srv.do(http.MethodGet, "/v1/img/search?nsfw=false&tags=a,+b&character=Rem&page=2&size=3", "user-key", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	f := srv.catalog.lastFilter
	if !f.NSFWSet || f.NSFW || f.Character != "Rem" || len(f.Tags) != 2 || f.Tags[1] != "b" {
		t.Fatalf("unexpected filter %+v", f)
	}
	if srv.catalog.lastPage != (domain.PageRequest{Page: 2, Size: 3}) {
		t.Fatalf("unexpected page %+v", srv.catalog.lastPage)
	}

	if rec := srv.do(http.MethodGet, "/v1/img/search", "user-key", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without filters, got %d", rec.Code)
	}
	if rec := srv.do(http.MethodGet, "/v1/img/search?category=x&page=0", "user-key", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for page 0, got %d", rec.Code)
	}
	if rec := srv.do(http.MethodGet, "/v1/img/search?nsfw=maybe", "user-key", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad nsfw, got %d", rec.Code)
	}
}

func TestRouter_RandomOnlyNarrowsOnNSFWTrue(t *testing.T) {
	srv := newTestServer(t, 100)

	if rec := srv.do(http.MethodGet, "/v1/img/random?nsfw=false&size=4", "user-key", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if srv.catalog.lastFilter.NSFWSet || srv.catalog.lastPage.Size != 4 {
		t.Fatalf("unexpected random args %+v %+v", srv.catalog.lastFilter, srv.catalog.lastPage)
	}
}

func TestRouter_CategoryAndIDParams(t *testing.T) {
	srv := newTestServer(t, 100)

	srv.do(http.MethodGet, "/v1/img/neko", "user-key", "")
	if srv.catalog.lastFilter.Category != "neko" {
		t.Fatalf("expected category param, got %+v", srv.catalog.lastFilter)
	}
	srv.do(http.MethodPut, "/v1/img/65f0c0ffee", "admin-key", `{"tags":["x"]}`)
	if srv.catalog.lastID != "65f0c0ffee" {
		t.Fatalf("expected id param, got %q", srv.catalog.lastID)
	}
}

func TestRouter_ServiceErrorsMapToStatus(t *testing.T) {
	srv := newTestServer(t, 100)

	srv.catalog.err = fmt.Errorf("%w: no images found for category 'zzz'", domain.ErrNotFound)
	rec := srv.do(http.MethodGet, "/v1/img/zzz", "user-key", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decode(t, rec); body["detail"] != "no images found for category 'zzz'" {
		t.Fatalf("unexpected detail %v", body["detail"])
	}

	srv.catalog.err = errors.New("mongo exploded")
	if rec := srv.do(http.MethodDelete, "/v1/img/abc", "admin-key", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	srv.catalog.err = nil
	if rec := srv.do(http.MethodPut, "/v1/img/abc", "admin-key", "{not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestRouter_CreateKey(t *testing.T) {
	srv := newTestServer(t, 100)

	rec := srv.do(http.MethodPost, "/v1/auth/create-key?username=nami", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["username"] != "nami" || body["role"] != "user" || len(body["api_key"].(string)) != 32 {
		t.Fatalf("unexpected body %v", body)
	}

	if rec := srv.do(http.MethodPost, "/v1/auth/create-key?username=nami&role=admin", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for extra params, got %d", rec.Code)
	}
}

func TestRouter_CreateKeyConflict(t *testing.T) {
	handler := NewKeyHandler(stubIssuer{err: fmt.Errorf("%w: username already exists", domain.ErrConflict)})
	rec := httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/create-key?username=nami", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRouter_CountsEveryRequest(t *testing.T) {
	srv := newTestServer(t, 100)

	srv.do(http.MethodGet, "/health", "", "")
	srv.do(http.MethodGet, "/v1/img/waifu", "", "")
	srv.do(http.MethodGet, "/v1/img/waifu", "user-key", "")

	if srv.requests.calls != 3 {
		t.Fatalf("expected 3 recorded requests, got %d", srv.requests.calls)
	}
}

func TestRouter_CORSPreflightSkipsAdmission(t *testing.T) {
	srv := newTestServer(t, 1)

	req := httptest.NewRequest(http.MethodOptions, "/v1/img/abc", nil)
	req.Header.Set("Origin", "https://gallery.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	req.Header.Set("Access-Control-Request-Headers", "X-API-KEY, Content-Type")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 preflight, got %d (%s)", rec.Code, rec.Body.String())
	}
	h := rec.Header()
	if h.Get("Access-Control-Allow-Origin") != "https://gallery.example" {
		t.Fatalf("unexpected allow origin %q", h.Get("Access-Control-Allow-Origin"))
	}
	if h.Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials allowed")
	}
	if h.Get("Access-Control-Allow-Methods") != http.MethodDelete {
		t.Fatalf("unexpected allow methods %q", h.Get("Access-Control-Allow-Methods"))
	}
	if !strings.Contains(strings.ToLower(h.Get("Access-Control-Allow-Headers")), "x-api-key") {
		t.Fatalf("expected api key header allowed, got %q", h.Get("Access-Control-Allow-Headers"))
	}

	// preflight must not consume the caller's quota
	if rec := srv.do(http.MethodGet, "/v1/img/waifu", "user-key", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected first real request to pass, got %d", rec.Code)
	}
}

func TestRouter_CORSExposesRateLimitHeaders(t *testing.T) {
	srv := newTestServer(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/v1/img/waifu", nil)
	req.Header.Set("Origin", "https://gallery.example")
	req.Header.Set(middleware.APIKeyHeader, "user-key")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	exposed := strings.ToLower(rec.Header().Get("Access-Control-Expose-Headers"))
	for _, name := range []string{"retry-after", "x-request-id", "x-ratelimit-remaining-minute", "x-ratelimit-remaining-day"} {
		if !strings.Contains(exposed, name) {
			t.Fatalf("expected %s exposed, got %q", name, exposed)
		}
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://gallery.example" {
		t.Fatalf("unexpected allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestHealthAndFavicon(t *testing.T) {
	srv := newTestServer(t, 100)

	rec := srv.do(http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Fatalf("unexpected health response %d", rec.Code)
	}
	if rec := srv.do(http.MethodGet, "/favicon.ico", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without favicon, got %d", rec.Code)
	}

	path := filepath.Join(t.TempDir(), "favicon.ico")
	if err := os.WriteFile(path, []byte("icon"), 0o644); err != nil {
		t.Fatalf("write favicon: %v", err)
	}
	health := NewHealthHandler(map[string]Pinger{"mongo": func(context.Context) error { return errors.New("down") }})
	health.LoadFavicon(path)

	rec = httptest.NewRecorder()
	health.Favicon(rec, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "icon" {
		t.Fatalf("unexpected favicon response %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	health.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when a dependency is down, got %d", rec.Code)
	}
}
