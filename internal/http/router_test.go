package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lasttime-backend/internal/data/repos"
	"github.com/yungbote/lasttime-backend/internal/data/repos/testutil"
	types "github.com/yungbote/lasttime-backend/internal/domain"
	httpH "github.com/yungbote/lasttime-backend/internal/http/handlers"
	httpMW "github.com/yungbote/lasttime-backend/internal/http/middleware"
	"github.com/yungbote/lasttime-backend/internal/platform/apierr"
	"github.com/yungbote/lasttime-backend/internal/services"
)

type fakeVerifier map[string]string

func (f fakeVerifier) Verify(_ context.Context, raw string) (*types.Identity, error) {
	if sub, ok := f[raw]; ok {
		return &types.Identity{UserID: sub, Provider: types.ProviderGoogle}, nil
	}
	return nil, apierr.Unauthorized(errors.New("invalid token (google: bad signature)"))
}

func newTestRouter(t *testing.T, budgets map[string]int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testutil.Service(t)
	log := testutil.Logger(t)
	categoryRepo := repos.NewCategoryRepo(store.DB(), log)
	activityRepo := repos.NewActivityRecordRepo(store.DB(), log)

	limiter := services.NewMemoryRateLimiter(log, time.Minute)
	t.Cleanup(func() { _ = limiter.Close() })
	if budgets == nil {
		budgets = services.DefaultBudgets()
	}

	r, err := NewRouter(RouterConfig{
		Log:                 log,
		AuthMiddleware:      httpMW.NewAuthMiddleware(log, fakeVerifier{"token-a": "user-a", "token-b": "user-b"}),
		RateLimitMiddleware: httpMW.NewRateLimitMiddleware(log, limiter, budgets, true),
		CategoryHandler:     httpH.NewCategoryHandler(log, services.NewCategoryService(store, log, categoryRepo, activityRepo)),
		ActivityHandler:     httpH.NewActivityHandler(log, services.NewActivityService(store, log, categoryRepo, activityRepo)),
		HealthHandler:       httpH.NewHealthHandler(store),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return r
}

func do(t *testing.T, r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

type recordBody struct {
	Activity   string    `json:"activity"`
	LastDate   time.Time `json:"last_date"`
	CategoryID *uint     `json:"category_id"`
	Category   *catBody  `json:"category"`
}

type catBody struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func TestUnauthenticatedRequests(t *testing.T) {
	r := newTestRouter(t, nil)

	for _, token := range []string{"", "forged"} {
		rec := do(t, r, http.MethodGet, "/categories/", token, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: status %d", token, rec.Code)
		}
		if got := rec.Header().Get("WWW-Authenticate"); got != "Bearer" {
			t.Fatalf("WWW-Authenticate = %q", got)
		}
		var body errorBody
		decode(t, rec, &body)
		if body.Error.Code != "unauthorized" {
			t.Fatalf("code = %q", body.Error.Code)
		}
	}

	rec := do(t, r, http.MethodGet, "/healthcheck", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" || rec.Header().Get("X-Trace-Id") == "" {
		t.Fatal("missing request/trace id headers")
	}
}

func TestLastTimeScenarioOverHTTP(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(t, r, http.MethodPost, "/categories/", "token-a", `{"name":"Fitness"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create category: %d %s", rec.Code, rec.Body.String())
	}
	var cat catBody
	decode(t, rec, &cat)
	if cat.Name != "fitness" || cat.ID == 0 {
		t.Fatalf("unexpected category: %+v", cat)
	}

	rec = do(t, r, http.MethodPost, "/categories", "token-a", `{"name":"fitness"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate category: %d", rec.Code)
	}
	var eb errorBody
	decode(t, rec, &eb)
	if eb.Error.Message != "Category already exists" {
		t.Fatalf("duplicate message = %q", eb.Error.Message)
	}

	body := `{"activity":"Run","last_date":"2024-05-01T07:30:00Z","category_id":` + jsonUint(cat.ID) + `}`
	if rec = do(t, r, http.MethodPost, "/activity", "token-a", body); rec.Code != http.StatusOK {
		t.Fatalf("upsert: %d %s", rec.Code, rec.Body.String())
	}
	body = `{"activity":"run","last_date":"2024-05-04T07:30:00","category_id":` + jsonUint(cat.ID) + `}`
	if rec = do(t, r, http.MethodPost, "/activity/", "token-a", body); rec.Code != http.StatusOK {
		t.Fatalf("second upsert: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodGet, "/activity/RUN", "token-a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}
	var got recordBody
	decode(t, rec, &got)
	want := time.Date(2024, 5, 4, 7, 30, 0, 0, time.UTC)
	if got.Activity != "run" || !got.LastDate.Equal(want) {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Category == nil || got.Category.Name != "fitness" {
		t.Fatalf("nested category missing: %+v", got.Category)
	}

	rec = do(t, r, http.MethodGet, "/activity/", "token-a", "")
	var list []recordBody
	decode(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("expected one record, got %d", len(list))
	}

	rec = do(t, r, http.MethodDelete, "/categories/"+jsonUint(cat.ID), "token-a", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Category deleted successfully") {
		t.Fatalf("delete category: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodGet, "/activity/run", "token-a", "")
	got = recordBody{}
	decode(t, rec, &got)
	if got.CategoryID != nil || got.Category != nil {
		t.Fatalf("category not cleared: %+v", got)
	}

	rec = do(t, r, http.MethodDelete, "/activity/run", "token-a", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Record for 'run' deleted successfully") {
		t.Fatalf("delete activity: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, r, http.MethodGet, "/activity/run", "token-a", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted record still found: %d", rec.Code)
	}
	decode(t, rec, &eb)
	if eb.Error.Message != "No record found for activity: run" {
		t.Fatalf("not found message = %q", eb.Error.Message)
	}
}

func TestCrossUserIsolationOverHTTP(t *testing.T) {
	r := newTestRouter(t, nil)

	if rec := do(t, r, http.MethodPost, "/activity/", "token-a", `{"activity":"dentist","last_date":"2024-01-01T00:00:00Z"}`); rec.Code != http.StatusOK {
		t.Fatalf("upsert: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, r, http.MethodGet, "/activity/dentist", "token-b", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("user-b read user-a's record: %d", rec.Code)
	}
	if rec := do(t, r, http.MethodDelete, "/activity/dentist", "token-b", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("user-b deleted user-a's record: %d", rec.Code)
	}
	rec := do(t, r, http.MethodGet, "/activity/", "token-b", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("user-b list = %s", rec.Body.String())
	}
}

func TestValidationErrors(t *testing.T) {
	r := newTestRouter(t, nil)
	cases := []struct {
		method, path, body, code string
	}{
		{http.MethodPost, "/categories/", `{}`, "invalid_request"},
		{http.MethodPost, "/categories/", `{"name":"   "}`, "invalid_name"},
		{http.MethodDelete, "/categories/abc", "", "invalid_category_id"},
		{http.MethodPost, "/activity/", `{"activity":"x"}`, "invalid_request"},
		{http.MethodPost, "/activity/", `{"activity":"x","last_date":"yesterday"}`, "invalid_request"},
		{http.MethodGet, "/activity/?skip=-1", "", "invalid_pagination"},
		{http.MethodGet, "/activity/?limit=0", "", "invalid_pagination"},
		{http.MethodGet, "/activity/?category_id=x", "", "invalid_category_id"},
	}
	for _, tc := range cases {
		rec := do(t, r, tc.method, tc.path, "token-a", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s %s: status %d", tc.method, tc.path, rec.Code)
		}
		var eb errorBody
		decode(t, rec, &eb)
		if eb.Error.Code != tc.code {
			t.Fatalf("%s %s: code %q, want %q", tc.method, tc.path, eb.Error.Code, tc.code)
		}
	}

	rec := do(t, r, http.MethodPost, "/activity/", "token-a", `{"activity":"x","last_date":"2024-01-01T00:00:00Z","category_id":999}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown category: %d", rec.Code)
	}
	if rec := do(t, r, http.MethodDelete, "/categories/999", "token-a", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("delete unknown category: %d", rec.Code)
	}
}

func TestRateLimitPerRoute(t *testing.T) {
	budgets := services.DefaultBudgets()
	budgets[services.BucketCategoriesList] = 2
	budgets[services.BucketDefault] = 1
	r := newTestRouter(t, budgets)

	for i := 0; i < 2; i++ {
		rec := do(t, r, http.MethodGet, "/categories/", "token-a", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Fatalf("limit header = %q", rec.Header().Get("X-RateLimit-Limit"))
		}
		reset, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
		if err != nil || reset <= time.Now().Add(-time.Second).Unix() || reset > time.Now().Add(time.Minute+time.Second).Unix() {
			t.Fatalf("reset header = %q", rec.Header().Get("X-RateLimit-Reset"))
		}
	}
	rec := do(t, r, http.MethodGet, "/categories/", "token-a", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("missing rate limit headers: %v", rec.Header())
	}
	var eb errorBody
	decode(t, rec, &eb)
	if eb.Error.Code != "rate_limited" {
		t.Fatalf("code = %q", eb.Error.Code)
	}

	// same address, different user: separate budget
	if rec := do(t, r, http.MethodGet, "/categories/", "token-b", ""); rec.Code != http.StatusOK {
		t.Fatalf("other user throttled: %d", rec.Code)
	}
	// other buckets are unaffected
	if rec := do(t, r, http.MethodGet, "/activity/", "token-a", ""); rec.Code != http.StatusOK {
		t.Fatalf("other bucket throttled: %d", rec.Code)
	}

	if rec := do(t, r, http.MethodGet, "/healthcheck", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("first healthcheck: %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/nope", "", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("unknown route should share the default bucket: %d", rec.Code)
	}
}

func TestNewRouterRejectsInvalidTrustedProxies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	if _, err := NewRouter(RouterConfig{TrustedProxies: []string{"10.0.0.0/33"}}); err == nil {
		t.Fatal("invalid CIDR accepted")
	}
	if _, err := NewServer(":0", RouterConfig{TrustedProxies: []string{"not-an-ip"}}); err == nil {
		t.Fatal("invalid proxy address accepted")
	}
	if _, err := NewRouter(RouterConfig{TrustedProxies: []string{"10.0.0.0/8", "192.168.1.1"}}); err != nil {
		t.Fatalf("valid proxies rejected: %v", err)
	}
}

func TestReadyz(t *testing.T) {
	r := newTestRouter(t, nil)
	rec := do(t, r, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ready" {
		t.Fatalf("readyz: %d %q", rec.Code, rec.Body.String())
	}
}

func jsonUint(v uint) string {
	b, _ := json.Marshal(v)
	return string(b)
}
