package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vitolahq/vitola/internal/config"
	"github.com/vitolahq/vitola/internal/identity"
	"github.com/vitolahq/vitola/internal/store"
)

// testServer builds a server over a json store in a temp directory.
// A nil logger discards nothing interesting; pass one to capture logs.
func testServer(t *testing.T, logger *slog.Logger, opts ...func(*config.Config)) (*Server, *Deps) {
	t.Helper()

	cfg := config.DevConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if logger == nil {
		logger = testLogger()
	}

	deps := &Deps{
		Store:       testStore(t),
		SessionRepo: identity.NewMemorySessionRepo(),
		UserAuth:    identity.NewUserAuth(4), // low cost for fast tests
	}

	srv, err := New(cfg, logger, deps)
	if err != nil {
		t.Fatal(err)
	}
	return srv, deps
}

func seedUser(t *testing.T, deps *Deps, username string) *store.User {
	t.Helper()

	user, err := deps.Users.Create(context.Background(), identity.NewUser{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatal(err)
	}
	return user
}

func seedSession(t *testing.T, deps *Deps, userID string, ttl time.Duration) *identity.Session {
	t.Helper()

	session, err := deps.SessionRepo.Create(context.Background(), userID, ttl)
	if err != nil {
		t.Fatal(err)
	}
	return session
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	if req.RemoteAddr == "" {
		req.RemoteAddr = "192.0.2.10:40000"
	}
	rr := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeReasonCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Error struct {
			ReasonCode string `json:"reason_code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding error envelope: %v (body: %s)", err, rr.Body.String())
	}
	return envelope.Error.ReasonCode
}

func TestAuthMiddleware_RejectsMissingSession(t *testing.T) {
	srv, _ := testServer(t, nil)

	rr := serve(srv, httptest.NewRequest("GET", "/api/humidors", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := decodeReasonCode(t, rr); got != "unauthorized" {
		t.Errorf("expected reason_code unauthorized, got %q", got)
	}
}

func TestAuthMiddleware_PublicPathsBypass(t *testing.T) {
	srv, _ := testServer(t, nil)

	rr := serve(srv, httptest.NewRequest("GET", "/api/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", rr.Code)
	}

	// Public share views pass the auth gate; an unknown token then
	// yields the assembler's uniform 404, never a 401.
	rr = serve(srv, httptest.NewRequest("GET", "/public/humidors/no-such-token", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("public view: expected 404, got %d", rr.Code)
	}
}

func TestAuthMiddleware_CookieSession(t *testing.T) {
	srv, deps := testServer(t, nil)
	user := seedUser(t, deps, "alice")
	session := seedSession(t, deps, user.ID, time.Hour)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: session.Token})

	rr := serve(srv, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"alice"`) {
		t.Errorf("expected response to contain username, got: %s", rr.Body.String())
	}
}

func TestAuthMiddleware_BearerToken(t *testing.T) {
	srv, deps := testServer(t, nil)
	user := seedUser(t, deps, "bob")
	session := seedSession(t, deps, user.ID, time.Hour)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)

	rr := serve(srv, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"bob"`) {
		t.Errorf("expected response to contain username, got: %s", rr.Body.String())
	}
}

func TestAuthMiddleware_ExpiredSession(t *testing.T) {
	srv, deps := testServer(t, nil)
	user := seedUser(t, deps, "carol")
	session := seedSession(t, deps, user.ID, -time.Minute)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: session.Token})

	rr := serve(srv, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "session has expired") {
		t.Errorf("expected expiry message, got: %s", rr.Body.String())
	}
}

func TestAuthMiddleware_UnknownToken(t *testing.T) {
	srv, _ := testServer(t, nil)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "bogus-token"})

	rr := serve(srv, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAuthMiddleware_DisabledUserLosesSession(t *testing.T) {
	srv, deps := testServer(t, nil)
	user := seedUser(t, deps, "dave")
	session := seedSession(t, deps, user.ID, time.Hour)

	user.IsActive = false
	if err := deps.Store.UpdateUser(context.Background(), user); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: session.Token})

	rr := serve(srv, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for disabled user, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "account is disabled") {
		t.Errorf("expected disabled message, got: %s", rr.Body.String())
	}
}

func TestRateLimit_LoginThrottled(t *testing.T) {
	srv, _ := testServer(t, nil, func(cfg *config.Config) {
		cfg.RateLimit.Login = config.RateLimitRule{Requests: 2, WindowSeconds: 60}
	})

	body := `{"username":"ghost","password":"wrongpassword"}`
	doLogin := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:1000"
		return serve(srv, req)
	}

	for i := 0; i < 2; i++ {
		rr := doLogin()
		if rr.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d should not be throttled", i+1)
		}
	}

	rr := doLogin()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third request, got %d", rr.Code)
	}
	if got := decodeReasonCode(t, rr); got != "rate_limited" {
		t.Errorf("expected reason_code rate_limited, got %q", got)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Errorf("expected X-RateLimit-Limit 2, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", got)
	}
}

func TestRateLimit_KeysByClientIP(t *testing.T) {
	srv, _ := testServer(t, nil, func(cfg *config.Config) {
		cfg.RateLimit.Login = config.RateLimitRule{Requests: 1, WindowSeconds: 60}
	})

	doLogin := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"username":"ghost","password":"wrongpassword"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = addr
		return serve(srv, req)
	}

	if rr := doLogin("203.0.113.1:1000"); rr.Code == http.StatusTooManyRequests {
		t.Fatal("first client's first request should pass")
	}
	if rr := doLogin("203.0.113.1:1001"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("first client's second request should be throttled, got %d", rr.Code)
	}
	if rr := doLogin("203.0.113.2:1000"); rr.Code == http.StatusTooManyRequests {
		t.Fatal("second client must not inherit the first client's counter")
	}
}

func TestRateLimit_PublicViewThrottled(t *testing.T) {
	srv, _ := testServer(t, nil, func(cfg *config.Config) {
		cfg.RateLimit.PublicView = config.RateLimitRule{Requests: 1, WindowSeconds: 60}
	})

	doView := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/public/humidors/some-token", nil)
		req.RemoteAddr = "203.0.113.5:1000"
		return serve(srv, req)
	}

	if rr := doView(); rr.Code != http.StatusNotFound {
		t.Fatalf("first view should reach the handler, got %d", rr.Code)
	}
	if rr := doView(); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second view should be throttled, got %d", rr.Code)
	}
}

func TestRateLimit_OtherPathsUnlimited(t *testing.T) {
	srv, _ := testServer(t, nil, func(cfg *config.Config) {
		cfg.RateLimit.Login = config.RateLimitRule{Requests: 1, WindowSeconds: 60}
		cfg.RateLimit.PublicView = config.RateLimitRule{Requests: 1, WindowSeconds: 60}
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/api/healthz", nil)
		req.RemoteAddr = "203.0.113.5:1000"
		if rr := serve(srv, req); rr.Code != http.StatusOK {
			t.Fatalf("healthz request %d: expected 200, got %d", i+1, rr.Code)
		}
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/public/humidors/abc123", "/public/humidors/[REDACTED]"},
		{"/public/humidors/abc123/extra", "/public/humidors/[REDACTED]/extra"},
		{"/public/humidors/", "/public/humidors/"},
		{"/public/humidors", "/public/humidors"},
		{"/api/humidors/h-1", "/api/humidors/h-1"},
		{"/api/auth/login", "/api/auth/login"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := redactPath(tt.path)
			if got != tt.want {
				t.Errorf("redactPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestAccessLog_RedactsPublicToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	srv, _ := testServer(t, logger)

	serve(srv, httptest.NewRequest("GET", "/public/humidors/secrettoken-abc123", nil))

	logs := buf.String()
	if strings.Contains(logs, "secrettoken-abc123") {
		t.Errorf("expected token to be redacted from logs, got: %s", logs)
	}
	if !strings.Contains(logs, "[REDACTED]") {
		t.Errorf("expected [REDACTED] placeholder in logs, got: %s", logs)
	}
}

func TestAccessLog_AllowSensitiveKeepsToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	srv, _ := testServer(t, logger, func(cfg *config.Config) {
		cfg.Logging.AllowSensitive = true
	})

	serve(srv, httptest.NewRequest("GET", "/public/humidors/secrettoken-abc123", nil))

	if !strings.Contains(buf.String(), "secrettoken-abc123") {
		t.Errorf("expected token in logs with allow_sensitive, got: %s", buf.String())
	}
}

func TestAccessLog_HasRequestFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	srv, _ := testServer(t, logger)

	serve(srv, httptest.NewRequest("GET", "/api/healthz", nil))

	logs := buf.String()
	for _, field := range []string{"msg=request", "request_id=", "method=GET", "path=/api/healthz", "client_ip=", "status=200", "bytes=", "duration_ms="} {
		if !strings.Contains(logs, field) {
			t.Errorf("expected access log to contain %q, got: %s", field, logs)
		}
	}
}

func TestAccessLog_ClientIPFromTrustedProxy(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	srv, _ := testServer(t, logger, func(cfg *config.Config) {
		cfg.Server.TrustedProxies = []string{"127.0.0.0/8"}
	})

	req := httptest.NewRequest("GET", "/api/healthz", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	serve(srv, req)

	if !strings.Contains(buf.String(), "client_ip=203.0.113.7") {
		t.Errorf("expected forwarded client ip from trusted proxy, got: %s", buf.String())
	}
}

func TestAccessLog_ForwardedForIgnoredFromUntrustedPeer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	srv, _ := testServer(t, logger, func(cfg *config.Config) {
		cfg.Server.TrustedProxies = []string{"127.0.0.0/8"}
	})

	req := httptest.NewRequest("GET", "/api/healthz", nil)
	req.RemoteAddr = "192.0.2.50:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	serve(srv, req)

	if !strings.Contains(buf.String(), "client_ip=192.0.2.50") {
		t.Errorf("expected direct peer ip for untrusted peer, got: %s", buf.String())
	}
	if strings.Contains(buf.String(), "client_ip=203.0.113.7") {
		t.Errorf("spoofed X-Forwarded-For must not be believed, got: %s", buf.String())
	}
}

func TestMiddlewareChain_PanicProducesStatus500(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	srv, _ := testServer(t, nil)

	// Same chain order as setupRoutes, with a handler that panics.
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLoggerMiddleware(logger, srv.trustedProxies, false))
	r.Use(srv.accessLogMiddleware)
	r.Use(chimw.Recoverer)
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	req.RemoteAddr = "192.0.2.10:40000"
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "status=500") {
		t.Errorf("expected access log to record status 500, got: %s", buf.String())
	}
}
