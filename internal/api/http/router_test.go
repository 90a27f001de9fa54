package http

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/job-board/internal/api/http/handlers"
	"github.com/spec-kit/job-board/internal/auth"
	"github.com/spec-kit/job-board/internal/config"
	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/events"
	"github.com/spec-kit/job-board/internal/observability"
	"github.com/spec-kit/job-board/internal/persistence"
	"github.com/spec-kit/job-board/internal/repository"
	"github.com/spec-kit/job-board/internal/service"
	"github.com/spec-kit/job-board/internal/storage"
)

type testServer struct {
	app    *fiber.App
	repos  repository.Repositories
	tokens *auth.TokenManager
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestServer(t *testing.T, authLimit int) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret",
			AccessTokenTTLMinutes:   30,
			PasswordResetTTLMinutes: 15,
			BcryptCost:              bcrypt.MinCost,
		},
		Storage: config.StorageConfig{UploadDir: t.TempDir(), MaxUploadBytes: 1 << 20},
	}
	logger := zap.NewNop()
	repos := repository.NewMemoryRepositories()
	store, err := storage.NewCVStore(cfg.Storage, logger)
	require.NoError(t, err)
	metrics := observability.NewMetrics("jobboard")
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:   repos.Users,
		ResetStore: persistence.NewResetTokenStore(client),
		Logger:     logger,
	})
	jobs := service.NewJobService(service.JobDependencies{
		JobRepo: repos.Jobs, ApplicationRepo: repos.Applications, Dispatcher: dispatcher, Logger: logger,
	})
	apps := service.NewApplicationService(service.ApplicationDependencies{
		ApplicationRepo: repos.Applications, JobRepo: repos.Jobs, CVStore: store,
		Dispatcher: dispatcher, Recorder: metrics, Logger: logger, EnforceDeadline: true,
	})
	cvs := service.NewCVService(service.CVDependencies{
		ApplicationRepo: repos.Applications, JobRepo: repos.Jobs, Store: store, Logger: logger,
	})
	admin := service.NewAdminService(service.AdminDependencies{
		UserRepo: repos.Users, JobRepo: repos.Jobs, ApplicationRepo: repos.Applications, Logger: logger,
	})
	reports := service.NewReportService(repos.Jobs, repos.Applications, logger)

	cookie := auth.CookieSettings{}
	app := fiber.New(fiber.Config{
		BodyLimit:    int(store.MaxBytes()) + 1<<20,
		ErrorHandler: ErrorHandler(logger, metrics),
	})
	RegisterMiddlewares(app, MiddlewareConfig{
		Logger:   logger,
		Metrics:  metrics,
		Timeout:  5 * time.Second,
		Identity: auth.NewIdentityMiddleware(auth.NewAuthenticator(authService.TokenManager(), repos.Users, logger), cookie),
	})
	RegisterRoutes(app, RouteConfig{
		Health:       handlers.NewHealthHandler("job-board", "test", nil, nil, logger),
		Auth:         handlers.NewAuthHandler(authService, cookie),
		Jobs:         handlers.NewJobsHandler(jobs, cvs, reports),
		Applications: handlers.NewApplicationsHandler(apps, cvs),
		Recruiter:    handlers.NewRecruiterHandler(jobs),
		Admin:        handlers.NewAdminHandler(admin, apps, cvs),
		Metrics:      metrics.Handler(),
		AuthLimit:    RateLimit(authLimit, persistence.NewLimiterStorage(client, "ratelimit:")),
	})
	return &testServer{app: app, repos: repos, tokens: authService.TokenManager()}
}

func (s *testServer) seed(t *testing.T, email string, role domain.Role) string {
	t.Helper()
	user := &domain.User{FirstName: "Rae", LastName: "Smith", Email: email, Role: role, IsActive: true}
	require.NoError(t, s.repos.Users.Create(context.Background(), user))
	token, _, err := s.tokens.GenerateToken(user)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Cookie", "access_token="+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (s *testServer) json(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return s.do(t, method, path, token, body, fiber.MIMEApplicationJSON)
}

func decode(t *testing.T, resp *http.Response, into any) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
	return env
}

func applyForm(t *testing.T, cover, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("cover_letter", cover))
	if filename != "" {
		part, err := w.CreateFormFile("cv", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHiringFlow(t *testing.T) {
	s := newTestServer(t, 0)
	recruiter := s.seed(t, "rae@example.com", domain.RoleRecruiter)

	resp := s.json(t, http.MethodPost, "/auth/register", "", map[string]string{
		"first_name": "José", "last_name": "Núñez", "email": "jose@example.com", "password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "access_token=")
	var session struct {
		User struct {
			Role string `json:"role"`
		} `json:"user"`
		Auth struct {
			Token string `json:"token"`
		} `json:"auth"`
	}
	decode(t, resp, &session)
	assert.Equal(t, "applicant", session.User.Role)
	applicant := session.Auth.Token

	deadline := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	resp = s.json(t, http.MethodPost, "/jobs", recruiter, map[string]string{
		"title": "Senior Go Engineer", "description": "Build services", "deadline": deadline,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var job struct {
		ID   string `json:"id"`
		Open bool   `json:"open"`
	}
	decode(t, resp, &job)
	assert.True(t, job.Open)

	resp = s.json(t, http.MethodPost, "/jobs", applicant, map[string]string{"title": "x", "deadline": deadline})
	env := decode(t, resp, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "WRONG_ROLE", env.Error.Code)

	var listed []json.RawMessage
	resp = s.do(t, http.MethodGet, "/jobs", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &listed)
	assert.Len(t, listed, 1)

	body, ct := applyForm(t, "Hire me", "resume.pdf", "%PDF-1.4 fake")
	resp = s.do(t, http.MethodPost, "/jobs/"+job.ID+"/applications", applicant, body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var app struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		HasCV  bool   `json:"has_cv"`
	}
	decode(t, resp, &app)
	assert.Equal(t, "submitted", app.Status)
	assert.True(t, app.HasCV)

	body, ct = applyForm(t, "Again", "resume.pdf", "%PDF-1.4 fake")
	resp = s.do(t, http.MethodPost, "/jobs/"+job.ID+"/applications", applicant, body, ct)
	env = decode(t, resp, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE_APPLICATION", env.Error.Code)

	var mine []json.RawMessage
	resp = s.do(t, http.MethodGet, "/applications/mine", applicant, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &mine)
	assert.Len(t, mine, 1)

	resp = s.json(t, http.MethodPost, "/applications/"+app.ID+"/notes", recruiter, map[string]string{"notes": "strong"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = s.json(t, http.MethodPost, "/applications/"+app.ID+"/score", recruiter, map[string]int{"score": 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = s.json(t, http.MethodPost, "/applications/"+app.ID+"/score", recruiter, map[string]int{"score": 9})
	env = decode(t, resp, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "SCORE_OUT_OF_RANGE", env.Error.Code)

	resp = s.json(t, http.MethodPost, "/applications/"+app.ID+"/status", recruiter, map[string]string{"status": "shortlisted"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var seen struct {
		Status string  `json:"status"`
		Notes  *string `json:"notes"`
	}
	resp = s.do(t, http.MethodGet, "/applications/"+app.ID, applicant, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &seen)
	assert.Equal(t, "shortlisted", seen.Status)
	assert.Nil(t, seen.Notes, "applicants never see reviewer notes")

	resp = s.do(t, http.MethodGet, "/applications/"+app.ID+"/cv", recruiter, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "CV_Jose_Nunez_Senior_Go_Engineer.pdf")
	cv, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(cv))

	resp = s.do(t, http.MethodGet, "/jobs/"+job.ID+"/cvs/download", recruiter, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "Jose_Nunez_CV.pdf", zr.File[0].Name)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".zip")

	resp = s.do(t, http.MethodGet, "/jobs/"+job.ID+"/report.pdf", recruiter, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	report, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(report, []byte("%PDF")))

	var stats struct {
		TotalApplications int            `json:"total_applications"`
		ByStatus          map[string]int `json:"applications_by_status"`
	}
	resp = s.do(t, http.MethodGet, "/recruiter/stats", recruiter, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &stats)
	assert.Equal(t, 1, stats.TotalApplications)
	assert.Equal(t, 1, stats.ByStatus["shortlisted"])
	assert.Equal(t, 0, stats.ByStatus["submitted"])

	resp = s.do(t, http.MethodPost, "/applications/"+app.ID+"/withdraw", applicant, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = s.json(t, http.MethodPost, "/applications/"+app.ID+"/status", recruiter, map[string]string{"status": "rejected"})
	env = decode(t, resp, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "TERMINAL_STATE", env.Error.Code)

	resp = s.do(t, http.MethodDelete, "/jobs/"+job.ID, recruiter, nil, "")
	env = decode(t, resp, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "HAS_DEPENDENTS", env.Error.Code)
}

func TestRouteGates(t *testing.T) {
	s := newTestServer(t, 0)
	applicant := s.seed(t, "ana@example.com", domain.RoleApplicant)
	recruiter := s.seed(t, "rae@example.com", domain.RoleRecruiter)
	admin := s.seed(t, "root@example.com", domain.RoleAdmin)
	expired := expiredToken(t, "rae@example.com")

	cases := []struct {
		path   string
		token  string
		status int
		code   string
	}{
		{"/recruiter/jobs", "", http.StatusUnauthorized, "NOT_AUTHENTICATED"},
		{"/recruiter/jobs", applicant, http.StatusForbidden, "WRONG_ROLE"},
		{"/recruiter/jobs", recruiter, http.StatusOK, ""},
		{"/recruiter/jobs", expired, http.StatusUnauthorized, "NOT_AUTHENTICATED"},
		{"/admin/users", recruiter, http.StatusForbidden, "WRONG_ROLE"},
		{"/admin/users", admin, http.StatusOK, ""},
		{"/admin/stats", admin, http.StatusOK, ""},
		{"/applications/mine", recruiter, http.StatusForbidden, "WRONG_ROLE"},
		{"/applications/missing", applicant, http.StatusNotFound, "NOT_FOUND"},
		{"/auth/me", "", http.StatusUnauthorized, "NOT_AUTHENTICATED"},
		{"/auth/me", "not-a-token", http.StatusUnauthorized, "NOT_AUTHENTICATED"},
		{"/nowhere", "", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			resp := s.do(t, http.MethodGet, tc.path, tc.token, nil, "")
			assert.Equal(t, tc.status, resp.StatusCode)
			env := decode(t, resp, nil)
			if tc.code != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tc.code, env.Error.Code)
			}
		})
	}
}

func TestExpiredCookieIsClearedAndAnonymous(t *testing.T) {
	s := newTestServer(t, 0)
	s.seed(t, "rae@example.com", domain.RoleRecruiter)

	resp := s.do(t, http.MethodGet, "/recruiter/jobs", expiredToken(t, "rae@example.com"), nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	env := decode(t, resp, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_AUTHENTICATED", env.Error.Code)

	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == "access_token" && c.Value == "" {
			cleared = true
		}
	}
	assert.True(t, cleared, "expired cookie should be cleared")
}

// expiredToken signs a token with the server's secret that expired an hour ago.
func expiredToken(t *testing.T, email string) string {
	t.Helper()
	issued := time.Now().Add(-2 * time.Hour)
	claims := &auth.Claims{
		Role: domain.RoleRecruiter,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestCVArchiveWithoutCVsIsJSONError(t *testing.T) {
	s := newTestServer(t, 0)
	recruiter := s.seed(t, "rae@example.com", domain.RoleRecruiter)

	resp := s.json(t, http.MethodPost, "/jobs", recruiter, map[string]string{
		"title": "Data Engineer", "description": "Pipelines", "deadline": time.Now().AddDate(0, 0, 10).Format("2006-01-02"),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var job struct {
		ID string `json:"id"`
	}
	decode(t, resp, &job)

	resp = s.do(t, http.MethodGet, "/jobs/"+job.ID+"/cvs/download", recruiter, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	env := decode(t, resp, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t, 0)
	admin := s.seed(t, "root@example.com", domain.RoleAdmin)
	s.seed(t, "ana@example.com", domain.RoleApplicant)

	var users []struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	resp := s.do(t, http.MethodGet, "/admin/users?role=applicant", admin, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &users)
	require.Len(t, users, 1)
	target := users[0].ID

	resp = s.do(t, http.MethodPost, "/admin/users/"+target+"/toggle-status", admin, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var toggled struct {
		IsActive bool `json:"is_active"`
	}
	decode(t, resp, &toggled)
	assert.False(t, toggled.IsActive)

	resp = s.json(t, http.MethodPut, "/admin/users/"+target, admin, map[string]string{
		"first_name": "Ana", "last_name": "Lee", "email": "root@example.com", "role": "recruiter",
	})
	env := decode(t, resp, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE_EMAIL", env.Error.Code)

	resp = s.do(t, http.MethodDelete, "/admin/users/"+target, admin, nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/admin/cvs/reconcile", admin, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec struct {
		TotalFiles int `json:"total_files"`
	}
	decode(t, resp, &rec)
	assert.Zero(t, rec.TotalFiles)
}

func TestPasswordResetDoesNotLeakToken(t *testing.T) {
	s := newTestServer(t, 0)
	s.seed(t, "ana@example.com", domain.RoleApplicant)

	for _, email := range []string{"ana@example.com", "nobody@example.com"} {
		resp := s.json(t, http.MethodPost, "/auth/password/reset/request", "", map[string]string{"email": email})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"data":{"status":"reset_requested"}}`, string(raw))
	}
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	login := map[string]string{"email": "ana@example.com", "password": "wrong-password"}

	for i := 0; i < 2; i++ {
		resp := s.json(t, http.MethodPost, "/auth/login", "", login)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := s.json(t, http.MethodPost, "/auth/login", "", login)
	env := decode(t, resp, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)

	// Other routes are not throttled.
	resp = s.do(t, http.MethodGet, "/jobs", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, 0)

	resp := s.do(t, http.MethodGet, "/health/ready", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.do(t, http.MethodGet, "/jobs", "", nil, "")
	resp = s.do(t, http.MethodGet, "/metrics", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "jobboard_http_requests_total"))
}
