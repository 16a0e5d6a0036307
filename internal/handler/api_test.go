package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dept-portal-api/internal/middleware"
	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/repository"
	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/recordstore"
	"github.com/noah-isme/dept-portal-api/pkg/storage"
)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	repos  *repository.Collections
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	store := recordstore.NewMemoryStore()
	repos := repository.NewCollections(store)

	for _, u := range []models.User{
		{ID: "tcm", Username: "admin", Password: "secret1", Name: "Tổ trưởng", Role: models.RoleTCM, IsApproved: true, AssignedClasses: []string{}},
		{ID: "u1", Username: "an", Password: "secret1", Name: "An", Email: "an@school.edu.vn", Role: models.RoleGV, Subject: "Toán", IsApproved: true, AssignedClasses: []string{"Toán 6/1"}},
		{ID: "u2", Username: "binh", Password: "secret1", Name: "Bình", Role: models.RoleGV, Subject: "Toán", IsApproved: true, AssignedClasses: []string{"Toán 7/1"}},
	} {
		require.NoError(t, repos.Users.Save(ctx, u))
	}

	calendar := service.NewCalendar(service.DefaultTimezone)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	exports := service.NewExportService(files, storage.NewSignedURLSigner("test-secret", time.Hour), service.ExportConfig{APIPrefix: "/api/v1"}, nil)
	auth := service.NewAuthService(repos.Users, nil, nil, service.AuthConfig{
		AccessTokenSecret: "jwt-secret",
		AdminUsernames:    []string{"admin"},
	})
	users := service.NewUserService(repos.Users, nil, nil)
	substitutes := service.NewSubstituteService(repos.Substitutes, repos.Schedule, repos.Users, calendar, nil, nil)
	notifications := service.NewNotificationService(repos.Notifications, repos.Users, nil, nil, calendar, "", nil, nil)
	tracker := service.NewUploadTracker(nil)

	h := Handlers{
		Auth:        NewAuthHandler(auth),
		Users:       NewUserHandler(users),
		Schedule:    NewScheduleHandler(service.NewScheduleService(repos.Schedule, repos.Users, nil, nil)),
		Substitutes: NewSubstituteHandler(substitutes),
		Scores:      NewScoreHandler(service.NewScoreService(repos.Scores, repos.Users, exports, calendar, nil)),
		Documents: NewDocumentHandler(service.NewDocumentService(repos.Documents, nil, nil, nil, tracker,
			service.UploadConfig{MaxFileSize: 1 << 20}, nil, nil)),
		Demos:         NewDemoHandler(service.NewDemoService(repos.Demos, repos.Schedule, repos.Users, calendar, nil, nil)),
		LessonPlans:   NewLessonPlanHandler(service.NewLessonPlanService(repos.LessonPlans, repos.Users, exports, calendar, "", nil, nil)),
		Notifications: NewNotificationHandler(notifications),
		Dashboard: NewDashboardHandler(service.NewDashboardService(service.DashboardServiceParams{
			Users:         repos.Users,
			Schedule:      repos.Schedule,
			Substitutes:   substitutes,
			Demos:         repos.Demos,
			Notifications: notifications,
			Calendar:      calendar,
		})),
		Settings: NewSettingHandler(service.NewSettingService(repository.NewSettingRepository(nil), "cfg.apps.googleusercontent.com", nil)),
		Exports:  NewExportHandler(exports),
		Meta:     NewMetaHandler(),
		Metrics:  NewMetricsHandler(service.NewMetricsService(), store),
	}

	router := gin.New()
	router.Use(middleware.WithResponseMeta())
	RegisterRoutes(router, h, RouterConfig{Tokens: auth})
	return &testAPI{t: t, router: router, repos: repos}
}

func (a *testAPI) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.serve(req)
}

func (a *testAPI) serve(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func (a *testAPI) login(username string) string {
	a.t.Helper()
	rec, env := a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": username, "password": "secret1"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	var res models.LoginResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &res))
	return res.AccessToken
}

func TestAuthRoutes(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "an", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = api.do(http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := api.login("admin")
	rec, env := api.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User        models.User `json:"user"`
		IsMainAdmin bool        `json:"is_main_admin"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "tcm", me.User.ID)
	assert.Empty(t, me.User.Password)
	assert.True(t, me.IsMainAdmin)

	rec, _ = api.do(http.MethodPut, "/api/v1/auth/password", token, map[string]string{"old_password": "secret1", "new_password": "secret2"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRegistrationAndApprovalRoutes(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"username": "chi", "password": "secret1", "name": "Chi", "role": "GV",
		"assignedClasses": []string{"Toán 8/2"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.User
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.False(t, created.IsApproved)

	rec, _ = api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"username": "dung", "password": "secret1", "name": "Dũng", "role": "GV",
		"assignedClasses": []string{"Toán 6/1"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	teacher := api.login("an")
	rec, _ = api.do(http.MethodPost, "/api/v1/users/"+created.ID+"/approve", teacher, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := api.login("admin")
	rec, _ = api.do(http.MethodPost, "/api/v1/users/"+created.ID+"/approve", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = api.do(http.MethodGet, "/api/v1/users?approved=true&page_size=2", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, env.Pagination["total_count"])

	rec, env = api.do(http.MethodGet, "/api/v1/users/class-conflicts?label=Toán%206/1&userId=u2", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"conflict":true`)

	rec, _ = api.do(http.MethodPut, "/api/v1/users/u2", teacher, map[string]string{"name": "Bình 2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = api.do(http.MethodPut, "/api/v1/users/u1", teacher, map[string]string{"name": "An Nguyễn"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(http.MethodDelete, "/api/v1/users/u2", teacher, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSubstituteFlowRoutes(t *testing.T) {
	api := newTestAPI(t)
	an, binh := api.login("an"), api.login("binh")

	rec, _ := api.do(http.MethodPost, "/api/v1/schedule", an, map[string]interface{}{
		"dayOfWeek": 2, "period": 1, "session": "Morning", "className": "Toán 6/1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := api.do(http.MethodGet, "/api/v1/substitutes/affected?date=2024-09-09&session=AllDay", an, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "Toán 6/1")

	rec, env = api.do(http.MethodPost, "/api/v1/substitutes/absences", an, map[string]interface{}{
		"date": "2024-09-09", "session": "Morning", "reason": models.AbsenceReasons[0],
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result service.AbsenceResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Len(t, result.Created, 1)
	id := result.Created[0].ID

	rec, _ = api.do(http.MethodPost, "/api/v1/substitutes/"+id+"/accept", an, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = api.do(http.MethodPost, "/api/v1/substitutes/"+id+"/accept", binh, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = api.do(http.MethodPost, "/api/v1/substitutes/"+id+"/accept", binh, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = api.do(http.MethodGet, "/api/v1/substitutes/points", an, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"teacherId":"u2"`)

	rec, _ = api.do(http.MethodPatch, "/api/v1/substitutes/"+id+"/review", binh, map[string]bool{"isFlagged": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScoreExportDownload(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login("admin")

	rec, _ := api.do(http.MethodPut, "/api/v1/scores/u1?period=HKI", admin, map[string]interface{}{"tt": 5, "ga": "2,5"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := api.do(http.MethodPost, "/api/v1/scores/export?period=HKI&format=csv", admin, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result service.ExportResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/download/"))

	rec, _ = api.do(http.MethodGet, result.URL, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, rec.Body.String(), "An")

	rec, _ = api.do(http.MethodGet, "/api/v1/exports/download/forged", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDocumentUploadWithoutDrive(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("an")

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("title", "Đề cương HKI"))
	require.NoError(t, form.WriteField("category", "Đề cương"))
	require.NoError(t, form.WriteField("type", "GKI"))
	require.NoError(t, form.WriteField("grade", "6"))
	part, err := form.CreateFormFile("file", "de-cuong.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec, _ := api.serve(req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, env := api.do(http.MethodGet, "/api/v1/documents?type=Tất%20cả", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", string(env.Data))
}

func TestPublicAndGuardedRoutes(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(http.MethodGet, "/api/v1/meta/options", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var options MetaOptions
	require.NoError(t, json.Unmarshal(env.Data, &options))
	assert.Equal(t, models.HomeroomLabel, options.HomeroomLabel)
	assert.NotContains(t, options.ClassOptions, models.HomeroomLabel)
	assert.Contains(t, options.ClassOptions, "Tin học 9/6")

	rec, env = api.do(http.MethodGet, "/api/v1/settings/client-id", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"source":"config"`)

	rec, _ = api.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	teacher := api.login("an")
	rec, _ = api.do(http.MethodPut, "/api/v1/settings/client-id", teacher, map[string]string{"clientId": "x.apps.googleusercontent.com"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = api.do(http.MethodPost, "/api/v1/notifications", teacher, map[string]string{"content": "Họp"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = api.do(http.MethodGet, "/api/v1/metrics/summary", teacher, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := api.login("admin")
	rec, env = api.do(http.MethodGet, "/api/v1/metrics/summary", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"queues":{}`)

	rec, _ = api.do(http.MethodPost, "/api/v1/notifications", admin, map[string]interface{}{"content": "Họp tổ", "isImportant": true})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, env = api.do(http.MethodGet, "/api/v1/dashboard", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, env.Meta["cache_hit"])
	assert.Contains(t, string(env.Data), "Họp tổ")

	rec, _ = api.do(http.MethodGet, "/api/v1/demos/available?date=2024-09-09&period=x&session=Morning", teacher, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
