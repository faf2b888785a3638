package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bptrack/internal/alert"
	"bptrack/internal/bpcategory"
	"bptrack/internal/repository"
	"bptrack/internal/service"
	"bptrack/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T, checks map[string]Pinger) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	authSvc := service.NewAuthService(repository.NewMemoryUsersRepo(), store.NewMemoryKV(), time.Hour, logger)
	bpSvc := service.NewBPStatService(repository.NewMemoryBPStatsRepo(), alert.NopPublisher{}, bpcategory.HypertensiveCrisis, logger)

	router := NewRouter(logger)
	authed := RequireAuth(authSvc, logger)
	router.RegisterAuthRoutes(NewAuthHandler(authSvc, logger), authed)
	router.RegisterBPStatRoutes(NewBPStatHandler(bpSvc, logger), authed)
	router.RegisterMetaRoutes(NewMetaHandler(checks, logger))
	return AccessLog(router, logger)
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) Result[T] {
	t.Helper()
	var out Result[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type authResult struct {
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
	Token string `json:"token"`
}

func register(t *testing.T, h http.Handler, name string) authResult {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": name,
		"email":    name + "@example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[authResult](t, w)
	require.Equal(t, ResultSuccess, res.Code)
	require.NotEmpty(t, res.Result.Token)
	return res.Result
}

type bpStatJSON struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	Systolic  int    `json:"systolic"`
	Diastolic int    `json:"diastolic"`
	HeartRate int    `json:"heartRate"`
	Category  string `json:"category"`
	Source    string `json:"source"`
}

func createStat(t *testing.T, h http.Handler, token string, sys, dia, hr int) bpStatJSON {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/v1/bpstats", token, map[string]int{"systolic": sys, "diastolic": dia, "heartRate": hr})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[bpStatJSON](t, w).Result
}

func TestAuthFlow(t *testing.T) {
	h := newTestRouter(t, nil)
	reg := register(t, h, "alice")
	assert.Equal(t, "alice@example.com", reg.User.Email)

	w := do(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "alice2", "email": "ALICE@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[authResult](t, w).Result

	w = do(t, h, http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var meBody Result[struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meBody))
	assert.Equal(t, reg.User.ID, meBody.Result.ID)
	assert.Equal(t, "alice", meBody.Result.Username)
	assert.NotContains(t, w.Body.String(), "password")

	w = do(t, h, http.MethodPost, "/api/v1/auth/logout", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ResultTokenExpired, decode[any](t, w).Code)
}

func TestRegister_BadInput(t *testing.T) {
	h := newTestRouter(t, nil)

	w := do(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "All fields are required", decode[any](t, w).Message)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w = do(t, h, http.MethodGet, "/api/v1/auth/register", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestBPStats_RequireAuth(t *testing.T) {
	h := newTestRouter(t, nil)

	for _, path := range []string{"/api/v1/bpstats", "/api/v1/bpstats/summary", "/api/v1/bpstats/export", "/api/v1/bpstats/abc"} {
		w := do(t, h, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := do(t, h, http.MethodGet, "/api/v1/bpstats", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBPStats_CreateAndClassify(t *testing.T) {
	h := newTestRouter(t, nil)
	user := register(t, h, "carol")

	cases := []struct {
		sys, dia int
		want     bpcategory.Category
	}{
		{185, 100, bpcategory.HypertensiveCrisis},
		{145, 85, bpcategory.Stage2Hypertension},
		{135, 70, bpcategory.Stage1Hypertension},
		{125, 75, bpcategory.Elevated},
		{110, 70, bpcategory.Normal},
		{85, 55, bpcategory.Normal},
	}
	for _, tc := range cases {
		stat := createStat(t, h, user.Token, tc.sys, tc.dia, 70)
		assert.Equal(t, string(tc.want), stat.Category, "sys=%d dia=%d", tc.sys, tc.dia)
		assert.Equal(t, user.User.ID, stat.User)
		assert.Equal(t, "manual", stat.Source)
	}
}

func TestBPStats_CreateMissingFields(t *testing.T) {
	h := newTestRouter(t, nil)
	user := register(t, h, "dave")

	w := do(t, h, http.MethodPost, "/api/v1/bpstats", user.Token, map[string]int{"systolic": 120, "diastolic": 80})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please provide all fields", decode[any](t, w).Message)

	w = do(t, h, http.MethodPost, "/api/v1/bpstats", user.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/bpstats", user.Token, map[string]any{
		"systolic": 120, "diastolic": 80, "heartRate": 70,
		"source": "ble", "deviceId": strings.Repeat("x", 65),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "deviceId must be at most 64 characters", decode[any](t, w).Message)
}

type listJSON struct {
	BPStats     []bpStatJSON `json:"bpStats"`
	CurrentPage int          `json:"currentPage"`
	Limit       int          `json:"limit"`
	Total       int          `json:"totalBPStats"`
	TotalPages  int          `json:"totalPages"`
}

func TestBPStats_ListPaginationAndFilters(t *testing.T) {
	h := newTestRouter(t, nil)
	user := register(t, h, "erin")
	other := register(t, h, "frank")

	for i := 0; i < 12; i++ {
		createStat(t, h, user.Token, 110+i, 70, 60)
	}
	createStat(t, h, other.Token, 120, 70, 60)

	w := do(t, h, http.MethodGet, "/api/v1/bpstats?page=2&limit=5", user.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[listJSON](t, w).Result
	assert.Equal(t, 2, list.CurrentPage)
	assert.Equal(t, 5, list.Limit)
	assert.Equal(t, 12, list.Total)
	assert.Equal(t, 3, list.TotalPages)
	assert.Len(t, list.BPStats, 5)
	for _, s := range list.BPStats {
		assert.Equal(t, user.User.ID, s.User)
	}

	w = do(t, h, http.MethodGet, "/api/v1/bpstats?category=Elevated&limit=100", user.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = decode[listJSON](t, w).Result
	assert.Equal(t, 2, list.Total)

	w = do(t, h, http.MethodGet, "/api/v1/bpstats?category=Normal,Elevated", user.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 12, decode[listJSON](t, w).Result.Total)

	w = do(t, h, http.MethodGet, "/api/v1/bpstats?category=Bogus", user.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/bpstats?from=yesterday", user.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/bpstats?from=2030-01-02&to=2030-01-01", user.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/bpstats?page=9223372036854775807", user.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/bpstats?page=1000000&limit=5", user.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = decode[listJSON](t, w).Result
	assert.Equal(t, 12, list.Total)
	assert.Empty(t, list.BPStats)
}

func TestBPStats_GetDeleteOwnership(t *testing.T) {
	h := newTestRouter(t, nil)
	owner := register(t, h, "gina")
	intruder := register(t, h, "hank")
	stat := createStat(t, h, owner.Token, 128, 76, 66)

	w := do(t, h, http.MethodGet, "/api/v1/bpstats/"+stat.ID, owner.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, stat.ID, decode[bpStatJSON](t, w).Result.ID)

	w = do(t, h, http.MethodGet, "/api/v1/bpstats/"+stat.ID, intruder.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, h, http.MethodDelete, "/api/v1/bpstats/"+stat.ID, intruder.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, h, http.MethodDelete, "/api/v1/bpstats/"+stat.ID, owner.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodDelete, "/api/v1/bpstats/"+stat.ID, owner.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPut, "/api/v1/bpstats/"+stat.ID, owner.Token, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/bpstats/a/b", owner.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBPStats_Summary(t *testing.T) {
	h := newTestRouter(t, nil)
	user := register(t, h, "ivy")
	createStat(t, h, user.Token, 110, 70, 60)
	createStat(t, h, user.Token, 190, 90, 80)

	w := do(t, h, http.MethodGet, "/api/v1/bpstats/summary", user.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[struct {
		Total      int            `json:"total"`
		ByCategory map[string]int `json:"byCategory"`
		Latest     *bpStatJSON    `json:"latest"`
	}](t, w).Result
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.ByCategory["Hypertensive Crisis"])
	assert.Equal(t, 1, res.ByCategory["Normal"])
	require.NotNil(t, res.Latest)
}

func TestBPStats_ExportImportRoundTrip(t *testing.T) {
	h := newTestRouter(t, nil)
	src := register(t, h, "jack")
	dst := register(t, h, "kate")
	createStat(t, h, src.Token, 135, 85, 70)
	createStat(t, h, src.Token, 118, 72, 64)

	w := do(t, h, http.MethodGet, "/api/v1/bpstats/export", src.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "bp-readings.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Len(t, rows, 3)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "bp-readings.xlsx")
	require.NoError(t, err)
	_, err = part.Write(w.Body.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bpstats/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+dst.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[service.ImportResult](t, rec).Result.Imported)

	w = do(t, h, http.MethodGet, "/api/v1/bpstats", dst.Token, nil)
	list := decode[listJSON](t, w).Result
	require.Equal(t, 2, list.Total)
	got := []string{list.BPStats[0].Category, list.BPStats[1].Category}
	assert.ElementsMatch(t, []string{string(bpcategory.Stage1Hypertension), string(bpcategory.Normal)}, got)
	for _, s := range list.BPStats {
		assert.Equal(t, dst.User.ID, s.User)
	}
}

func TestBPStats_ImportJSON(t *testing.T) {
	h := newTestRouter(t, nil)
	user := register(t, h, "liam")

	w := do(t, h, http.MethodPost, "/api/v1/bpstats/import", user.Token, map[string]any{
		"rows": []map[string]any{
			{"systolic": 121, "diastolic": 79, "heartRate": 70, "measuredAt": "2024-02-01T07:00:00Z"},
			{"systolic": 121, "heartRate": 70},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[service.ImportResult](t, w).Result
	assert.Equal(t, 1, res.Imported)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 1, res.Failed[0].Index)

	w = do(t, h, http.MethodPost, "/api/v1/bpstats/import", user.Token, map[string]any{"rows": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCategoriesAndHealth(t *testing.T) {
	h := newTestRouter(t, map[string]Pinger{
		"database": func(context.Context) error { return nil },
	})

	w := do(t, h, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cats := decode[[]categoryInfo](t, w).Result
	require.Len(t, cats, 7)
	assert.Equal(t, "Hypertensive Crisis", cats[0].Name)
	assert.Equal(t, "Uncategorized", cats[6].Name)

	w = do(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w).Result["database"])

	down := newTestRouter(t, map[string]Pinger{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w = do(t, down, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "down", decode[map[string]string](t, w).Result["redis"])
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"Bearer abc":         "abc",
		"bearer  abc ":       "abc",
		"Basic Zm9vOmJhcg==": "",
		"Bearer":             "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, bearerToken(req), fmt.Sprintf("header %q", header))
	}
}
