package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"onlinemis-backend/internal/cache"
	cachedb "onlinemis-backend/internal/cache/db"
	"onlinemis-backend/internal/components/chrono"
	"onlinemis-backend/internal/components/telemetry"
	"onlinemis-backend/internal/scrapers/onlinemis"
	"onlinemis-backend/internal/sessionstore"
	"onlinemis-backend/lib/testutil"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status   string          `json:"status"`
	Message  string          `json:"message"`
	Cause    string          `json:"cause"`
	Redirect string          `json:"redirect"`
	Data     json.RawMessage `json:"data"`
}

type testEnv struct {
	portal   *testutil.FakePortal
	api      *resty.Client
	cache    cache.SQL
	sessions *sessionstore.Memory
	tel      *telemetry.RecordingAPI
}

var testNow = time.Date(2024, time.March, 12, 9, 0, 0, 0, chrono.Jakarta())

func setup(t *testing.T) testEnv {
	t.Helper()
	return setupPortal(t, testutil.FakePortalOptions{})
}

func setupPortal(t *testing.T, opts testutil.FakePortalOptions) testEnv {
	t.Helper()

	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "internal/service",
		DbSchema: cachedb.Schema,
	})
	t.Cleanup(cleanup)

	portal := testutil.NewFakePortal(opts)
	t.Cleanup(portal.Close)

	tel := &telemetry.RecordingAPI{}
	client, err := onlinemis.NewClient(onlinemis.ClientOptions{
		PortalUrl:         portal.Portal.URL,
		CasUrl:            portal.CasUrl(),
		RequestsPerSecond: 100,
	}, tel)
	require.NoError(t, err)

	clock := chrono.FixedTime{At: testNow}
	sessions := sessionstore.NewMemory()
	responses := cache.NewSQL(result.DB, clock)
	service := NewService(client, sessions, responses, clock, Options{}, tel)

	server := httptest.NewServer(service.Handler())
	t.Cleanup(server.Close)

	api := resty.New()
	api.SetBaseURL(server.URL)

	return testEnv{
		portal:   portal,
		api:      api,
		cache:    responses,
		sessions: sessions,
		tel:      tel,
	}
}

func call(t *testing.T, req *resty.Request, method, path string) (int, envelope) {
	t.Helper()
	res, err := req.Execute(method, path)
	require.NoError(t, err)

	var body envelope
	require.NoError(t, json.Unmarshal(res.Body(), &body), string(res.Body()))
	return res.StatusCode(), body
}

func (e testEnv) login(t *testing.T) {
	t.Helper()
	status, body := call(t, e.api.R().SetBody(map[string]string{
		"email":    testutil.FakeEmail,
		"password": testutil.FakePassword,
	}), http.MethodPost, "/api/v1/login")
	require.Equal(t, http.StatusOK, status, body.Message)

	var user loginResponse
	require.NoError(t, json.Unmarshal(body.Data, &user))
	require.Equal(t, loginResponse{User: "Budi Santoso", NRP: testutil.FakeNRP}, user)
}

var march2024 = onlinemis.ResourceQuery{Year: 2024, Semester: onlinemis.SemesterOdd}

// loginTerm is the term the fake portal reports as current at login.
var loginTerm = onlinemis.ResourceQuery{Year: 2024, Semester: onlinemis.SemesterEven}

func TestLoginErrors(t *testing.T) {
	env := setup(t)

	testCases := []struct {
		name    string
		body    any
		status  int
		message string
	}{
		{name: "not json", body: "{", status: http.StatusBadRequest},
		{name: "missing password", body: map[string]string{"email": testutil.FakeEmail}, status: http.StatusBadRequest},
		{name: "not an email", body: map[string]string{"email": "budi", "password": "x"}, status: http.StatusBadRequest},
		{
			name:    "wrong password",
			body:    map[string]string{"email": testutil.FakeEmail, "password": "salah"},
			status:  http.StatusUnauthorized,
			message: "The credentials you provided cannot be determined to be authentic.",
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			req := env.api.R().SetHeader("content-type", "application/json").SetBody(test.body)
			status, body := call(t, req, http.MethodPost, "/api/v1/login")
			require.Equal(t, test.status, status)
			require.Equal(t, statusError, body.Status)
			if test.message != "" {
				require.Equal(t, test.message, body.Message)
			}
		})
	}
	require.Equal(t, 0, env.portal.Logins())
}

func TestUnauthenticated(t *testing.T) {
	env := setup(t)

	for _, path := range []string{"/api/v1/home", "/api/v1/academic/absen", "/api/v1/academic/logbook"} {
		status, body := call(t, env.api.R(), http.MethodGet, path)
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, loginRedirect, body.Redirect)
	}

	status, _ := call(t, env.api.R().SetHeader("authorization", "Bearer unknown"), http.MethodGet, "/api/v1/home")
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestResources(t *testing.T) {
	env := setup(t)
	env.login(t)

	status, body := call(t, env.api.R(), http.MethodGet, "/api/v1/academic/absen")
	require.Equal(t, http.StatusOK, status, body.Message)
	var attendance onlinemis.AttendanceRecord
	require.NoError(t, json.Unmarshal(body.Data, &attendance))
	require.Len(t, attendance.Courses, 3)

	// the term reported at login is used when the query omits it
	query := env.portal.LastRequest("/absen.php").Query
	require.Equal(t, "2024", query.Get("valTahun"))
	require.Equal(t, "2", query.Get("valSemester"))

	// a second read is served from the cache
	status, _ = call(t, env.api.R(), http.MethodGet, "/api/v1/academic/absen")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, env.portal.Requests("/absen.php"), 1)

	testCases := []struct {
		path       string
		portalPath string
	}{
		{path: "/api/v1/academic/jadwal?year=2024&semester=1", portalPath: "/jadwal_kul.php"},
		{path: "/api/v1/academic/nilai?year=2024&semester=1", portalPath: "/nilai_sem.php"},
		{path: "/api/v1/academic/frs?year=2024&semester=1", portalPath: "/FRS_mbkm.php"},
		{path: "/api/v1/academic/logbook?year=2024&semester=1&week=3", portalPath: "/entry_logbook_kp1.php"},
	}
	for _, test := range testCases {
		status, body := call(t, env.api.R(), http.MethodGet, test.path)
		require.Equal(t, http.StatusOK, status, "%s: %s", test.path, body.Message)
		require.NotEmpty(t, body.Data)
		require.Len(t, env.portal.Requests(test.portalPath), 1)
	}

	var home onlinemis.HomeRecord
	status, body = call(t, env.api.R(), http.MethodGet, "/api/v1/home")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body.Data, &home))
	require.Len(t, home.Announcements, 2)

	var schedule onlinemis.ScheduleRecord
	_, body = call(t, env.api.R(), http.MethodGet, "/api/v1/academic/jadwal?year=2024&semester=1")
	require.NoError(t, json.Unmarshal(body.Data, &schedule))
	require.Len(t, schedule.Day(time.Monday), 2)
}

func TestResourceQueryValidation(t *testing.T) {
	env := setup(t)
	env.login(t)

	for _, path := range []string{
		"/api/v1/academic/absen?semester=5",
		"/api/v1/academic/absen?year=dua",
		"/api/v1/academic/nilai?year=1999",
		"/api/v1/academic/logbook?week=25",
		"/api/v1/academic/logbook?week=0",
	} {
		status, body := call(t, env.api.R(), http.MethodGet, path)
		require.Equal(t, http.StatusBadRequest, status, path)
		require.Equal(t, statusError, body.Status)
	}
}

func TestSessionExpired(t *testing.T) {
	env := setup(t)
	env.login(t)
	ctx := context.Background()

	status, _ := call(t, env.api.R(), http.MethodGet, "/api/v1/academic/absen")
	require.Equal(t, http.StatusOK, status)
	_, hit, err := env.cache.Get(ctx, cache.ResourceKey(onlinemis.ResourceAttendance, testutil.FakeNRP, loginTerm))
	require.NoError(t, err)
	require.True(t, hit)

	env.portal.Expire()
	status, body := call(t, env.api.R(), http.MethodGet, "/api/v1/academic/nilai")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, loginRedirect, body.Redirect)

	// the session and everything cached for the identity is gone
	_, hit, err = env.cache.Get(ctx, cache.ResourceKey(onlinemis.ResourceAttendance, testutil.FakeNRP, loginTerm))
	require.NoError(t, err)
	require.False(t, hit)

	status, body = call(t, env.api.R(), http.MethodGet, "/api/v1/academic/absen")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "not logged in", body.Message)
	require.Equal(t, loginRedirect, body.Redirect)

	env.login(t)
	status, _ = call(t, env.api.R(), http.MethodGet, "/api/v1/academic/nilai")
	require.Equal(t, http.StatusOK, status)
}

func TestBearerSession(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	client, err := onlinemis.NewClient(onlinemis.ClientOptions{
		PortalUrl:         env.portal.Portal.URL,
		CasUrl:            env.portal.CasUrl(),
		RequestsPerSecond: 100,
	}, env.tel)
	require.NoError(t, err)
	upstream, err := client.Login(ctx, testutil.FakeEmail, testutil.FakePassword)
	require.NoError(t, err)
	require.NoError(t, env.sessions.Set(ctx, "bearer-id", upstream))

	bearer := func() *resty.Request {
		return env.api.R().SetHeader("authorization", "Bearer bearer-id")
	}
	status, body := call(t, bearer(), http.MethodGet, "/api/v1/academic/nilai")
	require.Equal(t, http.StatusOK, status, body.Message)

	env.portal.Expire()
	status, _ = call(t, bearer(), http.MethodGet, "/api/v1/academic/frs")
	require.Equal(t, http.StatusUnauthorized, status)
	has, err := env.sessions.Has(ctx, "bearer-id")
	require.NoError(t, err)
	require.False(t, has)
}

func TestLogbookWrites(t *testing.T) {
	env := setup(t)
	env.login(t)
	ctx := context.Background()

	week := onlinemis.LogbookQuery{ResourceQuery: march2024, Week: 3}
	logbookKey := cache.LogbookKey(testutil.FakeNRP, week)

	status, _ := call(t, env.api.R(), http.MethodGet, "/api/v1/academic/logbook?year=2024&semester=1&week=3")
	require.Equal(t, http.StatusOK, status)
	_, hit, err := env.cache.Get(ctx, logbookKey)
	require.NoError(t, err)
	require.True(t, hit)

	entry := map[string]any{
		"year":          2024,
		"semester":      1,
		"week":          3,
		"date":          "19-02-2024",
		"start":         "08:00",
		"end":           "16:00",
		"activity":      "Merancang skema basis data inventaris",
		"matchesCourse": true,
		"courseId":      501,
		"placementId":   "778",
		"studentId":     "1234",
	}
	status, body := call(t, env.api.R().SetBody(entry), http.MethodPost, "/api/v1/academic/logbook")
	require.Equal(t, http.StatusOK, status, body.Message)
	require.Equal(t, "Merancang skema basis data inventaris", env.portal.LastRequest("/entry_logbook_kp1.php").Form.Get("kegiatan"))

	// the written week is no longer cached
	_, hit, err = env.cache.Get(ctx, logbookKey)
	require.NoError(t, err)
	require.False(t, hit)

	entry["start"] = "8 pagi"
	status, _ = call(t, env.api.R().SetBody(entry), http.MethodPost, "/api/v1/academic/logbook")
	require.Equal(t, http.StatusBadRequest, status)

	entry["start"] = "08:00"
	env.portal.SetRejectWrites(true)
	status, body = call(t, env.api.R().SetBody(entry), http.MethodPost, "/api/v1/academic/logbook")
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "Tanggal di luar periode KP", body.Message)

	status, body = call(t, env.api.R(), http.MethodDelete, "/api/v1/academic/logbook/9001?year=2024&semester=1&week=3")
	require.Equal(t, http.StatusOK, status, body.Message)
	require.Equal(t, "9001", env.portal.LastRequest("/entry_logbook_kp1.php").Query.Get("nokplogbook"))
}

func TestLogbookUploads(t *testing.T) {
	env := setup(t)
	env.login(t)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	fields := map[string]string{
		"year":        "2024",
		"semester":    "1",
		"week":        "3",
		"date":        "19-02-2024",
		"placementId": "778",
		"studentId":   "1234",
	}

	req := env.api.R().
		SetMultipartFormData(fields).
		SetFileReader("file", "kegiatan.png", bytes.NewReader(png))
	status, body := call(t, req, http.MethodPost, "/api/v1/academic/logbook/upload_screenshot")
	require.Equal(t, http.StatusOK, status, body.Message)
	require.Equal(t, png, env.portal.LastRequest("/entry_logbook_kp1.php").Files["file"])

	req = env.api.R().
		SetMultipartFormData(fields).
		SetFileReader("file", "kegiatan.png", bytes.NewReader(png))
	status, _ = call(t, req, http.MethodPost, "/api/v1/academic/logbook/upload_pdf")
	require.Equal(t, http.StatusUnsupportedMediaType, status)

	delete(fields, "date")
	req = env.api.R().
		SetMultipartFormData(fields).
		SetFileReader("file", "kegiatan.png", bytes.NewReader(png))
	status, _ = call(t, req, http.MethodPost, "/api/v1/academic/logbook/upload_screenshot")
	require.Equal(t, http.StatusBadRequest, status)
}

func TestInvalidateCacheAndLogout(t *testing.T) {
	env := setup(t)
	env.login(t)
	ctx := context.Background()

	status, _ := call(t, env.api.R(), http.MethodGet, "/api/v1/academic/nilai")
	require.Equal(t, http.StatusOK, status)

	gradesKey := cache.ResourceKey(onlinemis.ResourceGrades, testutil.FakeNRP, loginTerm)
	_, hit, err := env.cache.Get(ctx, gradesKey)
	require.NoError(t, err)
	require.True(t, hit)

	status, _ = call(t, env.api.R(), http.MethodPost, "/api/v1/invalidate-cache")
	require.Equal(t, http.StatusOK, status)
	_, hit, err = env.cache.Get(ctx, gradesKey)
	require.NoError(t, err)
	require.False(t, hit)

	status, _ = call(t, env.api.R(), http.MethodGet, "/api/v1/academic/nilai")
	require.Equal(t, http.StatusOK, status)
	_, hit, err = env.cache.Get(ctx, gradesKey)
	require.NoError(t, err)
	require.True(t, hit)

	// logging out drops the identity's cache as well
	status, _ = call(t, env.api.R(), http.MethodPost, "/api/v1/logout")
	require.Equal(t, http.StatusOK, status)
	_, hit, err = env.cache.Get(ctx, gradesKey)
	require.NoError(t, err)
	require.False(t, hit)

	status, _ = call(t, env.api.R(), http.MethodGet, "/api/v1/academic/nilai")
	require.Equal(t, http.StatusUnauthorized, status)

	// logging out without a session still succeeds
	status, _ = call(t, env.api.R(), http.MethodPost, "/api/v1/logout")
	require.Equal(t, http.StatusOK, status)
}

func TestDefaultTerm(t *testing.T) {
	testCases := []struct {
		name     string
		opts     testutil.FakePortalOptions
		semester string
		week     string
	}{
		{name: "reported at login", opts: testutil.FakePortalOptions{}, semester: "2", week: "3"},
		// march 2024 falls in the odd term
		{name: "calendar fallback", opts: testutil.FakePortalOptions{OmitCurrentTerm: true}, semester: "1", week: "1"},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			env := setupPortal(t, test.opts)
			env.login(t)

			status, body := call(t, env.api.R(), http.MethodGet, "/api/v1/academic/logbook")
			require.Equal(t, http.StatusOK, status, body.Message)
			query := env.portal.LastRequest("/entry_logbook_kp1.php").Query
			require.Equal(t, "2024", query.Get("valTahun"))
			require.Equal(t, test.semester, query.Get("valSemester"))
			require.Equal(t, test.week, query.Get("valMinggu"))

			// an explicit week still wins over the default
			status, _ = call(t, env.api.R(), http.MethodGet, "/api/v1/academic/logbook?week=5")
			require.Equal(t, http.StatusOK, status)
			require.Equal(t, "5", env.portal.LastRequest("/entry_logbook_kp1.php").Query.Get("valMinggu"))
		})
	}
}
