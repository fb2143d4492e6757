package service

import (
	"context"
	"fmt"
	"net/http"
	"onlinemis-backend/internal/cache"
	"onlinemis-backend/internal/components/assert"
	"onlinemis-backend/internal/components/chrono"
	"onlinemis-backend/internal/components/telemetry"
	"onlinemis-backend/internal/scrapers/onlinemis"
	"onlinemis-backend/internal/sessionstore"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("internal/service")

const (
	report_service_request = "service.request"
	report_service_cache   = "service.cache"
	report_service_session = "service.session"
	report_service_sweep   = "service.sweep"
)

// Cache is the per identity response cache, see cache.SQL.
type Cache interface {
	Get(ctx context.Context, key cache.Key) ([]byte, bool, error)
	Set(ctx context.Context, key cache.Key, value []byte) error
	Delete(ctx context.Context, key cache.Key) error
	InvalidateIdentity(ctx context.Context, identity string) error
}

type Options struct {
	// SessionCookie defaults to "onlinemis_session".
	SessionCookie string
	// SecureCookie marks the session cookie as https only.
	SecureCookie bool
}

// Service is the JSON API in front of the portal. Callers never see the
// upstream session token, they hold an opaque session id that maps to it.
type Service struct {
	client   *onlinemis.Client
	handlers onlinemis.Handlers
	sessions sessionstore.Store
	cache    Cache
	time     chrono.TimeAPI
	validate *validator.Validate
	opts     Options

	tel telemetry.API
}

func NewService(
	client *onlinemis.Client,
	sessions sessionstore.Store,
	cache Cache,
	time chrono.TimeAPI,
	opts Options,
	tel telemetry.API,
) Service {
	assert.NotNil(client)
	assert.NotNil(sessions)
	assert.NotNil(cache)
	assert.NotNil(time)
	assert.NotNil(tel)

	if opts.SessionCookie == "" {
		opts.SessionCookie = "onlinemis_session"
	}

	return Service{
		client:   client,
		handlers: client.Handlers(),
		sessions: sessions,
		cache:    cache,
		time:     time,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
		tel:      telemetry.NewScopedAPI("service", tel),
	}
}

// Handler returns the routes of the API.
func (s Service) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/login", s.Login)
	mux.HandleFunc("POST /api/v1/logout", s.Logout)
	mux.HandleFunc("POST /api/v1/invalidate-cache", s.authenticated(s.InvalidateCache))

	mux.HandleFunc("GET /api/v1/home", s.authenticated(s.Home))
	mux.HandleFunc("GET /api/v1/academic/absen", s.authenticated(s.Attendance))
	mux.HandleFunc("GET /api/v1/academic/jadwal", s.authenticated(s.Schedule))
	mux.HandleFunc("GET /api/v1/academic/nilai", s.authenticated(s.Grades))
	mux.HandleFunc("GET /api/v1/academic/frs", s.authenticated(s.Registration))
	mux.HandleFunc("GET /api/v1/academic/logbook", s.authenticated(s.Logbook))

	mux.HandleFunc("POST /api/v1/academic/logbook", s.authenticated(s.CreateLogbookEntry))
	mux.HandleFunc("DELETE /api/v1/academic/logbook/{id}", s.authenticated(s.DeleteLogbookEntry))
	mux.HandleFunc("POST /api/v1/academic/logbook/upload_screenshot", s.authenticated(s.uploadHandler(onlinemis.UploadScreenshot)))
	mux.HandleFunc("POST /api/v1/academic/logbook/upload_pdf", s.authenticated(s.uploadHandler(onlinemis.UploadProgress)))

	return s.trace(mux)
}

func (s Service) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		defer span.End()
		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
		)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		s.tel.ReportDebug(report_service_request, r.Method, r.URL.Path, time.Since(start).String())
	})
}

type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// SweepCacheDaemon removes expired cache entries every interval until ctx
// is cancelled.
func SweepCacheDaemon(ctx context.Context, c Sweeper, interval time.Duration, tel telemetry.API) {
	assert.Positive("interval", int(interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := c.Sweep(ctx)
			if err != nil {
				tel.ReportWarning(report_service_sweep, err)
				continue
			}
			tel.ReportCount(report_service_sweep, count)
		}
	}
}
