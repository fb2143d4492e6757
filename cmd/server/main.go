package main

import (
	"flag"
	"fmt"
	"onlinemis-backend/internal/cache"
	cachedb "onlinemis-backend/internal/cache/db"
	"onlinemis-backend/internal/components/chrono"
	"onlinemis-backend/internal/components/telemetry"
	"onlinemis-backend/internal/scrapers/onlinemis"
	"onlinemis-backend/internal/service"
	"onlinemis-backend/internal/sessionstore"
	sessiondb "onlinemis-backend/internal/sessionstore/db"
	"onlinemis-backend/lib/configutil"
	configlibsql "onlinemis-backend/lib/configutil/libsql"
	"onlinemis-backend/lib/serviceutil"
	"time"
)

type Config struct {
	Port int `json:"port"`
	// PortalUrl and CasUrl default to the production portal.
	PortalUrl         string              `json:"portal_url"`
	CasUrl            string              `json:"cas_url"`
	TimeoutSeconds    int                 `json:"timeout_seconds"`
	RequestsPerSecond float64             `json:"requests_per_second"`
	Database          configlibsql.Struct `json:"database"`
	// SessionStore is either "sql" or "memory".
	SessionStore  string `json:"session_store"`
	SessionCookie string `json:"session_cookie"`
	SecureCookie  bool   `json:"secure_cookie"`
}

var defaultConfig = Config{
	Port:              8000,
	PortalUrl:         onlinemis.DefaultPortalUrl,
	CasUrl:            onlinemis.DefaultCasUrl,
	TimeoutSeconds:    30,
	RequestsPerSecond: 2,
	Database: configlibsql.Struct{
		File: "<dev_state>/onlinemis.db",
	},
	SessionStore:  "sql",
	SessionCookie: "onlinemis_session",
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	output := InitTelemetry(ctx, *verbose)
	defer ShutdownTelemetry()

	cfg, err := configutil.ReadConfigWithDefaults("config.json5", defaultConfig)
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	db, err := cfg.Database.OpenDB(sessiondb.Schema + "\n" + cachedb.Schema)
	if err != nil {
		serviceutil.Fatal("open database", err)
	}
	defer db.Close()

	tel := telemetry.SlogAPI{}
	clock := chrono.NewStandardTime()

	client, err := onlinemis.NewClient(onlinemis.ClientOptions{
		PortalUrl:         cfg.PortalUrl,
		CasUrl:            cfg.CasUrl,
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Output:            output,
	}, tel)
	if err != nil {
		serviceutil.Fatal("init onlinemis client", err)
	}

	var sessions sessionstore.Store
	switch cfg.SessionStore {
	case "sql":
		sessions = sessionstore.NewSQL(db, clock)
	case "memory":
		sessions = sessionstore.NewMemory()
	default:
		serviceutil.Fatal("init session store", fmt.Errorf("unknown session store %q", cfg.SessionStore))
	}

	responses := cache.NewSQL(db, clock)
	go service.SweepCacheDaemon(ctx, responses, time.Hour, tel)

	api := service.NewService(client, sessions, responses, clock, service.Options{
		SessionCookie: cfg.SessionCookie,
		SecureCookie:  cfg.SecureCookie,
	}, tel)

	serviceutil.StartHttpServer(ctx, cfg.Port, api.Handler())
}
