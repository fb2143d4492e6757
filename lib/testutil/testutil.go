package testutil

import (
	"database/sql"
	"fmt"
	configlibsql "onlinemis-backend/lib/configutil/libsql"
	"onlinemis-backend/lib/telemetry"
	"testing"
)

type ServiceParams struct {
	Name string
	// DbSchema is applied to a fresh database, none is opened when it is empty.
	DbSchema string
	// DbPath defaults to `:memory:`, `<dev_state>` paths are resolved.
	DbPath string
}

type ServiceResult struct {
	DB *sql.DB
}

// SetupService prepares telemetry for a package's tests and opens its
// database the same way cmd/server does.
func SetupService(t testing.TB, params ServiceParams) (ServiceResult, func()) {
	cleanup := telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name))
	if params.DbSchema == "" {
		return ServiceResult{}, cleanup
	}

	dbpath := params.DbPath
	if dbpath == "" {
		dbpath = ":memory:"
	}
	db, err := configlibsql.Struct{File: dbpath}.OpenDB(params.DbSchema)
	if err != nil {
		t.Fatal(err)
	}

	return ServiceResult{DB: db}, func() {
		db.Close()
		cleanup()
	}
}
