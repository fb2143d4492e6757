package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	devenv "onlinemis-backend/dev/env"
	cachedb "onlinemis-backend/internal/cache/db"
	sessiondb "onlinemis-backend/internal/sessionstore/db"
	configlibsql "onlinemis-backend/lib/configutil/libsql"
	"os"
	"path/filepath"
)

// CreateServiceDB creates the database cmd/server opens by default, with
// every schema already applied.
func CreateServiceDB() error {
	path, err := devenv.ResolvePath("<dev_state>/onlinemis.db")
	if err != nil {
		return err
	}
	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("database already created at", path)
		return nil
	}

	fmt.Println("creating database at", path)
	db, err := configlibsql.Struct{File: path}.OpenDB(sessiondb.Schema + "\n" + cachedb.Schema)
	if err != nil {
		return err
	}
	return db.Close()
}

// CreateCasTestConfig writes an empty cas_config.json5 for the live login
// test to be filled in by hand.
func CreateCasTestConfig() error {
	path, err := devenv.GetStateFilePath("cas_config.json5")
	if err != nil {
		return err
	}
	_, err = os.Stat(path)
	if err == nil {
		return nil
	}

	contents, err := json.MarshalIndent(devenv.CasTestConfig{}, "", "  ")
	if err != nil {
		return err
	}
	err = os.MkdirAll(filepath.Dir(path), 0777)
	if err != nil {
		return err
	}
	fmt.Println("writing cas test config template to", path)
	return os.WriteFile(path, contents, 0600)
}

func PrintConfigLocations() {
	slog.Info("the live CAS test is skipped until dev/.state/cas_config.json5 holds real credentials, look at the result of skipped tests in `go test -v` for the other config files.")
}
