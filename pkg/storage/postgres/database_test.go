package postgres_test

import (
	"os"
	"testing"

	"driftexport/config"
	"driftexport/pkg/storage/postgres"
)

// go test -v --run TestCreateDatabase
func TestCreateDatabase(t *testing.T) {
	if os.Getenv(testDSNEnv) == "" {
		t.Skipf("%s not set", testDSNEnv)
	}

	cfg := config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: os.Getenv("PGPASSWORD"),
		DBName:   "driftexport_test",
		SSLMode:  "disable",
	}

	if err := postgres.CreateDatabase(cfg); err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	// Second call is a no-op.
	if err := postgres.CreateDatabase(cfg); err != nil {
		t.Fatalf("expected existing database to be accepted: %v", err)
	}
}
