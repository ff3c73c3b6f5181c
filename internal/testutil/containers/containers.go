//go:build integration

// Package containers starts the PostgreSQL and Redis containers used by
// integration tests. Only files built with the "integration" tag import
// it:
//
//	result := containers.StartPostgres(t)
//	client, err := postgres.NewClient(ctx, postgres.Config{URL: postgres.Secret(result.ConnString)})
//
// Containers are terminated through t.Cleanup.
package containers

import (
	"context"
	"testing"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// Images and credentials for the test containers.
const (
	PostgresImage    = "docker.io/postgres:16-alpine"
	PostgresDatabase = "whisper_test"
	PostgresUser     = "whisper"
	PostgresPassword = "whisper-test"

	RedisImage = "docker.io/redis:7-alpine"
)

// Result is a running container's connection string.
type Result struct {
	ConnString string
}

// StartPostgres starts PostgreSQL 16 and returns a connection string with
// sslmode=disable.
func StartPostgres(t testing.TB) Result {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		PostgresImage,
		tcpostgres.WithDatabase(PostgresDatabase),
		tcpostgres.WithUsername(PostgresUser),
		tcpostgres.WithPassword(PostgresPassword),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	return Result{ConnString: connStr}
}

// StartRedis starts Redis 7 without authentication.
func StartRedis(t testing.TB) Result {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, RedisImage)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis connection string: %v", err)
	}
	return Result{ConnString: connStr}
}
