//go:build integration

// Package integration wires several components together. Tests needing
// PostgreSQL or Redis skip when the service is unreachable.
//
// Run with:
//
//	go test -v -tags=integration ./test/integration/...
package integration

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/redis"
)

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "symptomsearch_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "symptomsearch"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func testRedisConfig() config.RedisConfig {
	return config.RedisConfig{
		Enabled:  true,
		Addr:     envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
		DB:       envOrDefaultInt("TEST_REDIS_DB", 15),
		PoolSize: 5,
		CacheTTL: time.Minute,
	}
}

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(context.Background(), testPostgresConfig())
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func skipIfNoRedis(t *testing.T) *pkgredis.Client {
	t.Helper()
	client, err := pkgredis.NewClient(context.Background(), testRedisConfig())
	if err != nil {
		t.Skipf("skipping: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
