// Package testutil provides shared test infrastructure for integration
// tests. It uses testcontainers-go to spin up a real PostgreSQL instance,
// run all migrations, and provide a connection pool for test services.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vitrinecommerce/api/internal/database"
)

// TestDB holds a PostgreSQL test container and connection pool. It is
// shared across tests in a package via TestMain; each test calls Truncate
// to reset state.
type TestDB struct {
	Pool      *pgxpool.Pool
	container testcontainers.Container
}

// SetupTestDB starts a PostgreSQL container, runs all migrations, and
// returns a TestDB with an active connection pool.
func SetupTestDB() (*TestDB, error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("vitrine_test"),
		postgres.WithUsername("vitrine"),
		postgres.WithPassword("vitrine"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("getting connection string: %w", err)
	}

	if err := database.Migrate(connStr); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connecting to test database: %w", err)
	}

	return &TestDB{Pool: pool, container: container}, nil
}

// Close releases the pool and terminates the container.
func (db *TestDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.container != nil {
		db.container.Terminate(context.Background())
	}
}

// Truncate wipes all application tables.
func (db *TestDB) Truncate(t *testing.T) {
	t.Helper()
	_, err := db.Pool.Exec(context.Background(),
		`TRUNCATE products, product_images, news_posts CASCADE`)
	if err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
}
