package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/saeid-a/bookingchat/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	testDBOnce      sync.Once
	testDBPool      *pgxpool.Pool
	testDBErr       error
	testDBContainer testcontainers.Container
)

func TestMain(m *testing.M) {
	code := m.Run()

	if testDBPool != nil {
		testDBPool.Close()
	}
	if testDBContainer != nil {
		_ = testDBContainer.Terminate(context.Background())
	}

	os.Exit(code)
}

// integrationTestPool connects to DB_URL when set and otherwise starts a
// throwaway PostgreSQL container. Migrations are applied once per run.
func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("..", "..", ".env"))
	dbURL := os.Getenv("TEST_DB_URL")
	if dbURL == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
	}

	testDBOnce.Do(func() {
		ctx := context.Background()

		if dbURL == "" {
			dbURL, testDBErr = startPostgresContainer(ctx)
			if testDBErr != nil {
				return
			}
		}

		if testDBErr = database.MigrateUp(dbURL); testDBErr != nil {
			return
		}
		testDBPool, testDBErr = database.NewPool(ctx, dbURL)
	})

	if testDBErr != nil {
		t.Skipf("skipping integration test: %v", testDBErr)
	}
	return testDBPool
}

func startPostgresContainer(ctx context.Context) (string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "chat",
				"POSTGRES_PASSWORD": "chat",
				"POSTGRES_DB":       "chat",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return "", fmt.Errorf("start postgres container: %w", err)
	}
	testDBContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("postgres://chat:chat@%s:%s/chat?sslmode=disable", host, port.Port()), nil
}

func createTestUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, name string, role string) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO users (display_name, role)
		VALUES ($1, $2)
		RETURNING id
	`, name, role).Scan(&id)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func createTestBooking(t *testing.T, ctx context.Context, pool *pgxpool.Pool, clientID, providerID int64, status string) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO bookings (client_id, provider_id, status)
		VALUES ($1, $2, $3)
		RETURNING id
	`, clientID, providerID, status).Scan(&id)
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return id
}
