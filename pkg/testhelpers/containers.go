// Package testhelpers starts throwaway database servers for integration tests
// and opens adapters without going through the build-tag registry.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ekaya-inc/ekaya-querykit/pkg/config"
)

const (
	MySQLImage    = "mysql:8.4"
	PostgresImage = "postgres:16-alpine"

	testDatabase = "test_data"
	testUser     = "querykit"
	testPassword = "test_password"
)

// TestDB is a running database container and the configuration that reaches it.
type TestDB struct {
	Container testcontainers.Container
	Config    config.DatabaseConfig
}

type sharedDB struct {
	once sync.Once
	db   *TestDB
	err  error
}

var (
	sharedMySQL    sharedDB
	sharedPostgres sharedDB
)

// GetMySQLDB returns a shared MySQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetMySQLDB(t *testing.T) *TestDB {
	t.Helper()
	return sharedMySQL.get(t, setupMySQL)
}

// GetPostgresDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetPostgresDB(t *testing.T) *TestDB {
	t.Helper()
	return sharedPostgres.get(t, setupPostgres)
}

func (s *sharedDB) get(t *testing.T, setup func(context.Context) (*TestDB, error)) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	s.once.Do(func() {
		s.db, s.err = setup(context.Background())
	})

	if s.err != nil {
		t.Fatalf("Failed to setup test database: %v", s.err)
	}
	return s.db
}

func setupMySQL(ctx context.Context) (*TestDB, error) {
	req := testcontainers.ContainerRequest{
		Image:        MySQLImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": testPassword,
			"MYSQL_DATABASE":      testDatabase,
			"MYSQL_USER":          testUser,
			"MYSQL_PASSWORD":      testPassword,
		},
		// The temporary server used during initialization listens on port 0.
		WaitingFor: wait.ForAll(
			wait.ForLog("port: 3306  MySQL Community Server"),
			wait.ForListeningPort("3306/tcp"),
		).WithDeadline(2 * time.Minute),
	}
	return startContainer(ctx, "mysql", "3306", req)
}

func setupPostgres(ctx context.Context) (*TestDB, error) {
	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	return startContainer(ctx, "postgres", "5432", req)
}

func startContainer(ctx context.Context, dbType, port string, req testcontainers.ContainerRequest) (*TestDB, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s container: %w", dbType, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &TestDB{
		Container: container,
		Config: config.DatabaseConfig{
			Type:           dbType,
			Host:           host,
			Port:           mapped.Int(),
			User:           testUser,
			Password:       testPassword,
			Name:           testDatabase,
			SSLMode:        "disable",
			ConnectRetries: 5,
		},
	}, nil
}
