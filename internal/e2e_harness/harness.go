package e2e_harness

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/lychee-technology/catalogue"
	"github.com/lychee-technology/catalogue/factory"
	"github.com/lychee-technology/catalogue/internal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgUser     = "postgres"
	pgPassword = "password"
	pgDatabase = "catalogue"

	s3AccessKey = "minio"
	s3SecretKey = "minio123"
	s3Bucket    = "catalogue-e2e"
)

// TestHarness holds lightweight runners for dependencies used by E2E tests.
type TestHarness struct {
	PGContainer testcontainers.Container
	PGDSN       string
	PGDB        *sql.DB
	PGHost      string
	PGPort      int
	S3Container testcontainers.Container
	S3Endpoint  string
}

// StartPostgres starts a postgres container and returns a DSN.
// It waits until Postgres is reachable. Caller is responsible for calling StopPostgres.
func (h *TestHarness) StartPostgres(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_USER":     pgUser,
			"POSTGRES_DB":       pgDatabase,
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", err
	}
	h.PGContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	mapped, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", err
	}
	h.PGHost = host
	h.PGPort = mapped.Int()
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", pgUser, pgPassword, host, mapped.Port(), pgDatabase)
	h.PGDSN = dsn

	// lib/pq handle for raw assertions, independent of the pgx stores
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return "", err
	}
	deadline := time.Now().Add(20 * time.Second)
	for {
		if err := db.PingContext(ctx); err == nil {
			h.PGDB = db
			return dsn, nil
		}
		if time.Now().After(deadline) {
			db.Close()
			return "", fmt.Errorf("postgres did not become ready: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// StopPostgres stops the Postgres container and closes DB handle.
func (h *TestHarness) StopPostgres(ctx context.Context) error {
	if h.PGDB != nil {
		h.PGDB.Close()
		h.PGDB = nil
	}
	if h.PGContainer != nil {
		if err := h.PGContainer.Terminate(ctx); err != nil {
			return err
		}
		h.PGContainer = nil
	}
	return nil
}

// StartS3 starts a MinIO container and returns its endpoint.
func (h *TestHarness) StartS3(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     s3AccessKey,
			"MINIO_ROOT_PASSWORD": s3SecretKey,
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", err
	}
	h.S3Container = container
	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	mapped, err := container.MappedPort(ctx, "9000")
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("http://%s:%s", host, mapped.Port())
	h.S3Endpoint = endpoint
	return endpoint, nil
}

// StopS3 stops the MinIO container.
func (h *TestHarness) StopS3(ctx context.Context) error {
	if h.S3Container != nil {
		if err := h.S3Container.Terminate(ctx); err != nil {
			return err
		}
		h.S3Container = nil
	}
	return nil
}

// Config returns a catalogue configuration pointing at the running
// containers. S3 storage is enabled only when StartS3 has run.
func (h *TestHarness) Config() *catalogue.Config {
	cfg := catalogue.DefaultConfig()
	cfg.Database.Host = h.PGHost
	cfg.Database.Port = h.PGPort
	cfg.Database.Database = pgDatabase
	cfg.Database.Username = pgUser
	cfg.Database.Password = pgPassword
	cfg.Database.MaxConnections = 5
	cfg.Database.MaxIdleConns = 1
	if h.S3Endpoint != "" {
		cfg.Storage.Enabled = true
		cfg.Storage.Bucket = s3Bucket
		cfg.Storage.Endpoint = h.S3Endpoint
		cfg.Storage.AccessKey = s3AccessKey
		cfg.Storage.SecretKey = s3SecretKey
		cfg.Storage.UsePathStyle = true
	}
	return cfg
}

// Catalogue creates the schema and bucket and returns a catalogue wired to
// the containers. The returned cleanup closes the pool.
func (h *TestHarness) Catalogue(ctx context.Context) (*factory.Catalogue, func(), error) {
	cfg := h.Config()
	pool, err := factory.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := internal.EnsureSchema(ctx, pool, cfg.Database.TableNames); err != nil {
		pool.Close()
		return nil, nil, err
	}

	var files catalogue.FileStore
	if cfg.Storage.Enabled {
		store, err := internal.NewS3FileStore(ctx, cfg.Storage)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		files = store
	}

	c, err := factory.NewCatalogue(ctx, cfg, pool, files)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return c, pool.Close, nil
}
