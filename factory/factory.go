package factory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/catalogue"
	"github.com/lychee-technology/catalogue/internal"
	"go.uber.org/zap"
)

// Pool is the subset of *pgxpool.Pool the catalogue stores use.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Catalogue bundles an AttributeManager with the stores it was built on.
type Catalogue struct {
	Manager    catalogue.AttributeManager
	Options    catalogue.OptionStore
	Attributes catalogue.AttributeStore
	Products   catalogue.ProductStore
	Categories catalogue.CategoryStore
	Entities   catalogue.EntityResolver
	// Files is nil when file storage is disabled.
	Files catalogue.FileStore
}

// NewCatalogue creates a Postgres backed Catalogue. The catalogue tables
// must already exist; EnsureSchema in cmd/tools creates them.
//
// Usage:
//
//	config, _ := catalogue.LoadConfig("CATALOGUE")
//	pool, _ := factory.NewPool(ctx, config.Database)
//	files, _ := factory.NewFileStore(ctx, config.Storage)
//	c, err := factory.NewCatalogue(ctx, config, pool, files)
func NewCatalogue(ctx context.Context, config *catalogue.Config, pool Pool, files catalogue.FileStore) (*Catalogue, error) {
	if config == nil {
		config = catalogue.DefaultConfig()
	}
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}

	missing, err := internal.MissingTables(ctx, pool, config.Database.TableNames)
	if err != nil {
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required tables are missing in the database: %s", strings.Join(missing, ", "))
	}

	store, err := internal.NewPostgresCatalogueStore(pool, config.Database.TableNames)
	if err != nil {
		return nil, err
	}
	values, err := internal.NewPostgresValueStore(pool, config.Database.TableNames, config.Transaction)
	if err != nil {
		return nil, err
	}

	entities := internal.NewEntityRegistry()
	if err := internal.RegisterPostgresEntities(entities, store); err != nil {
		return nil, fmt.Errorf("register entities: %w", err)
	}

	stores := internal.Stores{Attributes: store, Options: store, Values: values, Products: store}
	return assemble(config, stores, store, entities, files)
}

// NewMemoryCatalogue creates a Catalogue held in process memory.
func NewMemoryCatalogue(config *catalogue.Config, files catalogue.FileStore) (*Catalogue, error) {
	if config == nil {
		config = catalogue.DefaultConfig()
	}
	store := internal.NewMemoryStore()
	entities := internal.NewEntityRegistry()
	if err := store.RegisterEntities(entities); err != nil {
		return nil, fmt.Errorf("register entities: %w", err)
	}
	return assemble(config, store.Stores(), store, entities, files)
}

func assemble(
	config *catalogue.Config,
	stores internal.Stores,
	categories catalogue.CategoryStore,
	entities *internal.EntityRegistry,
	files catalogue.FileStore,
) (*Catalogue, error) {
	manager, err := internal.NewAttributeManager(stores, files, entities, config)
	if err != nil {
		return nil, err
	}
	return &Catalogue{
		Manager:    manager,
		Options:    stores.Options,
		Attributes: stores.Attributes,
		Products:   stores.Products,
		Categories: categories,
		Entities:   entities,
		Files:      files,
	}, nil
}

// NewFileStore returns the S3 file store, or nil when storage is disabled.
func NewFileStore(ctx context.Context, cfg catalogue.StorageConfig) (catalogue.FileStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	store, err := internal.NewS3FileStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create file store: %w", err)
	}
	return store, nil
}

// NewPool creates a PostgreSQL connection pool and pings it. With
// UseIAMAuth set, every new connection authenticates with a fresh DSQL
// token instead of the configured password.
func NewPool(ctx context.Context, cfg catalogue.DatabaseConfig) (*pgxpool.Pool, error) {
	if err := internal.ValidatePostgresConfig(cfg); err != nil {
		return nil, err
	}
	poolConfig, err := poolConfigFor(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.UseIAMAuth {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		endpoint := cfg.Host + ":" + strconv.Itoa(cfg.Port)
		poolConfig.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
			token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
			if err != nil {
				return fmt.Errorf("generate dsql auth token: %w", err)
			}
			cc.Password = token
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func poolConfigFor(cfg catalogue.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(internal.PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConnections)
	if cfg.MaxIdleConns > 0 && cfg.MaxIdleConns <= cfg.MaxConnections {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	if cfg.Timeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.Timeout
	}
	return poolConfig, nil
}

// NewLogger builds a zap logger from cfg. "console" selects the development
// encoder; anything else logs JSON.
func NewLogger(cfg catalogue.LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zapCfg.Level = level
	}
	return zapCfg.Build()
}
