package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lychee-technology/catalogue/factory"
	"github.com/lychee-technology/catalogue/internal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newInitDBCommand() *cobra.Command {
	var printOnly, ensureBucket bool
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the catalogue tables and indexes",
		Long: `Create the catalogue tables and indexes in PostgreSQL. Statements are
idempotent and safe to run against an initialized database.

With --ensure-bucket and S3 storage enabled, the attribute file bucket is
created as well.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if printOnly {
				for _, stmt := range internal.SchemaStatements(cfg.Database.TableNames) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", strings.TrimSpace(stmt))
				}
				return nil
			}

			ctx := cmd.Context()
			pool, err := factory.NewPool(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := internal.EnsureSchema(ctx, pool, cfg.Database.TableNames); err != nil {
				return err
			}
			zap.S().Infow("database initialized", "database", cfg.Database.Database)

			if ensureBucket && cfg.Storage.Enabled {
				store, err := internal.NewS3FileStore(ctx, cfg.Storage)
				if err != nil {
					return err
				}
				if err := store.EnsureBucket(ctx); err != nil {
					return err
				}
				zap.S().Infow("bucket ready", "bucket", cfg.Storage.Bucket)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database initialized successfully.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the DDL instead of executing it")
	cmd.Flags().BoolVar(&ensureBucket, "ensure-bucket", false, "create the S3 bucket when storage is enabled")
	return cmd
}

func newHealthCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the database and file storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if err := internal.PostgresHealthCheck(ctx, internal.PostgresDSN(cfg.Database), timeout); err != nil {
				return err
			}
			fmt.Fprintln(out, "postgres: ok")

			pool, err := factory.NewPool(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()
			missing, err := internal.MissingTables(ctx, pool, cfg.Database.TableNames)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				return fmt.Errorf("missing tables: %s (run init-db)", strings.Join(missing, ", "))
			}
			fmt.Fprintln(out, "tables: ok")

			if !cfg.Storage.Enabled {
				fmt.Fprintln(out, "s3: disabled")
				return nil
			}
			if err := internal.S3HealthCheck(ctx, cfg.Storage, timeout); err != nil {
				return err
			}
			fmt.Fprintln(out, "s3: ok")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "timeout for each check")
	return cmd
}

func newExportSchemaCommand() *cobra.Command {
	var productTypeID int64
	cmd := &cobra.Command{
		Use:   "export-schema",
		Short: "Print the JSON schema of a product type's attribute payload",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if productTypeID <= 0 {
				return fmt.Errorf("--product-type is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := factory.NewPool(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()
			c, err := factory.NewCatalogue(ctx, cfg, pool, nil)
			if err != nil {
				return err
			}
			schema, err := c.Manager.ProductTypeSchema(ctx, productTypeID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(schema)
		},
	}
	cmd.Flags().Int64Var(&productTypeID, "product-type", 0, "product type id")
	return cmd
}

func newReservedWordsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reserved-words",
		Short: "List the identifiers rejected as attribute codes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			for _, word := range cfg.Attributes.Reserved().Words() {
				fmt.Fprintln(cmd.OutOrStdout(), word)
			}
			return nil
		},
	}
}
