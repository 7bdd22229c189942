package cli

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-session-service/internal/catalog"
	"quiz-session-service/internal/config"
	"quiz-session-service/internal/infra/postgres"
	infraredis "quiz-session-service/internal/infra/redis"
	"quiz-session-service/internal/logging"
)

// NewCatalogCmd groups catalog maintenance commands.
func NewCatalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate, seed and list question catalogs",
	}
	cmd.AddCommand(newCatalogValidateCmd(), newCatalogSeedCmd(configPath), newCatalogListCmd(configPath))
	return cmd
}

func newCatalogValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check catalog files without loading them anywhere",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result *multierror.Error
			for _, path := range args {
				c, err := catalog.LoadFile(path)
				if err != nil {
					result = multierror.Append(result, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s, %d questions)\n", path, c.ID, len(c.Questions))
			}
			return result.ErrorOrNil()
		},
	}
}

func newCatalogSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>...",
		Short: "Validate catalog files and upsert them into Postgres",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format)
			ctx := cmd.Context()

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := runMigrations(ctx, db, logger); err != nil {
				return err
			}

			var cache *infraredis.CatalogRepository
			if cfg.Redis.Addr != "" {
				client := redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				defer client.Close()
				cache = infraredis.NewCatalogRepository(client, nil, 0)
			}

			store := postgres.NewCatalogStore(db)
			for _, path := range args {
				c, err := catalog.LoadFile(path)
				if err != nil {
					return err
				}
				if err := store.SaveCatalog(ctx, c); err != nil {
					return err
				}
				if cache != nil {
					if err := cache.Invalidate(ctx, c.ID); err != nil {
						logger.WithError(err).WithField("catalog_id", c.ID).Warn("invalidate cached catalog")
					}
				}
				logger.WithField("catalog_id", c.ID).Info("catalog seeded")
			}
			return nil
		},
	}
}

func newCatalogListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalogs stored in Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			summaries, err := postgres.NewCatalogStore(db).ListCatalogs(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range summaries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d\n", s.ID, s.Title, s.Difficulty, s.QuestionCount)
			}
			return nil
		},
	}
}
