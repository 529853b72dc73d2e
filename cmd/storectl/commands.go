package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"storefront_back_end/internal/app"
	"storefront_back_end/internal/catalog"
	"storefront_back_end/internal/config"
	"storefront_back_end/internal/database"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/search"
	"storefront_back_end/internal/store"
)

var errDemoMode = errors.New("storectl works on the SQL database, unset DEMO_MODE")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storectl",
		Short:         "Maintenance commands for the storefront back end",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(), seedCmd(), reindexCmd(), promoteCmd())
	return root
}

// openStore loads the configuration and opens the SQL store.
func openStore(ctx context.Context) (*config.Config, *database.Connections, *store.GormStore, error) {
	cfg := config.Load()
	app.InitLogger(cfg.IsProd)
	if cfg.DemoMode {
		return nil, nil, nil, errDemoMode
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	conns, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, conns, conns.Store.(*store.GormStore), nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, conns, st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer conns.Close()
			if err := st.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logrus.Info("✅ schema up to date")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog, coupons and accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, conns, st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer conns.Close()
			if err := st.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			return store.SeedDemo(cmd.Context(), st)
		},
	}
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Push every product to the Elasticsearch index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, conns, st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer conns.Close()
			if conns.Elastic == nil {
				return errors.New("ELASTIC_URL is not set or unreachable")
			}
			es := search.NewElastic(conns.Elastic, cfg.Elastic.Index)
			if err := es.EnsureIndex(cmd.Context()); err != nil {
				return fmt.Errorf("ensure index: %w", err)
			}
			n, err := catalog.NewService(st, es, nil, nil).Reindex(cmd.Context())
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			logrus.WithField("products", n).Info("✅ products indexed")
			return nil
		},
	}
}

func promoteCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "promote <email>",
		Short: "Change the role of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != models.RoleAdmin && role != models.RoleCustomer {
				return fmt.Errorf("unknown role %q", role)
			}
			_, conns, st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer conns.Close()
			u, err := st.GetUserByEmail(cmd.Context(), store.NormalizeEmail(args[0]))
			if err != nil {
				return fmt.Errorf("find %s: %w", args[0], err)
			}
			u.Role = role
			if err := st.UpdateUser(cmd.Context(), u); err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"user_id": u.ID, "role": role}).Info("✅ role updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", models.RoleAdmin, "role to grant (admin or customer)")
	return cmd
}
