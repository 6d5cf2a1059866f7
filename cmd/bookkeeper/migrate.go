package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/internal/migration"
	"github.com/smallbiznis/bookkeeper/internal/seed"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(),
				infrastructure(),
				fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
					if err := migration.Migrate(conn); err != nil {
						return err
					}
					log.Info("migrations applied", zap.String("dialect", conn.Dialector.Name()))
					return nil
				}),
			)
		},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default account groups, the Cash ledger and voucher counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(),
				infrastructure(),
				fx.Invoke(func(conn *gorm.DB, node *snowflake.Node, clk clock.Clock, log *zap.Logger) error {
					if err := seed.EnsureDefaults(context.Background(), conn, node, clk.Now()); err != nil {
						return err
					}
					log.Info("default books seeded")
					return nil
				}),
			)
		},
	}
}
