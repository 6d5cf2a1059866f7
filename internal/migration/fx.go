package migration

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/internal/config"
	"github.com/smallbiznis/bookkeeper/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, clk clock.Clock, log *zap.Logger) error {
		if !cfg.DBAutoMigrate {
			return nil
		}
		if err := Migrate(conn); err != nil {
			return err
		}
		if err := seed.EnsureDefaults(context.Background(), conn, node, clk.Now()); err != nil {
			return err
		}
		log.Named("migration").Info("schema ready", zap.String("dialect", conn.Dialector.Name()))
		return nil
	}),
)
