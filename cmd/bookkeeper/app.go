package main

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeper/internal/account"
	"github.com/smallbiznis/bookkeeper/internal/audit"
	"github.com/smallbiznis/bookkeeper/internal/balance"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/internal/config"
	"github.com/smallbiznis/bookkeeper/internal/observability"
	"github.com/smallbiznis/bookkeeper/internal/report"
	"github.com/smallbiznis/bookkeeper/internal/voucher"
	"github.com/smallbiznis/bookkeeper/pkg/db"
	"go.uber.org/fx"
)

// infrastructure is everything a command needs to reach the database.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

func domains() fx.Option {
	return fx.Options(
		audit.Module,
		account.Module,
		voucher.Module,
		balance.Module,
		report.Module,
	)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNode, err)
	}
	return node, nil
}

// runOnce starts the app, which runs its invokes, and stops it again.
func runOnce(ctx context.Context, opts ...fx.Option) error {
	app := fx.New(append(opts, fx.NopLogger)...)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(ctx)
}
