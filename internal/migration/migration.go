package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	voucherdomain "github.com/smallbiznis/bookkeeper/internal/voucher/domain"
	"gorm.io/gorm"
)

const (
	migrationsDir        = "migrations"
	legacyVoucherNoIndex = "idx_vouchers_voucher_no"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table the books need, in dependency order.
func Models() []any {
	return []any{
		&accountdomain.AccountGroup{},
		&accountdomain.Ledger{},
		&voucherdomain.Sequence{},
		&voucherdomain.Voucher{},
		&voucherdomain.Entry{},
		&auditdomain.AuditLog{},
	}
}

// Migrate brings the schema up to date. Postgres runs the versioned SQL
// migrations; other dialects are created from the models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		return AutoMigrate(conn)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	// Voucher numbers used to be unique across types.
	m := conn.Migrator()
	if m.HasIndex(&voucherdomain.Voucher{}, legacyVoucherNoIndex) {
		if err := m.DropIndex(&voucherdomain.Voucher{}, legacyVoucherNoIndex); err != nil {
			return fmt.Errorf("drop %s: %w", legacyVoucherNoIndex, err)
		}
	}
	return nil
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}
