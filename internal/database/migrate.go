// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtyMigration は前回のマイグレーションが途中で失敗し、手動修復が必要な状態を表す。
var ErrDirtyMigration = errors.New("database is in dirty migration state")

// MigrationStatus はスキーマのバージョン情報。
// Versionが0の場合はマイグレーションが1件も適用されていない。
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// NewMigrator は埋め込みSQLをソースとするmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用し、適用後のバージョンを返す。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(databaseURL string) (uint, error) {
	var status MigrationStatus
	err := withMigrator(databaseURL, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", dirtyAware(err))
		}
		var err error
		status, err = readStatus(m)
		return err
	})
	return status.Version, err
}

// RollbackMigrations は直近のマイグレーションをsteps件だけ取り消し、取り消し後のバージョンを返す。
func RollbackMigrations(databaseURL string, steps int) (uint, error) {
	if steps <= 0 {
		return 0, fmt.Errorf("rollback steps must be positive: %d", steps)
	}

	var status MigrationStatus
	err := withMigrator(databaseURL, func(m *migrate.Migrate) error {
		current, err := readStatus(m)
		if err != nil {
			return err
		}
		if current.Version == 0 {
			status = current
			return nil
		}
		// 適用済みの件数を超える指定は全件の取り消しとして扱う
		if uint(steps) > current.Version {
			steps = int(current.Version)
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to roll back migrations: %w", dirtyAware(err))
		}
		status, err = readStatus(m)
		return err
	})
	return status.Version, err
}

// CurrentMigration は現在のスキーマバージョンを返す。dirty状態でもエラーにはしない。
func CurrentMigration(databaseURL string) (MigrationStatus, error) {
	var status MigrationStatus
	err := withMigrator(databaseURL, func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		status = MigrationStatus{Version: version, Dirty: dirty}
		return nil
	})
	return status, err
}

func withMigrator(databaseURL string, fn func(m *migrate.Migrate) error) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

// readStatus は現在のバージョンを読み取り、dirty状態ならErrDirtyMigrationを返す。
func readStatus(m *migrate.Migrate) (MigrationStatus, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to read migration version: %w", err)
	}
	status := MigrationStatus{Version: version, Dirty: dirty}
	if dirty {
		return status, fmt.Errorf("%w at version %d", ErrDirtyMigration, version)
	}
	return status, nil
}

// dirtyAware はmigrateのdirtyエラーをErrDirtyMigrationに置き換える。
func dirtyAware(err error) error {
	var dirty migrate.ErrDirty
	if errors.As(err, &dirty) {
		return fmt.Errorf("%w at version %d", ErrDirtyMigration, dirty.Version)
	}
	return err
}
