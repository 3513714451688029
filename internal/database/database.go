// package database provides the relational store: sqlite by default,
// postgresql when the URL says so.
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/blockedby/channel-map/internal/models"
)

// DB wraps a GORM instance and, for postgresql, the pgx connection pool
// GORM runs on.
type DB struct {
	Pool *pgxpool.Pool // nil for sqlite
	GORM *gorm.DB
}

// IsPostgres reports whether url points to a postgresql server.
func IsPostgres(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

// Dialector picks the gorm dialector for url. Anything that is not a
// postgres URL is treated as a sqlite file path (or ":memory:").
func Dialector(url string) gorm.Dialector {
	if IsPostgres(url) {
		return postgres.Open(url)
	}
	return sqlite.Open(url)
}

// poolDialector runs gorm on an existing pgx pool, so postgres has a
// single pool.
func poolDialector(pool *pgxpool.Pool) gorm.Dialector {
	return postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)})
}

// New opens the database and migrates the schema.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	db := &DB{}

	if IsPostgres(databaseURL) {
		config, err := pgxpool.ParseConfig(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}

		pool, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("create connection pool: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		db.Pool = pool
	}

	dialector := Dialector(databaseURL)
	if db.Pool != nil {
		dialector = poolDialector(db.Pool)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	db.GORM = gormDB

	if err := Migrate(gormDB); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the application tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Group{}, &models.GroupHistory{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Close releases the sql.DB, then the pool under it.
func (db *DB) Close() {
	if db.GORM != nil {
		if sqlDB, err := db.GORM.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks if the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if db.Pool != nil {
		return db.Pool.Ping(ctx)
	}
	sqlDB, err := db.GORM.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
