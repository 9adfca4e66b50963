package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver, registered as "pgx"
	"github.com/jinzhu/gorm"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"catering/internal/config"
	"catering/internal/models"
)

// Store is the gorm-backed persistence for orders, recipes, inventory,
// reservations, pricing and the audit log
type Store struct {
	db *gorm.DB
}

// Open connects to the configured database. SQLite connections are capped
// at one so transactions serialize instead of failing with "database is locked".
func Open(cfg config.DatabaseConfig) (*Store, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch cfg.Driver {
	case "postgres":
		var sqlDB *sql.DB
		sqlDB, err = sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		db, err = gorm.Open("postgres", sqlDB)
	case "mysql", "sqlite3":
		db, err = gorm.Open(cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.LogMode(false)
	if cfg.Driver == "sqlite3" {
		db.DB().SetMaxOpenConns(1)
		db.DB().SetMaxIdleConns(1)
	} else {
		maxOpen := cfg.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 10
		}
		db.DB().SetMaxOpenConns(maxOpen)
		db.DB().SetMaxIdleConns(maxOpen)
		db.DB().SetConnMaxLifetime(time.Hour)
	}

	return &Store{db: db}, nil
}

// Migrate creates or updates every table the service uses
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.Recipe{},
		&models.RecipeIngredient{},
		&models.InventoryItem{},
		&models.InventoryTransaction{},
		&models.Hall{},
		&models.Event{},
		&models.LayoutObject{},
		&models.Reservation{},
		&models.DeliveryZone{},
		&models.PromoCode{},
		&models.AuditEntry{},
	).Error
}

// Ping checks the connection
func (s *Store) Ping() error {
	return s.db.DB().Ping()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) lockingSupported() bool {
	return s.db.Dialect().GetName() != "sqlite3"
}

// forUpdate adds a row lock on dialects that support it
func (s *Store) forUpdate(tx *gorm.DB) *gorm.DB {
	if s.lockingSupported() {
		return tx.Set("gorm:query_option", "FOR UPDATE")
	}
	return tx
}

func notFound(err error, format string, args ...interface{}) error {
	if gorm.IsRecordNotFoundError(err) {
		return models.NotFoundf(format, args...)
	}
	return err
}

// inTx runs fn inside a transaction, rolling back on error or panic
func (s *Store) inTx(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	tx := s.db.BeginTx(ctx, nil)
	if tx.Error != nil {
		return tx.Error
	}
	committed := false
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
		if !committed {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit().Error; err != nil {
		return err
	}
	committed = true
	return nil
}
