package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Driver names accepted by Open.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Open connects to the history database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver == DriverMySQL {
		normalized, err := normalizeMySQLDSN(dsn)
		if err != nil {
			return nil, err
		}
		dsn = normalized
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// NewRepository returns the repository implementation for driver.
func NewRepository(driver string, db *sql.DB) (Repository, error) {
	switch driver {
	case DriverMySQL:
		return NewMySQLRepository(db), nil
	case DriverPostgres:
		return NewPostgresRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}
}

// Connect opens the database, creates the table if needed and returns the
// repository with a close function.
func Connect(ctx context.Context, driver, dsn string) (Repository, func() error, error) {
	db, err := Open(ctx, driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	repo, err := NewRepository(driver, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create %s table: %w", Table, err)
	}
	return repo, db.Close, nil
}
