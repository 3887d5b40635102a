package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"questionbank/internal/config"
	"questionbank/internal/domain"
)

// Open connects to the database on the given port and verifies the
// connection with a ping bounded by the configured timeout.
func Open(ctx context.Context, cfg config.Database, host string, port int) (*bun.DB, error) {
	timeout := cfg.ConnectTimeout()
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN(host, port)),
		pgdriver.WithTimeout(timeout),
	)
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(8)
	sqldb.SetConnMaxIdleTime(5 * time.Minute)

	db := bun.NewDB(sqldb, pgdialect.New())
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s:%d: %w", host, port, err)
	}
	return db, nil
}

// CreateSchema creates the five tables if they do not exist. Intended for
// tests and local setups; it is not a migration tool.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*domain.Role)(nil),
		(*domain.User)(nil),
		(*domain.QuestionCategory)(nil),
		(*domain.QuestionDifficulty)(nil),
		(*domain.Question)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	return nil
}

// one maps sql.ErrNoRows to a nil result.
func one[T any](v *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func checkInsertedID(resource string, id int) error {
	if id <= 0 {
		return &domain.IDRecoveryError{Resource: resource, Err: fmt.Errorf("non-positive id %d", id)}
	}
	return nil
}

func checkAffected(resource string, id int, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update %s %d: %w", resource, id, domain.ErrNotFound)
	}
	return nil
}
