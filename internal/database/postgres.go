package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// NewPostgresDB connects to PostgreSQL through the pgx stdlib driver and
// runs migrations. Gallery transactions run at SERIALIZABLE isolation and
// are retried on serialization failures.
func NewPostgresDB(dsn string) (*SQLDB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLDB{db: db, d: dialect{
		name:       "postgres",
		numbered:   true,
		txOptions:  &sql.TxOptions{Isolation: sql.LevelSerializable},
		retryable:  isPgRetryable,
		uniqueViol: isPgUniqueViolation,
	}}, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isPgUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

func isPgRetryable(err error) bool {
	switch pgCode(err) {
	case pgSerializationFailure, pgDeadlockDetected:
		return true
	}
	return false
}
