// Package database provides the PostgreSQL repositories and the Redis store
// used by ScholarHunter.
//
// PostgreSQL holds users, profiles, scholarships, applications and documents.
// Redis holds refresh tokens, the access token blacklist, device sessions,
// rate limit counters and the offline notification mailbox.
//
// Repositories return ErrNotFound, ErrDuplicate, ErrInvalidReference or
// ErrStale so the service layer can classify failures with errors.Is without
// knowing about lib/pq.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/pkg/config"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound is returned when a query matched no row.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("record already exists")

	// ErrInvalidReference is returned when a foreign key points nowhere,
	// for example an application for a scholarship that does not exist.
	ErrInvalidReference = errors.New("referenced record does not exist")

	// ErrStale is returned by conditional updates when the row changed
	// after it was read.
	ErrStale = errors.New("record was modified concurrently")
)

// TxFunc runs inside a transaction opened by WithTransaction.
type TxFunc func(tx *sql.Tx) error

// Querier is satisfied by both *sql.DB and *sql.Tx so query helpers work
// inside and outside transactions.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// PostgresDB wraps a pooled PostgreSQL connection. The repository methods
// live in users.go, profiles.go, scholarships.go, applications.go and
// documents.go.
type PostgresDB struct {
	db *sql.DB
}

// NewPostgresDB opens the pool and waits for the server to answer a ping,
// retrying with exponential backoff for up to 30 seconds so the API can
// start before its database container is ready.
//
//	db, err := database.NewPostgresDB(&cfg.Database)
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Database connection failed")
//	}
//	defer db.Close()
func NewPostgresDB(cfg *config.DatabaseConfig) (*PostgresDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var db *sql.DB
	err := utils.Retry(ctx, utils.DatabaseRetryConfig(), func() error {
		conn, err := sql.Open("postgres", cfg.DSN())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to open database connection, retrying...")
			return err
		}

		conn.SetMaxOpenConns(cfg.MaxConns)
		conn.SetMaxIdleConns(cfg.MaxConns / 2)
		conn.SetConnMaxLifetime(time.Hour)

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()

		if err := conn.PingContext(pingCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to ping database, retrying...")
			conn.Close()
			return err
		}

		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Msg("Successfully connected to PostgreSQL")
	return &PostgresDB{db: db}, nil
}

// NewPostgresDBFromConn wraps an existing pool. Tests use it with sqlmock.
func NewPostgresDBFromConn(db *sql.DB) *PostgresDB {
	return &PostgresDB{db: db}
}

// Close releases the pool.
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// Ping is used by the readiness check.
func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// WithTransaction runs fn in a transaction. It commits when fn returns nil
// and rolls back when fn returns an error or panics. Panics are re-raised
// after the rollback.
func (p *PostgresDB) WithTransaction(ctx context.Context, fn TxFunc) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction after panic")
			}
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to rollback transaction")
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PostgreSQL error codes we translate into sentinel errors.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translateError maps driver errors onto the package sentinels and wraps
// everything else with op for context.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, ErrInvalidReference)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// jsonParam converts a raw JSON document into a query parameter. lib/pq
// sends []byte as bytea, which jsonb rejects, so it is passed as text.
func jsonParam(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// textArray returns a parameter for a NOT NULL text[] column.
func textArray(values []string) interface{} {
	if values == nil {
		values = []string{}
	}
	return pq.Array(values)
}

// optionalTextArray is NULL when values is nil so COALESCE keeps the
// current column value.
func optionalTextArray(values []string) interface{} {
	if values == nil {
		return nil
	}
	return pq.Array(values)
}

// rawJSON converts a scanned nullable JSON column.
func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(append([]byte(nil), b...))
}

// rowsAffected reads the affected row count of res.
func rowsAffected(op string, res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}
	return n, nil
}
