// Package storedb is the optional MS SQL Server connectivity shim that lets
// cmd/fhirsqlgen run a compiled query against the staging table described in
// spec.md §6, for smoke verification only. It is never imported by the pure
// compiler package (spec.md §5): a *sql.DB connection pool is real runtime
// state, and the compiler stays I/O-free.
package storedb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/sirupsen/logrus"
)

// Config holds the connection parameters cmd/fhirsqlgen gathers from flags
// and environment.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Executor runs compiled SQL against a live MS SQL Server instance.
type Executor struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// Connect opens a connection pool to cfg. The logger receives a structured
// entry when each query Run executes starts and another when it completes
// (or fails); pass logrus.StandardLogger() for the CLI's
// default behavior or a discard logger in tests.
func Connect(cfg Config, logger logrus.FieldLogger) (*Executor, error) {
	db, err := sql.Open("sqlserver", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening connection to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Executor{db: db, logger: logger}, nil
}

func buildDSN(cfg Config) string {
	query := url.Values{}
	query.Add("database", cfg.Database)
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Close releases the underlying connection pool.
func (e *Executor) Close() error {
	return e.db.Close()
}

// Result is one Run's output: column names in SELECT order, plus rows of
// driver-decoded values in the same order.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Run executes sqlText (the output of compiler.Compile/GenerateCreateView)
// and buffers every row into a Result. requestID correlates this run's log
// entries; callers that don't care can pass uuid.NewString().
func (e *Executor) Run(ctx context.Context, requestID, sqlText string, args ...any) (*Result, error) {
	log := e.logger.WithField("request_id", requestID)
	log.Info("executing compiled view query")

	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		log.WithError(err).Error("query failed")
		return nil, fmt.Errorf("running compiled query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row %d: %w", len(result.Rows), err)
		}
		result.Rows = append(result.Rows, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	log.WithField("row_count", len(result.Rows)).Info("query complete")
	return result, nil
}
