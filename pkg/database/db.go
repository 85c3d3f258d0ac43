// Package database owns the MySQL connection: pool settings, liveness and
// the standard read/write timeouts that query layers wrap around their
// contexts. Schema and statements live with their consumers (internal/store,
// pkg/events).
package database

import (
	"context"
	"database/sql"
	"time"

	"serp-similarity/internal/constants"
	"serp-similarity/pkg/config"

	_ "github.com/go-sql-driver/mysql"
)

type DB struct {
	conn         *sql.DB
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// New opens a connection with default pool settings and verifies it with a
// ping. The DSN must carry parseTime=true so DATETIME columns scan into
// time.Time.
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("mysql", databaseURL)
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(10 * time.Minute)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	return &DB{
		conn:         conn,
		readTimeout:  constants.DBReadTimeoutDefault,
		writeTimeout: constants.DBWriteTimeoutDefault,
	}, nil
}

// NewWithConfig opens a connection using pool and timeout settings from the
// application config.
func NewWithConfig(databaseURL string, cfg *config.Config) (*DB, error) {
	conn, err := sql.Open("mysql", databaseURL)
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(cfg.DBMaxOpenConns)
	conn.SetMaxIdleConns(cfg.DBMaxIdleConns)
	conn.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Minute)
	conn.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTime) * time.Minute)

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	rt := cfg.DBReadTimeout
	if rt == 0 {
		rt = constants.DBReadTimeoutDefault
	}
	wt := cfg.DBWriteTimeout
	if wt == 0 {
		wt = constants.DBWriteTimeoutDefault
	}

	return &DB{
		conn:         conn,
		readTimeout:  rt,
		writeTimeout: wt,
	}, nil
}

// Conn exposes the raw pool for query layers.
func (db *DB) Conn() *sql.DB { return db.conn }

// Close closes the connection pool.
func (db *DB) Close() error { return db.conn.Close() }

// WithReadTimeout wraps ctx with the standard read timeout.
func (db *DB) WithReadTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, db.readTimeout)
}

// WithWriteTimeout wraps ctx with the standard write timeout.
func (db *DB) WithWriteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, db.writeTimeout)
}

// PingContext verifies the connection is alive; health checks call this.
func (db *DB) PingContext(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
