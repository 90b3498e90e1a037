package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"vacancy-report/internal/config"

	_ "github.com/lib/pq"
)

const sessionsTable = "report_sessions"

// NewPostgresDB opens and pings the session index database.
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// PostgresKV KV over a single key/value table; expiry is checked on read.
type PostgresKV struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresKV(db *sql.DB) *PostgresKV {
	return &PostgresKV{db: db, now: time.Now}
}

// EnsureSchema creates the sessions table if missing.
func (p *PostgresKV) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+sessionsTable+` (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		expires_at TIMESTAMPTZ
	)`)
	if err != nil {
		return fmt.Errorf("create %s: %w", sessionsTable, err)
	}
	return nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM `+sessionsTable+` WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		key, p.now().UTC(),
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrMiss
		}
		return "", err
	}
	return value, nil
}

func (p *PostgresKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	var expires any
	if ttl > 0 {
		expires = p.now().Add(ttl).UTC()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO `+sessionsTable+` (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expires,
	)
	return err
}

func (p *PostgresKV) Del(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM `+sessionsTable+` WHERE key = $1`, key)
	return err
}

// ScanKeys supports the glob wildcards * and ?.
func (p *PostgresKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT key FROM `+sessionsTable+` WHERE key LIKE $1 ESCAPE '\' AND (expires_at IS NULL OR expires_at > $2) ORDER BY key`,
		globToLike(pattern), p.now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteExpired purges rows past their expiry.
func (p *PostgresKV) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM `+sessionsTable+` WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		p.now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func globToLike(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '\\', '%', '_':
			b.WriteRune('\\')
			b.WriteRune(r)
		case '*':
			b.WriteRune('%')
		case '?':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
