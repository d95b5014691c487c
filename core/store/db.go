package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"complaintdesk/config"
	"complaintdesk/core/utils"

	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// NewDB opens the configured database. sqlite is limited to one connection so
// that transactions serialize instead of failing with SQLITE_BUSY.
func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	if cfg.IsPostgres() {
		db, err := sql.Open("pgx", cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
		if err := pingDB(db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Printf("connected to postgres")
		return db, nil
	}
	path := strings.TrimPrefix(cfg.DBURL, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", sqliteDSN(cfg.DBURL))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := pingDB(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Printf("opened sqlite database %s", path)
	return db, nil
}

func sqliteDSN(raw string) string {
	base, query, _ := strings.Cut(raw, "?")
	vals, _ := url.ParseQuery(query)
	if !hasPragma(vals, "busy_timeout") {
		vals.Add("_pragma", "busy_timeout(5000)")
	}
	if !hasPragma(vals, "foreign_keys") {
		vals.Add("_pragma", "foreign_keys(1)")
	}
	if !strings.HasPrefix(base, "file:") {
		base = "file:" + base
	}
	return base + "?" + vals.Encode()
}

func hasPragma(vals url.Values, name string) bool {
	for _, p := range vals["_pragma"] {
		if strings.HasPrefix(strings.ToLower(p), name) {
			return true
		}
	}
	return false
}

func pingDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func isPostgresDB(db *sql.DB) bool {
	_, ok := db.Driver().(*stdlib.Driver)
	return ok
}

// binder rewrites ? placeholders to $n for postgres.
type binder bool

func newBinder(db *sql.DB) binder { return binder(isPostgresDB(db)) }

func (b binder) q(query string) string {
	if !b {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
