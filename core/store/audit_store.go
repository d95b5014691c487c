package store

import (
	"context"
	"database/sql"
	"time"
)

type AuditRecord struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditStore records operator actions that are not complaint transitions
// (logins, snapshot import/export, demo seeding).
type AuditStore interface {
	Log(ctx context.Context, username, action, details string) error
	List(ctx context.Context, limit int) ([]AuditRecord, error)
}

type auditStore struct {
	db *sql.DB
	b  binder
}

func NewAuditStore(db *sql.DB) AuditStore {
	return &auditStore{db: db, b: newBinder(db)}
}

func (s *auditStore) Log(ctx context.Context, username, action, details string) error {
	_, err := s.db.ExecContext(ctx, s.b.q(`
		INSERT INTO audit_log(username, action, details, created_at)
		VALUES(?,?,?,?)`), username, action, details, time.Now().UTC())
	return err
}

func (s *auditStore) List(ctx context.Context, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.b.q(`
		SELECT id, username, action, COALESCE(details, ''), created_at
		FROM audit_log ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []AuditRecord
	for rows.Next() {
		var r AuditRecord
		if err := rows.Scan(&r.ID, &r.Username, &r.Action, &r.Details, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.CreatedAt = r.CreatedAt.UTC()
		res = append(res, r)
	}
	return res, rows.Err()
}
