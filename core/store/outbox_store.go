package store

import (
	"context"
	"database/sql"
	"time"

	"complaintdesk/core/notify"
)

type OutboxStore interface {
	PendingNotifications(ctx context.Context, now time.Time, maxAttempts, limit int) ([]notify.Record, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string, nextAttempt time.Time) error
	ListForRecipient(ctx context.Context, recipient string, limit int) ([]notify.Record, error)
}

type outboxStore struct {
	db *sql.DB
	b  binder
}

func NewOutboxStore(db *sql.DB) OutboxStore {
	return &outboxStore{db: db, b: newBinder(db)}
}

func insertIntentsTx(ctx context.Context, tx *sql.Tx, b binder, intents []notify.Intent) error {
	for _, in := range intents {
		if _, err := tx.ExecContext(ctx, b.q(`
			INSERT INTO notification_outbox(id, complaint_id, kind, recipient, address, subject, body, created_at, attempts, next_attempt_at, delivered_at, last_error)
			VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`),
			in.ID, in.ComplaintID, string(in.Kind), in.Recipient, in.Address, in.Subject, in.Body, in.CreatedAt.UTC(), 0, in.CreatedAt.UTC(), nil, ""); err != nil {
			return err
		}
	}
	return nil
}

const outboxColumns = `id, complaint_id, kind, recipient, address, subject, body, created_at, attempts, delivered_at, last_error`

// PendingNotifications returns undelivered rows that are due and have not
// used up their attempts, oldest first.
func (s *outboxStore) PendingNotifications(ctx context.Context, now time.Time, maxAttempts, limit int) ([]notify.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return s.query(ctx, `
		SELECT `+outboxColumns+` FROM notification_outbox
		WHERE delivered_at IS NULL AND next_attempt_at <= ? AND attempts < ?
		ORDER BY created_at, id
		LIMIT ?`, now.UTC(), maxAttempts, limit)
}

func (s *outboxStore) ListForRecipient(ctx context.Context, recipient string, limit int) ([]notify.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx, `
		SELECT `+outboxColumns+` FROM notification_outbox
		WHERE recipient=?
		ORDER BY created_at DESC, id
		LIMIT ?`, recipient, limit)
}

func (s *outboxStore) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.b.q(`
		UPDATE notification_outbox SET delivered_at=?, attempts=attempts+1, last_error=''
		WHERE id=?`), at.UTC(), id)
	return err
}

func (s *outboxStore) MarkFailed(ctx context.Context, id string, errMsg string, nextAttempt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.b.q(`
		UPDATE notification_outbox SET attempts=attempts+1, last_error=?, next_attempt_at=?
		WHERE id=?`), errMsg, nextAttempt.UTC(), id)
	return err
}

func (s *outboxStore) query(ctx context.Context, query string, args ...any) ([]notify.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.b.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []notify.Record
	for rows.Next() {
		var (
			r         notify.Record
			kind      string
			delivered sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.ComplaintID, &kind, &r.Recipient, &r.Address, &r.Subject, &r.Body, &r.CreatedAt, &r.Attempts, &delivered, &r.LastError); err != nil {
			return nil, err
		}
		r.Kind = notify.Kind(kind)
		r.CreatedAt = r.CreatedAt.UTC()
		r.DeliveredAt = timePtr(delivered)
		res = append(res, r)
	}
	return res, rows.Err()
}
