package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"complaintdesk/core/complaints"
	"complaintdesk/core/notify"
)

const complaintColumns = `id, title, description, created_by, assigned_to, current_handler, status, resolution_note, created_at, updated_at, resolved_at, rejected_at, version`

// ComplaintsStore is the database-backed complaints.Repository.
type ComplaintsStore interface {
	complaints.Repository
	Count(ctx context.Context) (int, error)
}

type complaintsStore struct {
	db       *sql.DB
	b        binder
	idFormat string
	now      func() time.Time
}

func NewComplaintsStore(db *sql.DB, idFormat string) ComplaintsStore {
	return &complaintsStore{db: db, b: newBinder(db), idFormat: idFormat, now: time.Now}
}

func (s *complaintsStore) Insert(ctx context.Context, c *complaints.Complaint, intents []notify.Intent) error {
	if len(c.Logs) == 0 {
		return fmt.Errorf("complaint without log")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	id, err := s.nextComplaintIDTx(ctx, tx)
	if err != nil {
		tx.Rollback()
		return err
	}
	var ordinal int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(ordinal), 0) + 1 FROM complaints`).Scan(&ordinal); err != nil {
		tx.Rollback()
		return err
	}
	c.ID = id
	if err := s.insertComplaintTx(ctx, tx, c, ordinal); err != nil {
		tx.Rollback()
		return err
	}
	for i := range intents {
		intents[i].ComplaintID = id
	}
	if err := insertIntentsTx(ctx, tx, s.b, intents); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *complaintsStore) Append(ctx context.Context, c *complaints.Complaint, entry complaints.LogEntry, expectedVersion int, intents []notify.Intent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, s.b.q(`
		UPDATE complaints SET current_handler=?, status=?, resolution_note=?, updated_at=?, resolved_at=?, rejected_at=?, version=?
		WHERE id=? AND version=?`),
		c.CurrentHandler, string(c.Status), c.ResolutionNote, c.UpdatedAt.UTC(), nullableTime(c.ResolvedAt), nullableTime(c.RejectedAt), c.Version,
		c.ID, expectedVersion)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := versionedUpdateResult(res); err != nil {
		tx.Rollback()
		return err
	}
	if err := insertLogTx(ctx, tx, s.b, c.ID, len(c.Logs)-1, entry); err != nil {
		tx.Rollback()
		return err
	}
	if err := insertIntentsTx(ctx, tx, s.b, intents); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// versionedUpdateResult maps a versioned UPDATE with no matched row to ErrConflict.
func versionedUpdateResult(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return complaints.ErrConflict
	}
	return nil
}

func (s *complaintsStore) Get(ctx context.Context, id string) (*complaints.Complaint, error) {
	row := s.db.QueryRowContext(ctx, s.b.q(`SELECT `+complaintColumns+` FROM complaints WHERE id=?`), id)
	c, err := scanComplaint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	logs, err := s.listLogs(ctx, `WHERE complaint_id=?`, id)
	if err != nil {
		return nil, err
	}
	c.Logs = logs[id]
	return c, nil
}

func (s *complaintsStore) List(ctx context.Context) ([]complaints.Complaint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+complaintColumns+` FROM complaints ORDER BY ordinal`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []complaints.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	logs, err := s.listLogs(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Logs = logs[res[i].ID]
	}
	return res, nil
}

func (s *complaintsStore) LoadAll(ctx context.Context) ([]complaints.Complaint, error) {
	return s.List(ctx)
}

// SaveAll replaces every complaint and log row. Outbox rows and the id
// counter are left alone; ids already present are skipped by Insert.
func (s *complaintsStore) SaveAll(ctx context.Context, items []complaints.Complaint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range []string{`DELETE FROM complaint_log`, `DELETE FROM complaints`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return err
		}
	}
	for i := range items {
		c := &items[i]
		if strings.TrimSpace(c.ID) == "" {
			tx.Rollback()
			return fmt.Errorf("complaint #%d has no id", i+1)
		}
		if err := s.insertComplaintTx(ctx, tx, c, int64(i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("save complaint %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *complaintsStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints`).Scan(&n)
	return n, err
}

func (s *complaintsStore) insertComplaintTx(ctx context.Context, tx *sql.Tx, c *complaints.Complaint, ordinal int64) error {
	if c.Version <= 0 {
		c.Version = len(c.Logs)
	}
	if _, err := tx.ExecContext(ctx, s.b.q(`
		INSERT INTO complaints(id, ordinal, title, description, created_by, assigned_to, current_handler, status, resolution_note, created_at, updated_at, resolved_at, rejected_at, version)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		c.ID, ordinal, c.Title, c.Description, c.CreatedBy, c.AssignedTo, c.CurrentHandler, string(c.Status), c.ResolutionNote,
		c.CreatedAt.UTC(), c.UpdatedAt.UTC(), nullableTime(c.ResolvedAt), nullableTime(c.RejectedAt), c.Version); err != nil {
		return err
	}
	for pos, e := range c.Logs {
		if err := insertLogTx(ctx, tx, s.b, c.ID, pos, e); err != nil {
			return err
		}
	}
	return nil
}

func insertLogTx(ctx context.Context, tx *sql.Tx, b binder, complaintID string, position int, e complaints.LogEntry) error {
	_, err := tx.ExecContext(ctx, b.q(`
		INSERT INTO complaint_log(complaint_id, position, action, updated_by, note, handler, created_at)
		VALUES(?,?,?,?,?,?,?)`),
		complaintID, position, string(e.Action), e.UpdatedBy, e.Note, e.Handler, e.Timestamp.UTC())
	return err
}

func (s *complaintsStore) listLogs(ctx context.Context, where string, args ...any) (map[string][]complaints.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.b.q(`
		SELECT complaint_id, action, updated_by, note, handler, created_at
		FROM complaint_log `+where+`
		ORDER BY complaint_id, position`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string][]complaints.LogEntry{}
	for rows.Next() {
		var (
			id     string
			action string
			e      complaints.LogEntry
		)
		if err := rows.Scan(&id, &action, &e.UpdatedBy, &e.Note, &e.Handler, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Action = complaints.Action(action)
		e.Timestamp = e.Timestamp.UTC()
		res[id] = append(res[id], e)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComplaint(row rowScanner) (*complaints.Complaint, error) {
	var (
		c        complaints.Complaint
		status   string
		resolved sql.NullTime
		rejected sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.CreatedBy, &c.AssignedTo, &c.CurrentHandler, &status, &c.ResolutionNote,
		&c.CreatedAt, &c.UpdatedAt, &resolved, &rejected, &c.Version); err != nil {
		return nil, err
	}
	c.Status = complaints.Status(status)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	c.ResolvedAt = timePtr(resolved)
	c.RejectedAt = timePtr(rejected)
	return &c, nil
}

// nextComplaintIDTx draws from the persistent counter until it yields an id
// that is not taken yet.
func (s *complaintsStore) nextComplaintIDTx(ctx context.Context, tx *sql.Tx) (string, error) {
	year := s.now().UTC().Year()
	for {
		var seq int64
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO complaint_counters(name, seq)
			VALUES('complaints', 1)
			ON CONFLICT (name)
			DO UPDATE SET seq = complaint_counters.seq + 1
			RETURNING seq
		`).Scan(&seq); err != nil {
			return "", err
		}
		id := buildComplaintID(s.idFormat, year, seq)
		var exists int
		err := tx.QueryRowContext(ctx, s.b.q(`SELECT 1 FROM complaints WHERE id=?`), id).Scan(&exists)
		if err == sql.ErrNoRows {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
}

var seqToken = regexp.MustCompile(`\{seq(?::(\d+))?\}`)

func buildComplaintID(format string, year int, seq int64) string {
	if strings.TrimSpace(format) == "" {
		format = "c{seq}"
	}
	out := strings.ReplaceAll(format, "{year}", fmt.Sprintf("%d", year))
	return seqToken.ReplaceAllStringFunc(out, func(token string) string {
		m := seqToken.FindStringSubmatch(token)
		if len(m) == 2 && m[1] != "" {
			width := 0
			_, _ = fmt.Sscanf(m[1], "%d", &width)
			if width > 0 {
				return fmt.Sprintf("%0*d", width, seq)
			}
		}
		return fmt.Sprintf("%d", seq)
	})
}
