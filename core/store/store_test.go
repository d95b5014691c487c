package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"complaintdesk/config"
	"complaintdesk/core/complaints"
	"complaintdesk/core/directory"
	"complaintdesk/core/notify"
	"complaintdesk/core/routing"
	"complaintdesk/core/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.AppConfig{DBDriver: "sqlite", DBURL: filepath.Join(t.TempDir(), "complaints.db")}
	logger := utils.NewLoggerWithOptions(nil, "error", "text")
	db, err := NewDB(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, ApplyMigrations(context.Background(), db, logger))
	return db
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, ApplyMigrations(ctx, db, nil))

	states, err := MigrationStatus(ctx, db)
	require.NoError(t, err)
	require.Len(t, states, 2)
	for _, s := range states {
		assert.True(t, s.Applied, s.Name)
	}
	v, err := SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}

func TestSaveAllLoadAllRoundTrip(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	s := NewComplaintsStore(db, "c{seq}")

	demo := complaints.DemoComplaints()
	require.NoError(t, s.SaveAll(ctx, demo))
	first, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, first, 5)

	want, _ := json.Marshal(demo)
	got, _ := json.Marshal(first)
	assert.JSONEq(t, string(want), string(got))

	require.NoError(t, s.SaveAll(ctx, first))
	second, err := s.LoadAll(ctx)
	require.NoError(t, err)
	again, _ := json.Marshal(second)
	assert.Equal(t, string(got), string(again), "SaveAll(LoadAll()) leaves storage unchanged")

	for i := range second {
		require.NoError(t, complaints.Verify(&second[i]))
	}
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestInsertSkipsTakenIDsAndWritesOutbox(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	s := NewComplaintsStore(db, "c{seq}")
	outbox := NewOutboxStore(db)
	require.NoError(t, s.SaveAll(ctx, complaints.DemoComplaints()))

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c := &complaints.Complaint{
		Title: "Heater", Description: "Room 12", CreatedBy: "u2", AssignedTo: "u4", CurrentHandler: "u4",
		Status: complaints.StatusPending, CreatedAt: now, UpdatedAt: now, Version: 1,
		Logs: []complaints.LogEntry{{Action: complaints.ActionCreated, UpdatedBy: "u2", Timestamp: now, Handler: "u4"}},
	}
	intents := []notify.Intent{notify.NewIntent(notify.KindAssigned, "", "u4", "johnson@college.edu", c.Title, now)}
	require.NoError(t, s.Insert(ctx, c, intents))
	assert.Equal(t, "c6", c.ID)

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 6)
	assert.Equal(t, "c6", items[5].ID, "creation order")

	pending, err := outbox.PendingNotifications(ctx, now, 5, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c6", pending[0].ComplaintID)
	assert.Equal(t, "u4", pending[0].Recipient)
	assert.Equal(t, "johnson@college.edu", pending[0].Address)
}

func TestBuildComplaintID(t *testing.T) {
	assert.Equal(t, "c7", buildComplaintID("c{seq}", 2025, 7))
	assert.Equal(t, "CMP-2025-0007", buildComplaintID("CMP-{year}-{seq:04}", 2025, 7))
	assert.Equal(t, "c12", buildComplaintID("", 2025, 12))
}

type stubResult struct {
	affected int64
	err      error
}

func (r stubResult) LastInsertId() (int64, error) { return 0, nil }
func (r stubResult) RowsAffected() (int64, error) { return r.affected, r.err }

func TestVersionedUpdateResult(t *testing.T) {
	assert.NoError(t, versionedUpdateResult(stubResult{affected: 1}))
	assert.True(t, errors.Is(versionedUpdateResult(stubResult{}), complaints.ErrConflict))

	driverErr := errors.New("rows affected not supported")
	err := versionedUpdateResult(stubResult{err: driverErr})
	assert.True(t, errors.Is(err, driverErr))
	assert.False(t, errors.Is(err, complaints.ErrConflict))
}

func TestAppendDetectsStaleVersion(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	s := NewComplaintsStore(db, "c{seq}")
	require.NoError(t, s.SaveAll(ctx, complaints.DemoComplaints()))

	cur, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, cur)

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	entry := complaints.LogEntry{Action: complaints.ActionResolved, UpdatedBy: "u3", Note: "done", Timestamp: now, Handler: "u3"}
	next := cur.Clone()
	require.NoError(t, complaints.Apply(next, entry))
	next.Version = cur.Version + 1
	require.NoError(t, s.Append(ctx, next, entry, cur.Version, nil))

	err = s.Append(ctx, next, entry, cur.Version, nil)
	assert.True(t, errors.Is(err, complaints.ErrConflict))

	stored, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, stored.Logs, 2)
	require.NoError(t, complaints.Verify(stored))

	missing, err := s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOutboxRetryBookkeeping(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	s := NewComplaintsStore(db, "c{seq}")
	outbox := NewOutboxStore(db)
	require.NoError(t, s.SaveAll(ctx, complaints.DemoComplaints()))

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	cur, _ := s.Get(ctx, "c2")
	entry := complaints.LogEntry{Action: complaints.ActionRejected, UpdatedBy: "u4", Note: "duplicate", Timestamp: now, Handler: "u4"}
	next := cur.Clone()
	require.NoError(t, complaints.Apply(next, entry))
	next.Version++
	in := notify.NewIntent(notify.KindRejected, "c2", "u2", "bob@college.edu", cur.Title, now)
	require.NoError(t, s.Append(ctx, next, entry, cur.Version, []notify.Intent{in}))

	require.NoError(t, outbox.MarkFailed(ctx, in.ID, "smtp down", now.Add(time.Minute)))
	pending, err := outbox.PendingNotifications(ctx, now.Add(30*time.Second), 3, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	pending, err = outbox.PendingNotifications(ctx, now.Add(2*time.Minute), 3, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "smtp down", pending[0].LastError)

	pending, err = outbox.PendingNotifications(ctx, now.Add(2*time.Minute), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "attempts exhausted")

	require.NoError(t, outbox.MarkDelivered(ctx, in.ID, now.Add(2*time.Minute)))
	inbox, err := outbox.ListForRecipient(ctx, "u2", 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.NotNil(t, inbox[0].DeliveredAt)
	assert.Equal(t, 2, inbox[0].Attempts)
	assert.Equal(t, "bob@college.edu", inbox[0].Address)
}

func TestAuditStore(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	audits := NewAuditStore(db)
	require.NoError(t, audits.Log(ctx, "u7", "auth.login", "ok"))
	require.NoError(t, audits.Log(ctx, "system", "complaints.seed", "5"))
	recs, err := audits.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "complaints.seed", recs[0].Action)
}

func newService(t *testing.T, db *sql.DB, dir *directory.Directory) (*complaints.Service, ComplaintsStore) {
	t.Helper()
	if dir == nil {
		var err error
		dir, err = directory.LoadDemo(directory.Options{BcryptCost: bcrypt.MinCost})
		require.NoError(t, err)
	}
	repo := NewComplaintsStore(db, "c{seq}")
	return complaints.NewService(repo, dir, routing.NewResolver(dir), nil), repo
}

func TestServiceScenariosOnSQLite(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	dir, err := directory.LoadDemo(directory.Options{BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	svc, repo := newService(t, db, dir)
	get := func(id string) directory.Person {
		p, ok := dir.Lookup(id)
		require.True(t, ok)
		return p
	}

	c, err := svc.Create(ctx, get("u1"), "WiFi not working", "CS lab is offline")
	require.NoError(t, err)
	assert.Equal(t, "u3", c.CurrentHandler)
	assert.Len(t, c.Logs, 1)

	c, err = svc.Forward(ctx, get("u3"), c.ID, "escalating")
	require.NoError(t, err)
	assert.Equal(t, complaints.StatusForwarded, c.Status)
	assert.Equal(t, "u5", c.CurrentHandler)
	assert.Equal(t, "u3", c.AssignedTo)

	c, err = svc.Resolve(ctx, get("u5"), c.ID, "fixed")
	require.NoError(t, err)
	require.NotNil(t, c.ResolvedAt)

	stored, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	want, _ := json.Marshal(c)
	got, _ := json.Marshal(stored)
	assert.JSONEq(t, string(want), string(got))

	_, err = svc.Reject(ctx, get("u5"), c.ID, "again")
	assert.True(t, errors.Is(err, complaints.ErrInvalidTransition))

	_, err = svc.Forward(ctx, get("u5"), c.ID, "again")
	assert.True(t, errors.Is(err, complaints.ErrInvalidTransition))

	after, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	again, _ := json.Marshal(after)
	assert.Equal(t, string(got), string(again))

	pending, err := NewOutboxStore(db).PendingNotifications(ctx, time.Now().UTC().Add(time.Hour), 5, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestServiceNoTeacherOnSQLite(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	dir, err := directory.New([]directory.Person{
		{ID: "s1", Name: "Orphan", Email: "orphan@x.edu", Role: directory.RoleStudent, Class: "ME-Z"},
		{ID: "p1", Name: "Pat", Email: "pat@x.edu", Role: directory.RolePrincipal},
	})
	require.NoError(t, err)
	svc, repo := newService(t, db, dir)
	s1, _ := dir.Lookup("s1")

	_, err = svc.Create(ctx, s1, "Bench", "broken")
	assert.True(t, errors.Is(err, complaints.ErrNoHandlerFound))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeedIfEmpty(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewComplaintsStore(db, "c{seq}")

	seeded, err := complaints.SeedIfEmpty(ctx, repo, nil)
	require.NoError(t, err)
	assert.True(t, seeded)
	seeded, err = complaints.SeedIfEmpty(ctx, repo, nil)
	require.NoError(t, err)
	assert.False(t, seeded)
}
