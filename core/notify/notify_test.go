package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"complaintdesk/core/utils"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIntentRendersBodies(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	cases := map[Kind]string{
		KindAssigned:  `New complaint assigned: "WiFi not working"`,
		KindResolved:  `Your complaint "WiFi not working" has been resolved.`,
		KindRejected:  `Your complaint "WiFi not working" has been rejected.`,
		KindForwarded: `A complaint has been forwarded to you: "WiFi not working"`,
	}
	seen := map[string]bool{}
	for kind, body := range cases {
		in := NewIntent(kind, "c1", "u3", "smith@college.edu", "WiFi not working", now)
		assert.Equal(t, body, in.Body)
		assert.Equal(t, "smith@college.edu", in.Address)
		assert.NotEmpty(t, in.Subject)
		assert.Equal(t, now, in.CreatedAt)
		assert.False(t, seen[in.ID], "ids are unique")
		seen[in.ID] = true
	}
}

type fakePublisher struct {
	channel   string
	payload   []byte
	receivers int64
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(f.receivers)
	}
	return cmd
}

func TestRedisSinkPublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{receivers: 1}
	sink := NewRedisSink(pub, "complaintdesk.notifications")
	rec := Record{Intent: NewIntent(KindForwarded, "c3", "u5", "rao@college.edu", "AC not cooling", time.Now().UTC()), Attempts: 2}

	require.NoError(t, sink.Notify(context.Background(), rec))
	assert.Equal(t, "complaintdesk.notifications", pub.channel)
	var env map[string]any
	require.NoError(t, json.Unmarshal(pub.payload, &env))
	assert.Equal(t, "u5", env["recipient"])
	assert.Equal(t, "rao@college.edu", env["address"])
	assert.Equal(t, "c3", env["complaint_id"])
	assert.EqualValues(t, 3, env["attempt"])

	pub.receivers = 0
	assert.ErrorIs(t, sink.Notify(context.Background(), rec), ErrNoSubscribers)
	pub.err = errors.New("connection refused")
	assert.Error(t, sink.Notify(context.Background(), rec))
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(utils.NewLoggerWithOptions(&buf, "info", "json"))
	rec := Record{Intent: NewIntent(KindAssigned, "c1", "u3", "smith@college.edu", "WiFi not working", time.Now().UTC())}
	require.NoError(t, sink.Notify(context.Background(), rec))
	assert.Contains(t, buf.String(), `"recipient":"u3"`)
	assert.Contains(t, buf.String(), `"address":"smith@college.edu"`)
}

type memOutbox struct {
	mu        sync.Mutex
	records   []Record
	next      map[string]time.Time
	delivered map[string]time.Time
}

func newMemOutbox(recs ...Record) *memOutbox {
	return &memOutbox{records: recs, next: map[string]time.Time{}, delivered: map[string]time.Time{}}
}

func (m *memOutbox) PendingNotifications(_ context.Context, now time.Time, maxAttempts, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.records {
		if _, done := m.delivered[r.ID]; done || r.Attempts >= maxAttempts {
			continue
		}
		if n, ok := m.next[r.ID]; ok && n.After(now) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memOutbox) MarkDelivered(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered[id] = at
	m.bump(id, "")
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, id, errMsg string, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next[id] = next
	m.bump(id, errMsg)
	return nil
}

func (m *memOutbox) bump(id, errMsg string) {
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Attempts++
			m.records[i].LastError = errMsg
		}
	}
}

func (m *memOutbox) deliveredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivered)
}

type flakySink struct {
	mu    sync.Mutex
	fails map[string]int
	sent  []string
}

func (s *flakySink) Notify(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails[rec.Recipient] > 0 {
		s.fails[rec.Recipient]--
		return errors.New("mailbox full")
	}
	s.sent = append(s.sent, rec.Recipient)
	return nil
}

type countingObserver struct{ ok, failed int }

func (c *countingObserver) ObserveDelivery(_ Kind, ok bool) {
	if ok {
		c.ok++
		return
	}
	c.failed++
}

func TestDispatcherRetriesWithBackoff(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	a := Record{Intent: NewIntent(KindAssigned, "c1", "u3", "smith@college.edu", "WiFi", now)}
	b := Record{Intent: NewIntent(KindResolved, "c5", "u1", "alice@college.edu", "Canteen", now)}
	outbox := newMemOutbox(a, b)
	sink := &flakySink{fails: map[string]int{"u1": 5}}
	obs := &countingObserver{}
	d := NewDispatcher(outbox, sink, Options{MaxAttempts: 3, RetryBackoff: time.Minute}, nil)
	d.SetObserver(obs)
	ctx := context.Background()

	n, err := d.RunOnce(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, now.Add(time.Minute), outbox.next[b.ID])

	n, err = d.RunOnce(ctx, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Zero(t, n, "not due yet")

	_, _ = d.RunOnce(ctx, now.Add(time.Minute))
	assert.Equal(t, now.Add(3*time.Minute), outbox.next[b.ID], "backoff grows linearly")
	_, _ = d.RunOnce(ctx, now.Add(3*time.Minute))
	_, _ = d.RunOnce(ctx, now.Add(time.Hour))

	assert.Equal(t, []string{"u3"}, sink.sent)
	assert.Equal(t, 1, obs.ok)
	assert.Equal(t, 3, obs.failed, "attempts stop at the limit")
	assert.Equal(t, "mailbox full", outbox.records[1].LastError)
}

func TestDispatcherRunsOnKick(t *testing.T) {
	now := time.Now().UTC()
	outbox := newMemOutbox(Record{Intent: NewIntent(KindAssigned, "c1", "u3", "smith@college.edu", "WiFi", now)})
	d := NewDispatcher(outbox, &flakySink{}, Options{Schedule: "@every 1h"}, nil)
	ctx := context.Background()

	d.StartWithContext(ctx)
	d.Kick()
	require.Eventually(t, func() bool { return outbox.deliveredCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, d.StopWithContext(stopCtx))
	require.NoError(t, d.StopWithContext(stopCtx), "stop is idempotent")
}

func TestDispatcherRejectsBadSchedule(t *testing.T) {
	d := NewDispatcher(newMemOutbox(), DiscardSink{}, Options{Schedule: "every now and then"}, nil)
	d.StartWithContext(context.Background())
	assert.False(t, d.running)
	assert.NoError(t, d.StopWithContext(context.Background()))
}
