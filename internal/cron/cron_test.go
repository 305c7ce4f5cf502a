package cron

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

type stubHoldReader struct {
	rows []models.Order
	err  error
}

func (s *stubHoldReader) FindLapsedAvailabilityHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.rows) {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

type stubExpirer struct {
	errs    map[uuid.UUID]error
	expired []uuid.UUID
}

func (s *stubExpirer) ExpireLapsedHold(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if err, ok := s.errs[orderID]; ok {
		return nil, err
	}
	s.expired = append(s.expired, orderID)
	return &models.Order{ID: orderID}, nil
}

func TestAvailabilityExpiryJobExpiresEachHold(t *testing.T) {
	holds := []models.Order{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}}
	expirer := &stubExpirer{}
	job, err := NewAvailabilityExpiryJob(AvailabilityExpiryJobParams{
		Logger:       testLogger(),
		Orders:       &stubHoldReader{rows: holds},
		Availability: expirer,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(expirer.expired) != len(holds) {
		t.Fatalf("expected %d holds expired, got %d", len(holds), len(expirer.expired))
	}
}

func TestAvailabilityExpiryJobToleratesRaceLosses(t *testing.T) {
	raced := uuid.New()
	gone := uuid.New()
	healthy := uuid.New()
	expirer := &stubExpirer{errs: map[uuid.UUID]error{
		raced: pkgerrors.New(pkgerrors.CodeStateConflict, "order was modified concurrently"),
		gone:  pkgerrors.New(pkgerrors.CodeNotFound, "order not found"),
	}}
	job, err := NewAvailabilityExpiryJob(AvailabilityExpiryJobParams{
		Logger:       testLogger(),
		Orders:       &stubHoldReader{rows: []models.Order{{ID: raced}, {ID: gone}, {ID: healthy}}},
		Availability: expirer,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("race losses must not fail the sweep: %v", err)
	}
	if len(expirer.expired) != 1 || expirer.expired[0] != healthy {
		t.Fatalf("unexpected expirations %v", expirer.expired)
	}
}

func TestAvailabilityExpiryJobReportsHardFailures(t *testing.T) {
	broken := uuid.New()
	healthy := uuid.New()
	expirer := &stubExpirer{errs: map[uuid.UUID]error{
		broken: pkgerrors.New(pkgerrors.CodeDependency, "refund write failed"),
	}}
	job, err := NewAvailabilityExpiryJob(AvailabilityExpiryJobParams{
		Logger:       testLogger(),
		Orders:       &stubHoldReader{rows: []models.Order{{ID: broken}, {ID: healthy}}},
		Availability: expirer,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected the sweep to surface the failure")
	}
	// a single bad order must not block the rest of the batch
	if len(expirer.expired) != 1 || expirer.expired[0] != healthy {
		t.Fatalf("unexpected expirations %v", expirer.expired)
	}
}

func TestAvailabilityExpiryJobBatchLimit(t *testing.T) {
	var rows []models.Order
	for i := 0; i < 5; i++ {
		rows = append(rows, models.Order{ID: uuid.New()})
	}
	expirer := &stubExpirer{}
	job, err := NewAvailabilityExpiryJob(AvailabilityExpiryJobParams{
		Logger:       testLogger(),
		Orders:       &stubHoldReader{rows: rows},
		Availability: expirer,
		BatchSize:    2,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(expirer.expired) != 2 {
		t.Fatalf("batch size ignored, expired %d", len(expirer.expired))
	}
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubEventPruner struct {
	deleted int64
	cutoff  time.Time
	err     error
}

func (s *stubEventPruner) DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.deleted, s.err
}

type stubDLQPruner struct {
	deleted int64
	cutoff  time.Time
	err     error
}

func (s *stubDLQPruner) DeleteFailedBefore(tx *gorm.DB, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.deleted, s.err
}

func TestOutboxRetentionJobPrunesBothTables(t *testing.T) {
	events := &stubEventPruner{deleted: 12}
	dlq := &stubDLQPruner{deleted: 3}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:        testLogger(),
		DB:            fakeTxRunner{},
		Outbox:        events,
		DLQ:           dlq,
		RetentionDays: 7,
		DLQDays:       14,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}

	start := time.Now().UTC()
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	wantEvents := start.Add(-7 * 24 * time.Hour)
	if events.cutoff.After(wantEvents.Add(time.Minute)) || events.cutoff.Before(wantEvents.Add(-time.Minute)) {
		t.Fatalf("unexpected outbox cutoff %s", events.cutoff)
	}
	wantDLQ := start.Add(-14 * 24 * time.Hour)
	if dlq.cutoff.After(wantDLQ.Add(time.Minute)) || dlq.cutoff.Before(wantDLQ.Add(-time.Minute)) {
		t.Fatalf("unexpected dlq cutoff %s", dlq.cutoff)
	}
}

func TestOutboxRetentionJobKeepsPruningAfterOutboxFailure(t *testing.T) {
	events := &stubEventPruner{err: errors.New("table locked")}
	dlq := &stubDLQPruner{deleted: 1}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: testLogger(),
		DB:     fakeTxRunner{},
		Outbox: events,
		DLQ:    dlq,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}

	runErr := job.Run(context.Background())
	if runErr == nil {
		t.Fatal("expected the outbox failure to be reported")
	}
	if dlq.cutoff.IsZero() {
		t.Fatal("dlq pruning must still run when the outbox delete fails")
	}
}

type mockLockStore struct {
	values map[string]string
	setErr error
}

func newMockLockStore() *mockLockStore {
	return &mockLockStore{values: map[string]string{}}
}

func (m *mockLockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, held := m.values[key]; held {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	return true, nil
}

func (m *mockLockStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *mockLockStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func TestRedisLockAcquireRelease(t *testing.T) {
	store := newMockLockStore()
	lock, err := NewRedisLock(store, "cron:test-lock", time.Minute)
	if err != nil {
		t.Fatalf("build lock: %v", err)
	}

	ok, err := lock.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("first acquire should win: ok=%v err=%v", ok, err)
	}

	rival, err := NewRedisLock(store, "cron:test-lock", time.Minute)
	if err != nil {
		t.Fatalf("build rival: %v", err)
	}
	ok, err = rival.Acquire(context.Background())
	if err != nil {
		t.Fatalf("rival acquire: %v", err)
	}
	if ok {
		t.Fatal("rival must not win a held lock")
	}

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = rival.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("released lock should be acquirable: ok=%v err=%v", ok, err)
	}
}

func TestRedisLockReleaseSkipsForeignOwner(t *testing.T) {
	store := newMockLockStore()
	lock, err := NewRedisLock(store, "cron:test-lock", time.Minute)
	if err != nil {
		t.Fatalf("build lock: %v", err)
	}
	if _, err := lock.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// the TTL expired and another replica took over
	store.values["cron:test-lock"] = "someone-else"

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["cron:test-lock"] != "someone-else" {
		t.Fatal("release must not delete a lock owned by another replica")
	}
}

type recordingJob struct {
	name string
	runs int
	err  error
}

func (j *recordingJob) Name() string { return j.name }

func (j *recordingJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

func TestServiceRunsAllJobsWhenLockHeld(t *testing.T) {
	first := &recordingJob{name: "first"}
	second := &recordingJob{name: "second", err: errors.New("boom")}
	lock, err := NewRedisLock(newMockLockStore(), "cron:test-lock", time.Minute)
	if err != nil {
		t.Fatalf("build lock: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(first, second),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	// a failing job must not stop the ones after it
	if first.runs != 1 || second.runs != 1 {
		t.Fatalf("runs: first=%d second=%d", first.runs, second.runs)
	}
}

func TestServiceSkipsCycleWhenLockContended(t *testing.T) {
	store := newMockLockStore()
	store.values["cron:test-lock"] = "other-replica"
	job := &recordingJob{name: "sweep"}
	lock, err := NewRedisLock(store, "cron:test-lock", time.Minute)
	if err != nil {
		t.Fatalf("build lock: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatal("contended cycle must not run jobs")
	}
}
