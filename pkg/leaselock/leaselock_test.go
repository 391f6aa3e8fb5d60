package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var expiry = time.Date(2025, 2, 8, 7, 35, 0, 0, time.UTC)

type fakeRow struct {
	expires time.Time
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*time.Time)) = r.expires
	return nil
}

type fakeDB struct {
	mu        sync.Mutex
	held      map[string]string
	renewFail error
}

func newFakeDB() *fakeDB {
	return &fakeDB{held: make(map[string]string)}
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)

	switch sql {
	case claimSQL:
		if owner, ok := f.held[key]; ok && owner != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		f.held[key] = token
		return fakeRow{expires: expiry}
	case renewSQL:
		if f.renewFail != nil {
			return fakeRow{err: f.renewFail}
		}
		if f.held[key] != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{expires: expiry.Add(time.Minute)}
	}
	return fakeRow{err: errors.New("unexpected query")}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	if sql == releaseSQL && f.held[key] == token {
		delete(f.held, key)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func TestAcquire_BusyThenFree(t *testing.T) {
	c := &Client{db: newFakeDB()}
	ctx := context.Background()

	first, err := c.Acquire(ctx, SheetKey("s-1"), Options{})
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if first.Key != "sheet:s-1" || !first.Expires().Equal(expiry) {
		t.Fatalf("unexpected lease: key=%s expires=%v", first.Key, first.Expires())
	}

	if _, err := c.Acquire(ctx, SheetKey("s-1"), Options{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	if _, err := c.Acquire(ctx, SheetKey("s-2"), Options{}); err != nil {
		t.Fatalf("other key should be free: %v", err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if first.Context.Err() == nil {
		t.Fatal("lease context should be cancelled after release")
	}

	again, err := c.Acquire(ctx, SheetKey("s-1"), Options{})
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = again.Release(ctx)
}

func TestAcquire_WaitRespectsContext(t *testing.T) {
	c := &Client{db: newFakeDB()}
	held, err := c.Acquire(context.Background(), "k", Options{})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer held.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = c.Acquire(ctx, "k", Options{Wait: true, WaitInterval: 5 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestAcquire_EmptyKey(t *testing.T) {
	c := &Client{db: newFakeDB()}
	if _, err := c.Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestWithLease_ReleasesAfterRun(t *testing.T) {
	db := newFakeDB()
	c := &Client{db: db}

	ran := false
	err := c.WithLease(context.Background(), "k", Options{}, func(ctx context.Context) error {
		ran = true
		if ctx.Err() != nil {
			t.Fatalf("lease context cancelled while held: %v", ctx.Err())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithLease: %v", err)
	}
	if !ran {
		t.Fatal("fn did not run")
	}
	if len(db.held) != 0 {
		t.Fatalf("lock still held: %v", db.held)
	}

	want := errors.New("boom")
	if err := c.WithLease(context.Background(), "k", Options{}, func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected fn error, got %v", err)
	}
}

func TestRenew(t *testing.T) {
	db := newFakeDB()
	c := &Client{db: db}
	lease, err := c.Acquire(context.Background(), "k", Options{})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lease.Release(context.Background())

	if err := lease.renew(); err != nil {
		t.Fatalf("renew while held: %v", err)
	}
	if !lease.Expires().Equal(expiry.Add(time.Minute)) {
		t.Fatalf("expiry not extended: %v", lease.Expires())
	}

	db.mu.Lock()
	db.held["k"] = "someone-else"
	db.mu.Unlock()
	if err := lease.renew(); !errors.Is(err, ErrLost) {
		t.Fatalf("expected ErrLost, got %v", err)
	}

	db.mu.Lock()
	db.held["k"] = lease.Token
	db.renewFail = errors.New("connection reset")
	db.mu.Unlock()
	if err := lease.renew(); !errors.Is(err, ErrLost) {
		t.Fatalf("expected ErrLost after repeated failures, got %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{TTL: 10 * time.Second, RenewEvery: 20 * time.Second}.withDefaults()
	if o.RenewEvery != 5*time.Second {
		t.Fatalf("RenewEvery = %v, want 5s", o.RenewEvery)
	}
	o = Options{}.withDefaults()
	if o.TTL != defaultTTL || o.WaitInterval != defaultWaitInterval {
		t.Fatalf("unexpected defaults: %+v", o)
	}
}
