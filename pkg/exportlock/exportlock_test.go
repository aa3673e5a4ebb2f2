package exportlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB keeps leases in memory and understands the three lease statements.
type fakeDB struct {
	mu     sync.Mutex
	holder map[string]string
}

type row struct {
	value string
	err   error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.value
	return nil
}

func newFakeDB() *fakeDB {
	return &fakeDB{holder: make(map[string]string)}
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	db.mu.Lock()
	defer db.mu.Unlock()
	key, token := args[0].(string), args[1].(string)

	switch sql {
	case tryAcquireSQL:
		if current, ok := db.holder[key]; ok && current != token {
			return row{err: pgx.ErrNoRows}
		}
		db.holder[key] = token
		return row{value: key}
	case renewSQL:
		if db.holder[key] != token {
			return row{err: pgx.ErrNoRows}
		}
		return row{value: key}
	}
	return row{err: errors.New("unexpected query")}
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	if sql == releaseSQL && db.holder[key] == token {
		delete(db.holder, key)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func TestModelKey(t *testing.T) {
	if got := ModelKey("m-1", "01.00.000"); got != "export:m-1@01.00.000" {
		t.Fatalf("ModelKey = %q", got)
	}
	if got := ModelKey("m-1", ""); got != "export:m-1@latest" {
		t.Fatalf("ModelKey = %q", got)
	}
}

func TestAcquireBusyAndRelease(t *testing.T) {
	l := &Locker{db: newFakeDB()}
	ctx := context.Background()

	first, err := l.Acquire(ctx, "export:m-1@latest", Options{Holder: "worker-a-"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if _, err := l.Acquire(ctx, "export:m-1@latest", Options{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if first.Context.Err() == nil {
		t.Fatal("expected lease context to be cancelled after release")
	}

	second, err := l.Acquire(ctx, "export:m-1@latest", Options{})
	if err != nil {
		t.Fatalf("expected lease after release, got %v", err)
	}
	_ = second.Release(ctx)
}

func TestAcquireWaits(t *testing.T) {
	l := &Locker{db: newFakeDB()}
	ctx := context.Background()

	held, err := l.Acquire(ctx, "k", Options{})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = held.Release(context.Background())
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	lease, err := l.Acquire(waitCtx, "k", Options{Wait: true, WaitInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("expected lease after wait, got %v", err)
	}
	_ = lease.Release(ctx)
}

func TestWithLease(t *testing.T) {
	db := newFakeDB()
	l := &Locker{db: db}

	called := false
	err := l.WithLease(context.Background(), "k", Options{}, func(ctx context.Context) error {
		called = true
		if ctx.Err() != nil {
			t.Errorf("lease context already done: %v", ctx.Err())
		}
		return nil
	})
	if err != nil || !called {
		t.Fatalf("WithLease = %v, called = %v", err, called)
	}
	if len(db.holder) != 0 {
		t.Fatalf("lease not released: %v", db.holder)
	}
}

func TestAcquireEmptyKey(t *testing.T) {
	l := &Locker{db: newFakeDB()}
	if _, err := l.Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatal("expected error, got nil")
	}
}
