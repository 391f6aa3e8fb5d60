// Package leaselock keeps two workers from rewriting the same survey sheet at
// once. A lease is a row in sheet_locks that expires unless its holder keeps
// pushing expires_at forward.
package leaselock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OFFIS-RIT/dematel/internal/util"
	"github.com/OFFIS-RIT/dematel/pkg/logger"
)

var (
	ErrBusy = errors.New("lease lock busy")
	ErrLost = errors.New("lease lock lost")
)

const (
	defaultTTL          = 2 * time.Minute
	defaultWaitInterval = 250 * time.Millisecond
	renewTimeout        = 15 * time.Second
)

var renewPolicy = util.RetryPolicy{MaxTries: 3, Delay: 200 * time.Millisecond}

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Client struct {
	db dbConn
}

func New(pool *pgxpool.Pool) *Client {
	return &Client{db: pool}
}

// Options tune a single lease. The zero value fails fast with ErrBusy and
// holds the lock for two minutes between renewals.
type Options struct {
	TTL        time.Duration
	RenewEvery time.Duration

	// Wait polls until the holder lets go instead of failing with ErrBusy.
	Wait         bool
	WaitInterval time.Duration
	WaitJitter   time.Duration

	TokenPrefix string
}

func (o Options) withDefaults() Options {
	if o.TTL < time.Millisecond {
		o.TTL = defaultTTL
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = max(o.TTL/2, time.Second)
	}
	if o.WaitInterval <= 0 {
		o.WaitInterval = defaultWaitInterval
	}
	o.WaitJitter = max(o.WaitJitter, 0)
	return o
}

func (o Options) pause() time.Duration {
	if o.WaitJitter == 0 {
		return o.WaitInterval
	}
	return o.WaitInterval + time.Duration(rand.Int64N(int64(o.WaitJitter)+1))
}

// Lease is a held sheet lock. Context ends when the lease is released or lost;
// context.Cause reports ErrLost in the latter case.
type Lease struct {
	Key     string
	Token   string
	Context context.Context

	mu      sync.Mutex
	expires time.Time

	client *Client
	ttl    time.Duration
	cancel context.CancelCauseFunc
	done   chan struct{}
	once   sync.Once
}

// SheetKey is the lock key guarding rewrites of one survey sheet.
func SheetKey(sheet string) string {
	return "sheet:" + sheet
}

// Expires reports when the row expires unless renewed again.
func (l *Lease) Expires() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.expires
}

// WithLease runs fn while holding key and releases the lock afterwards.
// An error from fn is joined with ErrLost if the lease slipped away meanwhile.
func (c *Client) WithLease(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	lease, err := c.Acquire(ctx, key, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			logger.Warn("[Lock] Failed to release lease", "key", key, "err", err)
		}
	}()

	err = fn(lease.Context)
	if err != nil && errors.Is(context.Cause(lease.Context), ErrLost) {
		return errors.Join(err, ErrLost)
	}
	return err
}

// Acquire takes key or, with opts.Wait, blocks until it can.
func (c *Client) Acquire(ctx context.Context, key string, opts Options) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease lock key is empty")
	}
	opts = opts.withDefaults()

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("lease token: %w", err)
	}
	token := opts.TokenPrefix + id

	var expires time.Time
	for {
		var ok bool
		expires, ok, err = c.claim(ctx, key, token, opts.TTL)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !opts.Wait {
			return nil, ErrBusy
		}
		timer := time.NewTimer(opts.pause())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &Lease{
		Key:     key,
		Token:   token,
		Context: leaseCtx,
		expires: expires,
		client:  c,
		ttl:     opts.TTL,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	logger.Debug("[Lock] Acquired lease", "key", key, "expires", expires)

	go l.keepAlive(opts.RenewEvery)
	return l, nil
}

// claim inserts the lock row, or takes it over when it expired or already
// belongs to token.
func (c *Client) claim(ctx context.Context, key, token string, ttl time.Duration) (time.Time, bool, error) {
	var expires time.Time
	err := c.db.QueryRow(ctx, claimSQL, key, token, ttl.Milliseconds()).Scan(&expires)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, fmt.Errorf("claim %s: %w", key, err)
	}
	return expires, true, nil
}

// Release stops renewal and deletes the row if this lease still owns it.
func (l *Lease) Release(ctx context.Context) error {
	l.once.Do(func() {
		close(l.done)
		l.cancel(context.Canceled)
	})
	_, err := l.client.db.Exec(ctx, releaseSQL, l.Key, l.Token)
	return err
}

func (l *Lease) keepAlive(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-l.Context.Done():
			return
		case <-ticker.C:
		}
		if err := l.renew(); err != nil {
			logger.Warn("[Lock] Lease renewal failed", "key", l.Key, "err", err)
			l.cancel(err)
			return
		}
	}
}

// renew extends the row by the lease TTL. A missing row means another worker
// took the sheet over and is reported as ErrLost right away.
func (l *Lease) renew() error {
	taken := false
	expires, err := util.RetryWithContext(l.Context, renewPolicy, func(ctx context.Context) (time.Time, error) {
		ctx, cancel := context.WithTimeout(ctx, renewTimeout)
		defer cancel()

		var expires time.Time
		err := l.client.db.QueryRow(ctx, renewSQL, l.Key, l.Token, l.ttl.Milliseconds()).Scan(&expires)
		if errors.Is(err, pgx.ErrNoRows) {
			taken = true
			return time.Time{}, nil
		}
		return expires, err
	})
	if taken {
		return ErrLost
	}
	if err != nil {
		return errors.Join(ErrLost, err)
	}

	l.mu.Lock()
	l.expires = expires
	l.mu.Unlock()
	return nil
}

const claimSQL = `
INSERT INTO sheet_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE sheet_locks.expires_at < now()
   OR sheet_locks.locked_by = EXCLUDED.locked_by
RETURNING expires_at;
`

const renewSQL = `
UPDATE sheet_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING expires_at;
`

const releaseSQL = `
DELETE FROM sheet_locks
WHERE lock_key = $1 AND locked_by = $2;
`
