// Package lock provides the process-wide single-instance gate the broker
// server acquires at startup: a Redis SET NX key standing in for the local
// named-socket primitive the original process used.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrAlreadyHeld is returned when another process currently holds the lock
// for the same service name.
var ErrAlreadyHeld = errors.New("lock: another instance is already running")

// SingleInstance is a Redis-backed mutual-exclusion gate keyed by service
// name: SET key value NX EX ttl succeeds only if no other process holds it.
type SingleInstance struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration

	stopRefresh chan struct{}
}

// Options configures the Redis connection the lock uses.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // lock key expiry; refreshed while held
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 30 * time.Second
	}
	return o
}

// New builds a SingleInstance lock for serviceName, pinging the Redis
// connection so a misconfigured address fails fast at construction.
func New(ctx context.Context, serviceName string, opts Options) (*SingleInstance, error) {
	opts = opts.withDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("lock: redis ping failed: %w", err)
	}

	return &SingleInstance{
		client: client,
		key:    "shipnetsim:single-instance:" + serviceName,
		ttl:    opts.TTL,
	}, nil
}

// Acquire attempts to take the lock. It returns ErrAlreadyHeld if another
// live process already holds it.
func (l *SingleInstance) Acquire(ctx context.Context, holderToken string) error {
	ok, err := l.client.SetNX(ctx, l.key, holderToken, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("lock: acquire: %w", err)
	}
	if !ok {
		return ErrAlreadyHeld
	}
	l.token = holderToken
	l.stopRefresh = make(chan struct{})
	go l.refreshLoop()
	return nil
}

// refreshLoop re-extends the lock's TTL at half its period so a live holder
// never loses the key to expiry while still running.
func (l *SingleInstance) refreshLoop() {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopRefresh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			l.client.Expire(ctx, l.key, l.ttl)
			cancel()
		}
	}
}

// Release deletes the lock key, but only if it still holds the token it
// acquired with, to avoid releasing a lock another process has since taken
// over after this one's key expired.
func (l *SingleInstance) Release(ctx context.Context) error {
	if l.stopRefresh != nil {
		close(l.stopRefresh)
		l.stopRefresh = nil
	}

	const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`
	return l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err()
}

// Close releases the underlying Redis connection without touching the lock
// key; callers should Release first.
func (l *SingleInstance) Close() error {
	return l.client.Close()
}
