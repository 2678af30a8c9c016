package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Limiter aplica una ventana fija: como mucho 'limit' peticiones por clave y ventana.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
}

type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// allowScript incrementa y pone la ventana en un solo paso atómico. Si la clave quedó sin TTL
// (p.ej. escrita por otro cliente) se la vuelve a poner, así un contador nunca queda bloqueado.
var allowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	n, err := allowScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, err
	}

	count := int(n)
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.limit, remaining, nil
}

// InMemoryLimiter es el fallback cuando no hay Redis (un solo proceso).
type InMemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]window
}

type window struct {
	count   int
	resetAt time.Time
}

var _ Limiter = (*InMemoryLimiter)(nil)

func NewInMemoryLimiter(limit int, win time.Duration) *InMemoryLimiter {
	return &InMemoryLimiter{
		limit:   limit,
		window:  win,
		now:     time.Now,
		windows: make(map[string]window),
	}
}

func (l *InMemoryLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = window{resetAt: now.Add(l.window)}
	}
	w.count++
	l.windows[key] = w

	remaining := l.limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return w.count <= l.limit, remaining, nil
}
