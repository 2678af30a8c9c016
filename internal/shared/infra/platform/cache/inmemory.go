package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// cacheItem guarda el valor y el tiempo de expiración.
type cacheItem struct {
	value     []byte // Guardamos los bytes para simular la serialización, igual que Redis.
	expiresAt time.Time
}

// InMemoryCache implementa la interfaz de caché usando un mapa en memoria.
type InMemoryCache struct {
	store      map[string]cacheItem
	mu         sync.RWMutex
	defaultTTL time.Duration
	now        func() time.Time
	stopChan   chan struct{}
	stopOnce   sync.Once
}

var _ Cache = (*InMemoryCache)(nil)

// NewInMemoryCache crea una nueva instancia de la caché en memoria.
// - defaultTTL: El tiempo de vida por defecto para las claves si no se especifica otro.
// - cleanupInterval: Cada cuánto tiempo se revisarán y eliminarán las claves expiradas (0 = nunca).
func NewInMemoryCache(defaultTTL, cleanupInterval time.Duration) *InMemoryCache {
	c := &InMemoryCache{
		store:      make(map[string]cacheItem),
		defaultTTL: defaultTTL,
		now:        func() time.Time { return time.Now().UTC() },
		stopChan:   make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}
	return c
}

// WithClock sustituye el reloj (tests de expiración).
func (c *InMemoryCache) WithClock(now func() time.Time) *InMemoryCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// expired: una entrada con TTL t deja de servirse exactamente en t.
func (c *InMemoryCache) expired(item cacheItem) bool {
	return !c.now().Before(item.expiresAt)
}

func (c *InMemoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.store[key]
	if !ok || c.expired(item) {
		return false, nil
	}

	if err := json.Unmarshal(item.value, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *InMemoryCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ttl := c.defaultTTL
	if ttlSecs > 0 {
		ttl = time.Duration(ttlSecs) * time.Second
	}
	c.store[key] = cacheItem{
		value:     data,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *InMemoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.store, key)
	}
	return nil
}

func (c *InMemoryCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.store {
		if strings.HasPrefix(key, prefix) {
			delete(c.store, key)
			n++
		}
	}
	return n, nil
}

// Len cuenta también entradas expiradas que el cleanup aún no ha barrido.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Stop detiene la goroutine de limpieza. Deberías llamarlo al apagar la aplicación.
func (c *InMemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *InMemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			for key, item := range c.store {
				if c.expired(item) {
					delete(c.store, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopChan:
			return
		}
	}
}
