package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ReadThrough es el camino de lectura común: caché, y si falla o no está, el store autoritativo.
// Un error de caché nunca rompe la lectura; se trata como miss.
type ReadThrough struct {
	cache     Cache
	opTimeout time.Duration
	group     *singleflight.Group
	log       *zap.Logger
}

// NewReadThrough. Con singleFlight, los misses concurrentes de una misma clave comparten una sola carga.
func NewReadThrough(c Cache, opTimeout time.Duration, singleFlight bool, log *zap.Logger) *ReadThrough {
	rt := &ReadThrough{cache: c, opTimeout: opTimeout, log: log}
	if singleFlight {
		rt.group = &singleflight.Group{}
	}
	return rt
}

func (rt *ReadThrough) Cache() Cache { return rt.cache }

func (rt *ReadThrough) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if rt.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, rt.opTimeout)
}

func (rt *ReadThrough) get(ctx context.Context, key string, dest interface{}) bool {
	if rt.cache == nil {
		return false
	}
	cctx, cancel := rt.opContext(ctx)
	defer cancel()

	hit, err := rt.cache.Get(cctx, key, dest)
	if err != nil {
		rt.log.Warn("Cache read failed, falling through", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (rt *ReadThrough) set(ctx context.Context, key string, val interface{}, ttlSecs int) {
	if rt.cache == nil {
		return
	}
	cctx, cancel := rt.opContext(context.WithoutCancel(ctx))
	defer cancel()

	if err := rt.cache.Set(cctx, key, val, ttlSecs); err != nil {
		rt.log.Warn("Cache update failed", zap.String("key", key), zap.Error(err))
	}
}

// Fetch devuelve el valor cacheado en key o lo calcula con load y lo guarda durante ttlSecs.
// Los errores de load se propagan y no se cachean.
func Fetch[T any](ctx context.Context, rt *ReadThrough, key string, ttlSecs int, load func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if rt.get(ctx, key, &cached) {
		return cached, nil
	}

	fill := func() (T, error) {
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		rt.set(ctx, key, v, ttlSecs)
		return v, nil
	}

	if rt.group == nil {
		return fill()
	}

	v, err, _ := rt.group.Do(key, func() (interface{}, error) {
		return fill()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}
