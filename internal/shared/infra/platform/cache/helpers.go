package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Invalidate borra un namespace completo y las claves sueltas indicadas como una sola operación lógica.
// Se intentan ambas partes aunque la primera falle.
func Invalidate(ctx context.Context, c Cache, prefix string, keys ...string) error {
	if c == nil {
		return nil
	}

	var errs []error
	if prefix != "" {
		if _, err := c.DeletePrefix(ctx, prefix); err != nil {
			errs = append(errs, err)
		}
	}
	if len(keys) > 0 {
		if err := c.Delete(ctx, keys...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InvalidateOrWarn es Invalidate para los caminos donde un fallo de caché no debe romper la operación.
func InvalidateOrWarn(ctx context.Context, c Cache, timeout time.Duration, log *zap.Logger, prefix string, keys ...string) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := Invalidate(ctx, c, prefix, keys...); err != nil {
		log.Warn("Cache invalidation failed",
			zap.String("prefix", prefix),
			zap.Strings("keys", keys),
			zap.Error(err))
	}
}
