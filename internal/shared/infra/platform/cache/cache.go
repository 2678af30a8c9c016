package cache

import (
	"context"
)

// Cache define la interfaz para una caché de clave-valor genérica.
type Cache interface {
	// Get intenta poblar 'dest' (que debe ser un puntero) con el valor asociado a la 'key'.
	// Devuelve (true, nil) si hay un 'hit' y 'dest' fue rellenado.
	// Devuelve (false, nil) si es un 'miss' o la entrada ya expiró.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set serializa y guarda el valor con un TTL (Time To Live) en segundos.
	// La entrada se reemplaza entera, nunca se modifica parcialmente.
	Set(ctx context.Context, key string, val interface{}, ttlSecs int) error

	// Delete elimina las 'keys' de la caché. Borrar una clave inexistente no es error.
	Delete(ctx context.Context, keys ...string) error

	// DeletePrefix elimina todas las claves que empiezan por 'prefix' y devuelve cuántas borró.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
