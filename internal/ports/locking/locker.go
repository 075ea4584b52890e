package locking

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Unlock libera el lock. Llamarlo más de una vez es inocuo.
type Unlock func(ctx context.Context) error

// Locker da exclusión mutua por clave entre procesos.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}
