package lock

import (
	"context"
	"errors"
)

// ErrTimeout is returned when a lock could not be acquired before the
// context expired.
var ErrTimeout = errors.New("lock acquisition timed out")

// Locker provides mutual exclusion keyed by an arbitrary string. Callers use
// one key per vehicle so mutations of different vehicles never contend.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func
	// releases the lock and is safe to call more than once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
