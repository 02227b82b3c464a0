package workflow

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrWorkerLockHeld means another instance holds the worker's advisory lock;
// the caller skips its tick instead of waiting.
var ErrWorkerLockHeld = errors.New("worker lock held by another instance")

// WithWorkerLock runs fn while holding a MySQL advisory lock named after the
// worker. Redis single-flight is the fast path that avoids wasted polls; this
// lock is the guard that still holds when Redis is down. GET_LOCK is
// connection-scoped, so the lock is taken and released on one pinned
// connection while fn uses the normal pool.
//
// A nil db (no store configured, as in unit tests) runs fn directly: with no
// database there is nothing to contend for.
func WithWorkerLock(ctx context.Context, db *gorm.DB, workerName string, fn func() error) error {
	if db == nil {
		return fn()
	}
	return db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		lockName := "worker:" + workerName
		var acquired int
		if err := conn.Raw("SELECT GET_LOCK(?, 0)", lockName).Scan(&acquired).Error; err != nil {
			return err
		}
		if acquired != 1 {
			return ErrWorkerLockHeld
		}
		defer func() {
			var released int
			_ = conn.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error
		}()
		return fn()
	})
}
