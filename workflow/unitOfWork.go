package workflow

import (
	"context"
	"errors"
	"sync"

	"bitbucket.org/meridianassets/invest_backend/config"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UnitFn is the body of a unit of work. It receives the transactional handle
// when one is available, or the plain connection in degraded mode.
type UnitFn func(tx *gorm.DB) error

var txUnsupportedWarnOnce sync.Once

// isTxUnsupportedErr matches only the narrow "this store cannot do
// transactions" driver signals (storage engine without transaction support).
// Anything else is a real application or infrastructure error and must
// propagate, so this deliberately does not match generic failures.
func isTxUnsupportedErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		// 1178: ER_CHECK_NOT_IMPLEMENTED (storage engine capability)
		// 1235: ER_NOT_SUPPORTED_YET
		return mysqlErr.Number == 1178 || mysqlErr.Number == 1235
	}
	return errors.Is(err, gorm.ErrUnsupportedDriver)
}

// isDuplicateKeyErr detects MySQL 1062 for insert-if-absent idempotency.
func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// inTransaction reports whether db already carries an open transaction, so
// nested units of work reuse the outer handle instead of opening a second one.
func inTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(gorm.TxCommitter)
	return ok
}

// canFallbackWithoutTx permits the no-transaction rerun only when the
// unsupported signal surfaced before fn ran, i.e. from BEGIN itself. Once fn
// has executed even partially, a rerun after a no-op rollback would find its
// own idempotency guards already tripped and silently skip the remaining
// writes, so the error propagates instead of degrading.
func canFallbackWithoutTx(began bool, err error) bool {
	return !began && isTxUnsupportedErr(err)
}

// RunInUnit executes fn atomically when the store supports transactions.
//
// When BEGIN fails with the narrow transactions-unsupported signal, it logs a
// warning once per process and re-invokes fn without a transactional handle,
// accepting reduced atomicity as a documented degradation. The fallback runs
// only when fn never started, so fn executes exactly once either way.
func RunInUnit(ctx context.Context, db *gorm.DB, fn UnitFn) error {
	if db == nil {
		db = config.GetDB()
	}
	if inTransaction(db) {
		return fn(db)
	}

	began := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		began = true
		return fn(tx)
	})
	if err == nil {
		return nil
	}
	if !canFallbackWithoutTx(began, err) {
		return err
	}

	txUnsupportedWarnOnce.Do(func() {
		logger := config.GetLogger()
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"module": "unitOfWork.go",
			}).Warn("store does not support multi-statement transactions; running units of work best-effort sequentially")
		}
	})
	return fn(db.WithContext(ctx))
}
