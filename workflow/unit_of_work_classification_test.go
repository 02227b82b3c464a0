package workflow

import (
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func TestIsTxUnsupportedErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"check not implemented", &mysqlDriver.MySQLError{Number: 1178, Message: "The storage engine for the table doesn't support transactions"}, true},
		{"not supported yet", &mysqlDriver.MySQLError{Number: 1235, Message: "This version of MySQL doesn't yet support ..."}, true},
		{"unsupported driver sentinel", gorm.ErrUnsupportedDriver, true},
		{"wrapped unsupported", fmt.Errorf("begin: %w", &mysqlDriver.MySQLError{Number: 1178}), true},
		// Real failures must propagate, never trigger the fallback.
		{"duplicate key", &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}, false},
		{"deadlock", &mysqlDriver.MySQLError{Number: 1213, Message: "Deadlock found"}, false},
		{"lock wait timeout", &mysqlDriver.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, false},
		{"connection refused", errors.New("dial tcp: connection refused"), false},
		{"record not found", gorm.ErrRecordNotFound, false},
	}
	for _, tc := range cases {
		if got := isTxUnsupportedErr(tc.err); got != tc.want {
			t.Fatalf("%s: isTxUnsupportedErr = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"mysql 1062", &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'uniq'"}, true},
		{"gorm sentinel", gorm.ErrDuplicatedKey, true},
		{"wrapped 1062", fmt.Errorf("create: %w", &mysqlDriver.MySQLError{Number: 1062}), true},
		{"other mysql error", &mysqlDriver.MySQLError{Number: 1213}, false},
		{"plain error", errors.New("duplicate entry"), false},
	}
	for _, tc := range cases {
		if got := isDuplicateKeyErr(tc.err); got != tc.want {
			t.Fatalf("%s: isDuplicateKeyErr = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// The no-transaction rerun must only happen when the unit body never ran:
// once it has started, partial writes may have persisted on a
// non-transactional engine, and a rerun would trip its own idempotency
// guards and silently skip the rest of the writes.
func TestCanFallbackWithoutTx(t *testing.T) {
	unsupported := &mysqlDriver.MySQLError{Number: 1178, Message: "The storage engine for the table doesn't support transactions"}
	cases := []struct {
		name  string
		began bool
		err   error
		want  bool
	}{
		{"unsupported before body ran", false, unsupported, true},
		{"unsupported sentinel before body ran", false, gorm.ErrUnsupportedDriver, true},
		{"unsupported surfaced from inside the body", true, unsupported, false},
		{"unsupported sentinel after body started", true, gorm.ErrUnsupportedDriver, false},
		{"real error before body ran", false, errors.New("dial tcp: connection refused"), false},
		{"real error from the body", true, gorm.ErrRecordNotFound, false},
	}
	for _, tc := range cases {
		if got := canFallbackWithoutTx(tc.began, tc.err); got != tc.want {
			t.Fatalf("%s: canFallbackWithoutTx(%v, %v) = %v, want %v", tc.name, tc.began, tc.err, got, tc.want)
		}
	}
}

func TestInTransaction_NilSafe(t *testing.T) {
	if inTransaction(nil) {
		t.Fatal("nil db must not look transactional")
	}
	if inTransaction(&gorm.DB{}) {
		t.Fatal("empty db handle must not look transactional")
	}
}
