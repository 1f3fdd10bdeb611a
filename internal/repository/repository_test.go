package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/table-ordering/internal/model"
	"github.com/iliyamo/table-ordering/internal/service"
)

func TestClassify(t *testing.T) {
	other := errors.New("boom")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, model.ErrNotFound},
		{"lock wait timeout", &mysql.MySQLError{Number: 1205}, model.ErrContention},
		{"deadlock", &mysql.MySQLError{Number: 1213}, model.ErrContention},
		{"wrapped deadlock", fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1213}), model.ErrContention},
		{"deadline", context.DeadlineExceeded, model.ErrContention},
		{"duplicate", &mysql.MySQLError{Number: 1062}, ErrConflict},
		{"referenced row", &mysql.MySQLError{Number: 1451}, ErrConflict},
		{"missing parent", &mysql.MySQLError{Number: 1452}, model.ErrNotFound},
		{"other", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.in); !errors.Is(got, tt.want) {
				t.Fatalf("classify(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
	if classify(nil) != nil {
		t.Fatal("classify(nil) != nil")
	}
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, 3*time.Second), mock
}

func expectLockWait(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET SESSION innodb_lock_wait_timeout = ?")).
		WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 0))
}

var tableCols = []string{"id", "label", "occupied", "active_order_id", "created_at", "updated_at"}

func TestTransactionallyCommitsOccupy(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	expectLockWait(mock)
	mock.ExpectQuery(`SELECT .* FROM tables t WHERE t.id = \? FOR UPDATE`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(tableCols).AddRow(7, "T7", false, nil, now, now))
	mock.ExpectExec(`UPDATE tables SET occupied = 1, active_order_id = \? WHERE id = \? AND occupied = 0`).
		WithArgs("o1", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var occupied bool
	err := store.Transactionally(context.Background(), func(tx service.Tx) error {
		tb, err := tx.TableForUpdate(context.Background(), 7)
		if err != nil {
			return err
		}
		if !tb.Free() || tb.Label != "T7" {
			t.Errorf("table = %+v", tb)
		}
		occupied, err = tx.OccupyTable(context.Background(), 7, "o1")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if !occupied {
		t.Fatal("occupy reported no change")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestOccupyLosingRaceReportsFalse(t *testing.T) {
	store, mock := newMock(t)
	expectLockWait(mock)
	mock.ExpectExec(`UPDATE tables SET occupied = 1`).
		WithArgs("o2", 7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	var ok bool
	err := store.Transactionally(context.Background(), func(tx service.Tx) error {
		var err error
		ok, err = tx.OccupyTable(context.Background(), 7, "o2")
		return err
	})
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestTransactionallyRollsBackOnError(t *testing.T) {
	store, mock := newMock(t)
	expectLockWait(mock)
	mock.ExpectQuery(`FROM tables t WHERE t.id = \? FOR UPDATE`).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows(tableCols))
	mock.ExpectRollback()

	err := store.Transactionally(context.Background(), func(tx service.Tx) error {
		_, err := tx.TableForUpdate(context.Background(), 9)
		return err
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeadlockSurfacesAsContention(t *testing.T) {
	store, mock := newMock(t)
	expectLockWait(mock)
	mock.ExpectQuery(`FROM orders o WHERE o.id = \? FOR UPDATE`).
		WithArgs("o1").
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	mock.ExpectRollback()

	err := store.Transactionally(context.Background(), func(tx service.Tx) error {
		_, err := tx.OrderForUpdate(context.Background(), "o1")
		return err
	})
	if !errors.Is(err, model.ErrContention) {
		t.Fatalf("err = %v, want ErrContention", err)
	}
}

func TestUpdateOrderTotalBumpsVersion(t *testing.T) {
	store, mock := newMock(t)
	expectLockWait(mock)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(price_snapshot * quantity), 0) FROM order_items WHERE order_id = ?")).
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(130000))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET total = ?, version = version + 1, updated_at = UTC_TIMESTAMP(3) WHERE id = ?")).
		WithArgs(130000, "o1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM orders WHERE id = ?")).
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(3))
	mock.ExpectCommit()

	var (
		total   model.Money
		version uint64
	)
	err := store.Transactionally(context.Background(), func(tx service.Tx) error {
		var err error
		if total, err = tx.SumItems(context.Background(), "o1"); err != nil {
			return err
		}
		version, err = tx.UpdateOrderTotal(context.Background(), "o1", total)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 130000 || version != 3 {
		t.Fatalf("total=%d version=%d", total, version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteOrderCountsItems(t *testing.T) {
	store, mock := newMock(t)
	expectLockWait(mock)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM order_items WHERE order_id = ?")).
		WithArgs("o1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = ?")).
		WithArgs("o1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var n int64
	err := store.Transactionally(context.Background(), func(tx service.Tx) error {
		var err error
		n, err = tx.DeleteOrder(context.Background(), "o1")
		return err
	})
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestDeleteTableOccupiedIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tables WHERE id = ? AND occupied = 0")).
		WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM tables t WHERE t.id = \?`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows(tableCols).AddRow(4, "T4", true, "o9", now, now))

	err = NewTableRepo(db).DeleteTable(context.Background(), 4)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestMenuGroupsAvailableProducts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, name, priority, created_at FROM categories ORDER BY priority, id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "priority", "created_at"}).
			AddRow(1, "Food", 1, now).
			AddRow(2, "Drinks", 2, now))
	mock.ExpectQuery(`FROM products p WHERE p.is_available = 1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "category_id", "name", "price", "image_ref", "is_available", "created_at", "updated_at"}).
			AddRow(10, 1, "Pho", 50000, "", true, now, now))

	menu, err := NewCatalogRepo(db).Menu(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(menu) != 2 || len(menu[0].Products) != 1 || menu[0].Products[0].Price != 50000 {
		t.Fatalf("menu = %+v", menu)
	}
	if menu[1].Products == nil || len(menu[1].Products) != 0 {
		t.Fatalf("empty category products = %#v", menu[1].Products)
	}
}
