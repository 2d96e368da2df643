// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the service layer to
// distinguish between different failure scenarios without inspecting
// driver errors itself.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as cancelling a member package that is no longer
// active.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by user inserts/updates that hit the unique
// email index.
var ErrEmailExists = errors.New("email already exists")

// ErrDuplicate is returned when an insert violates a unique key other than
// the ones with a dedicated sentinel (order numbers, invoice numbers,
// slugs, voucher codes).
var ErrDuplicate = errors.New("duplicate key")

// ErrInvoiceExists signals that the order or member package already has an
// invoice.
var ErrInvoiceExists = errors.New("invoice already exists")

const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL duplicate-key error.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// duplicateKey reports whether err is a duplicate-key error on the named
// index.  MySQL reports the index name in the message.
func duplicateKey(err error, index string) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry && strings.Contains(me.Message, index)
}
