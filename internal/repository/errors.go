// Package repository contains the MySQL data access layer.  The sentinel
// errors below are shared by every repository (and by the in-memory
// adapters in repository/memory) so the service layer can map storage
// outcomes to typed application errors without knowing the backend.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when no row matches the lookup predicate.  For
// owner-scoped queries this also covers rows that exist under a different
// owner.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates a unique index, such as
// a duplicate email or store subdomain.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL unique key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
