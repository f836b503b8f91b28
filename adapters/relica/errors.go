package relica

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
)

const (
	mysqlDuplicateEntry     = 1062
	postgresUniqueViolation = "23505"
)

// isUniqueViolation reports whether err is a unique-constraint violation on any supported driver.
func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == postgresUniqueViolation
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}

// insertError maps a failed insert onto the provisioning error kinds.
// Unique violations become conflicts, so a race lost at the store surfaces like a gate hit.
func insertError(err error, message string) error {
	if isUniqueViolation(err) {
		return provisioner.NewErrorWithCause(provisioner.ErrCodeConflict, message, err)
	}
	return provisioner.NewErrorWithCause(provisioner.ErrCodePersistence, message, err)
}

// rowCount receives a COUNT(*) AS n projection. Relica scans rows into structs only.
type rowCount struct {
	N int64 `db:"n"`
}

// requireAffected turns a statement that touched no rows into ErrNotFound.
func requireAffected(res sql.Result) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return provisioner.ErrNotFound
	}
	return nil
}
