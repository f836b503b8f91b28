package relica

import (
	"database/sql"
)

// DefaultTablePrefix is the prefix of the tables created by the bundled migrations.
const DefaultTablePrefix = "dx_"

// Repositories holds all repository implementations.
type Repositories struct {
	Subscription *SubscriptionRepository
	Adapter      *AdapterRepository
}

// NewRepositories creates all repository implementations using Relica.
//
// The db parameter should be an *sql.DB connected to MySQL, PostgreSQL, or SQLite.
// The driverName should be "mysql", "postgres", or "sqlite3".
func NewRepositories(db *sql.DB, driverName string) *Repositories {
	return NewRepositoriesWithPrefix(db, driverName, DefaultTablePrefix)
}

// NewRepositoriesWithPrefix creates all repository implementations with a custom table prefix.
func NewRepositoriesWithPrefix(db *sql.DB, driverName, prefix string) *Repositories {
	return &Repositories{
		Subscription: NewSubscriptionRepositoryWithPrefix(db, driverName, prefix),
		Adapter:      NewAdapterRepositoryWithPrefix(db, driverName, prefix),
	}
}
