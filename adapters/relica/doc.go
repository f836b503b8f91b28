// Package relica provides the SQL metadata store using the Relica query builder.
//
// Relica (github.com/coregx/relica) wraps a *sql.DB opened with one of the
// supported drivers and builds dialect-correct queries for it.
//
// This package implements:
//   - provisioner.SubscriptionRepository
//   - provisioner.AdapterRepository
//
// Unique-constraint violations reported by MySQL, PostgreSQL or SQLite are mapped
// onto provisioner.ErrCodeConflict.
//
// Example usage:
//
//	db, err := sql.Open("mysql", "user:pass@tcp(localhost:3306)/dx?parseTime=true")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	repos := relica.NewRepositories(db, "mysql")
//
//	subs, err := provisioner.NewSubscriptionOrchestrator(
//	    provisioner.WithSubscriptionRepository(repos.Subscription),
//	    provisioner.WithSubscriptionGateways(broker, catalogue),
//	    provisioner.WithSubscriptionLogger(logger),
//	)
package relica
