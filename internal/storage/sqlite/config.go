// Package sqlite implements the tier store on SQLite (modernc.org/sqlite, no
// cgo). It is the default backend; registration happens in init.
package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:medallion.db?_pragma=busy_timeout(5000)"
	//   "data/medallion.db"
	//   ":memory:"
	DSN string

	// Schema is an attached database name; empty means main.
	Schema string

	// BatchSize bounds rows per INSERT statement.
	BatchSize int
}
