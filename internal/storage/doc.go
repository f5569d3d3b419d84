// Package storage persists the schedule collection.
//
// Drivers:
//   - file: one JSON or YAML document, replaced atomically on every write
//   - sqlite: a single table in an SQLite database (modernc.org/sqlite)
package storage
