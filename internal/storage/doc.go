// Package storage keeps the operator audit log: one entry per chat command
// that changed tracker state (criteria updates, clears, refreshes).
//
// Two drivers are available. "file" appends JSON Lines next to the
// configured path; "sqlite" uses a pure Go SQLite database.
package storage
