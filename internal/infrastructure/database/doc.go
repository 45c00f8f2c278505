// Package database manages the SQLite connection for lanpulse.
//
// It opens the database with WAL mode and a busy timeout, restricts the
// pool to a single writer (SQLite's model), and applies embedded SQL
// migrations on startup. Each migration runs in its own transaction so a
// failure leaves earlier migrations committed and later ones untouched.
package database
