// Package jobs persists merge job records in a session-scoped SQLite
// database living inside the staging directory. The database is removed on
// session reset, so nothing survives across sessions.
package jobs
