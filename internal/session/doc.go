// Package session owns the lifetime of one editing session: the ordered
// file set, metadata extraction, merge jobs, and the staging area they run
// in. Nothing a session accumulates survives Reset or Close.
package session
