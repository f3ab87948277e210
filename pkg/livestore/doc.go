// Package livestore is the only allowed accessor to the externally
// shared "live" database (component B). It offers a primary backend
// (networked MySQL) and a file-backed fallback (embedded SQLite),
// selected at startup by whether the primary DSN is configured and
// reachable. Every access is a scoped acquisition: a statement is
// opened, executed, and the connection's transaction (if any) is
// committed and closed on every exit path, mirroring the original
// source's SQLite3Access/MySQLAccess context managers.
package livestore
