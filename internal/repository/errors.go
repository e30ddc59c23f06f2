// Package repository defines error types that are reused across the
// data access layer. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row. Handlers
// translate this into an HTTP 404 (or 401 during login).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert violates the unique email
// index. Handlers translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is the MySQL server error number for a unique key
// violation (ER_DUP_ENTRY).
const mysqlDuplicateEntry = 1062
