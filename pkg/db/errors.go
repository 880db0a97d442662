package db

import "strings"

// IsUniqueViolation reports whether err is a unique violation, optionally
// scoped to one constraint. Postgres names the constraint in its message;
// sqlite names the violated columns instead, so any sqlite unique violation
// matches regardless of constraintName.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return true
	}
	if !strings.Contains(msg, "duplicate key value") {
		return false
	}
	if constraintName == "" {
		return true
	}
	return strings.Contains(msg, constraintName)
}
