// Package database provides safe SQL utilities to prevent SQL injection.
package database

import (
	"fmt"
	"regexp"
)

// AllowedTables is the whitelist of valid table names in the history database.
// Any table name not in this list will be rejected.
var AllowedTables = map[string]bool{
	"batches":     true,
	"descriptors": true,
	"failures":    true,
}

// ErrInvalidTableName is returned when a table name is not in the whitelist.
var ErrInvalidTableName = fmt.Errorf("invalid table name")

var validIdentifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateTableName checks if a table name is in the allowed list.
func ValidateTableName(table string) error {
	if !AllowedTables[table] || !validIdentifierPattern.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return nil
}

// SafeTableName returns the table name if valid, otherwise returns an error.
// Use this when you need the table name for SQL construction.
func SafeTableName(table string) (string, error) {
	if err := ValidateTableName(table); err != nil {
		return "", err
	}
	return table, nil
}
