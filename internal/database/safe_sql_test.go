package database

import (
	"errors"
	"testing"
)

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		wantErr bool
	}{
		{"valid batches", "batches", false},
		{"valid descriptors", "descriptors", false},
		{"valid failures", "failures", false},
		{"invalid table", "studies", true},
		{"SQL injection attempt", "batches; DROP TABLE batches;--", true},
		{"empty string", "", true},
		{"table with spaces", "table name", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTableName(tt.table)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTableName(%q) error = %v, wantErr %v", tt.table, err, tt.wantErr)
			}
			if tt.wantErr && err != nil {
				if !errors.Is(err, ErrInvalidTableName) {
					t.Errorf("expected ErrInvalidTableName, got %v", err)
				}
			}
		})
	}
}

func TestSafeTableName(t *testing.T) {
	got, err := SafeTableName("descriptors")
	if err != nil || got != "descriptors" {
		t.Errorf("SafeTableName(descriptors) = %q, %v", got, err)
	}
	if _, err := SafeTableName("sqlite_master"); err == nil {
		t.Error("expected error for sqlite_master")
	}
}
