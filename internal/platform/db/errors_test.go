package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(pgx.ErrNoRows) {
		t.Error("expected pgx.ErrNoRows to match")
	}
	if !IsNoRows(fmt.Errorf("get user: %w", pgx.ErrNoRows)) {
		t.Error("expected wrapped pgx.ErrNoRows to match")
	}
	if IsNoRows(errors.New("boom")) {
		t.Error("unexpected match for unrelated error")
	}
}

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	name, ok := UniqueViolation(err)
	if !ok {
		t.Fatal("expected unique violation")
	}
	if name != "users_email_key" {
		t.Errorf("expected constraint users_email_key, got %q", name)
	}

	if _, ok := UniqueViolation(&pgconn.PgError{Code: "23503"}); ok {
		t.Error("foreign key violation must not count as unique violation")
	}
	if _, ok := UniqueViolation(errors.New("boom")); ok {
		t.Error("unexpected match for plain error")
	}
}
