package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsSerializationFailure(t *testing.T) {
	if !isSerializationFailure(&pgconn.PgError{Code: "40001"}) {
		t.Fatal("SQLSTATE 40001 must classify as a serialization failure")
	}

	wrapped := fmt.Errorf("committing usage for account acc-1: %w", &pgconn.PgError{Code: "40001"})
	if !isSerializationFailure(wrapped) {
		t.Fatal("wrapped 40001 must still classify as a serialization failure")
	}

	if isSerializationFailure(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("a unique violation is not a serialization failure")
	}
	if isSerializationFailure(errors.New("connection refused")) {
		t.Fatal("a plain error is not a serialization failure")
	}
	if isSerializationFailure(nil) {
		t.Fatal("nil is not a serialization failure")
	}
}
