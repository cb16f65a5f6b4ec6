package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "Unauthorized"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "license not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "license store unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("duplicate key")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeFollowsWrappedChain(t *testing.T) {
	inner := New(CodeNotFound, "license not found")
	outer := fmt.Errorf("revoke: %w", inner)
	if !IsCode(outer, CodeNotFound) {
		t.Fatalf("expected IsCode to find wrapped not-found")
	}
	if IsCode(outer, CodeConflict) {
		t.Fatalf("unexpected conflict match")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestDumpCapturesPgDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "licenses_pkey", TableName: "licenses", Message: "duplicate key value"}
	err := Wrap(CodeConflict, pgErr, "insert license")

	d := Dump(err)
	if d.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", d.Code)
	}
	if d.SQL == nil || d.SQL.Driver != "pgx" || d.SQL.Code != "23505" || d.SQL.Constraint != "licenses_pkey" || d.SQL.Table != "licenses" {
		t.Fatalf("unexpected pg dump %+v", d)
	}
	if d.Retryable {
		t.Fatalf("conflicts are not retryable")
	}
	if fields := d.LogFields(); fields["sql_constraint"] != "licenses_pkey" {
		t.Fatalf("unexpected log fields %v", fields)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected wrapped chain entries, got %v", d.Chain)
	}
}

func TestDumpCapturesPqDiagnostics(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "licenses_pkey"})

	d := Dump(err)
	if d.SQL == nil || d.SQL.Driver != "pq" || d.SQL.Code != "23505" || d.SQL.Constraint != "licenses_pkey" {
		t.Fatalf("unexpected pq dump %+v", d)
	}
	if d.Code != "" {
		t.Fatalf("untyped chain should have no code, got %s", d.Code)
	}
}

func TestDumpWithoutDriverError(t *testing.T) {
	d := Dump(Wrap(CodeDependency, stdErrors.New("dial tcp: refused"), "license store unavailable"))
	if d.SQL != nil {
		t.Fatalf("expected no sql diagnostics, got %+v", d.SQL)
	}
	if !d.Retryable {
		t.Fatalf("dependency errors are retryable")
	}
	if _, ok := d.LogFields()["sql_driver"]; ok {
		t.Fatalf("sql fields should be omitted")
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("nil error should dump empty")
	}
}

func TestStatusRoundTripAndParse(t *testing.T) {
	for code, meta := range metadataByCode {
		if code == CodeIdempotency {
			continue // shares 409 with conflict
		}
		if got := CodeForStatus(meta.HTTPStatus); got != code {
			t.Fatalf("status %d mapped to %s, want %s", meta.HTTPStatus, got, code)
		}
	}
	if CodeForStatus(http.StatusTeapot) != CodeInternal {
		t.Fatalf("unknown statuses should map to internal")
	}
	if code, ok := ParseCode("IDEMPOTENCY_KEY_REUSED"); !ok || code != CodeIdempotency {
		t.Fatalf("expected idempotency code to parse")
	}
	if _, ok := ParseCode("NOPE"); ok {
		t.Fatalf("unknown code should not parse")
	}
}

func TestErrorStringAndRetryable(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("dial tcp"), "license store unavailable")
	if err.Error() != "DEPENDENCY_ERROR: license store unavailable: dial tcp" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
	if !IsRetryable(fmt.Errorf("op: %w", err)) {
		t.Fatalf("dependency errors should be retryable")
	}
	if IsRetryable(Newf(CodeValidation, "owner %q too long", "x")) {
		t.Fatalf("validation errors are not retryable")
	}
	if IsRetryable(stdErrors.New("plain")) {
		t.Fatalf("untyped errors are not retryable")
	}
}
