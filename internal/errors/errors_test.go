package errors

import (
	stderrors "errors"
	"testing"

	"infodyn/domain/core"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := core.NewDegeneracyError("joint", "determinant 0 <= epsilon 1e-12")
	wrapped := Wrap(cause, "estimator failed")

	if !stderrors.Is(wrapped, core.ErrNumericalDegeneracy) {
		t.Error("wrapping should preserve the sentinel chain")
	}
	if !core.IsDegeneracyError(wrapped) {
		t.Error("domain helper should see through the wrapper")
	}
	if got := GetCode(wrapped); got != CodeNumericalError {
		t.Errorf("expected %s, got %s", CodeNumericalError, got)
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("wrapping nil should stay nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("wrapping nil with format should stay nil")
	}
}

func TestWrapKeepsAppErrorCode(t *testing.T) {
	inner := ConfigInvalid("HISTORY must be >= 1")
	wrapped := Wrap(inner, "configuration validation failed")

	if got := GetCode(wrapped); got != CodeConfigInvalid {
		t.Errorf("expected %s, got %s", CodeConfigInvalid, got)
	}
	if !IsAppError(wrapped) {
		t.Error("wrapped AppError should still be an AppError")
	}
}

func TestGetCodeClassifiesDomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"configuration", core.NewConfigurationError("history", 0, "must be >= 1"), CodeConfigInvalid},
		{"dimension mismatch", core.NewDimensionMismatchError("series length", 100, 90), CodeInvalidInput},
		{"insufficient data", core.NewInsufficientDataError("embedding", 5, 3), CodeInvalidInput},
		{"not initialised", core.NewNotInitialisedError("ComputeAverage"), CodeInvalidInput},
		{"degeneracy", core.NewDegeneracyError("joint", "not positive definite"), CodeNumericalError},
		{"not found", core.NewNotFoundError("run", "missing"), CodeNotFound},
		{"unclassified", stderrors.New("boom"), CodeInternalError},
	}

	for _, test := range tests {
		if got := GetCode(test.err); got != test.code {
			t.Errorf("%s: expected %s, got %s", test.name, test.code, got)
		}
	}
}
