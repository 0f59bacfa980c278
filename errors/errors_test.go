package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_New_Fatal(t *testing.T) {
	err := New(ErrCodeTaskFailure, "boom")
	if !err.Fatal {
		t.Error("TASK_FAILURE should be fatal")
	}
	if New(ErrCodeStageClosed, "closed").Fatal {
		t.Error("STAGE_CLOSED should not be fatal")
	}
}

func TestTaskFailure_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := TaskFailure("digest", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if !IsTaskFailure(err) {
		t.Error("expected IsTaskFailure")
	}
	if !strings.Contains(err.Error(), "[digest]") {
		t.Errorf("expected segment in message, got %q", err.Error())
	}
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ProtocolViolation("finalize", "second terminal call"))
	if !stderrors.Is(err, New(ErrCodeProtocolViolation, "")) {
		t.Error("expected code match through wrapping")
	}
	if stderrors.Is(err, New(ErrCodeTaskFailure, "")) {
		t.Error("did not expect TASK_FAILURE match")
	}
	if !IsProtocolViolation(err) {
		t.Error("expected IsProtocolViolation")
	}
}

func TestAppError_ErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{"no segment", New(ErrCodeInternal, "oops"), "INTERNAL_ERROR: oops"},
		{"segment", StageClosed("s1"), "STAGE_CLOSED [s1]: stage no longer accepts input"},
		{"cause", Internal(stderrors.New("x")), "INTERNAL_ERROR: an unexpected error occurred (cause: x)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAppError_Details(t *testing.T) {
	err := InvalidConfig("max_concurrency", "must be positive").
		WithDetail("value", 0).
		WithDetails(map[string]any{"stage": "s"})
	if err.Details["field"] != "max_concurrency" {
		t.Errorf("expected field detail, got %v", err.Details["field"])
	}
	if err.Details["value"] != 0 || err.Details["stage"] != "s" {
		t.Errorf("unexpected details %v", err.Details)
	}
}

func TestAsAppError(t *testing.T) {
	if _, ok := AsAppError(stderrors.New("plain")); ok {
		t.Error("plain error is not an AppError")
	}
	appErr, ok := AsAppError(fmt.Errorf("w: %w", Canceled("write", stderrors.New("ctx"))))
	if !ok || appErr.Code != ErrCodeCanceled {
		t.Errorf("expected CANCELED AppError, got %v", appErr)
	}
	if IsAppError(nil) {
		t.Error("nil is not an AppError")
	}
}
