package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantReport bool
	}{
		{
			name:       "nil error",
			err:        nil,
			wantCode:   0,
			wantReport: false,
		},
		{
			name:       "plain error",
			err:        errors.New("containerd unreachable"),
			wantCode:   1,
			wantReport: true,
		},
		{
			name:       "exit error with cause",
			err:        &ExitError{Code: exitEntryPointNotFound, Err: errors.New("/app/main.py")},
			wantCode:   127,
			wantReport: true,
		},
		{
			name:       "propagated status",
			err:        &ExitError{Code: 3},
			wantCode:   3,
			wantReport: false,
		},
		{
			name:       "wrapped exit error",
			err:        fmt.Errorf("run: %w", &ExitError{Code: 42}),
			wantCode:   42,
			wantReport: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, report := ExitCode(tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if report != tt.wantReport {
				t.Errorf("report = %v, want %v", report, tt.wantReport)
			}
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	cause := errors.New("entry file missing")

	withCause := &ExitError{Code: 127, Err: cause}
	if got := withCause.Error(); got != "entry file missing" {
		t.Errorf("Error() = %q, want %q", got, "entry file missing")
	}
	if !errors.Is(withCause, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}

	propagated := &ExitError{Code: 5}
	if got := propagated.Error(); got != "exit status 5" {
		t.Errorf("Error() = %q, want %q", got, "exit status 5")
	}
}
