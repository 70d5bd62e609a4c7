package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeToolchainUnavailable, "idf.py not found")

	if err == nil {
		t.Fatal("New should return non-nil error")
	}
	if err.Code != ErrCodeToolchainUnavailable {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeToolchainUnavailable)
	}
	if err.Message != "idf.py not found" {
		t.Errorf("Message = %v, want 'idf.py not found'", err.Message)
	}
	if err.Underlying != nil {
		t.Error("Underlying should be nil for New error")
	}
	if len(err.Stack) == 0 {
		t.Error("Stack should be captured")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ErrCodeToolchainInvocation, "%s exited with %d", "idf.py build", 2)
	if err.Message != "idf.py build exited with 2" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestWrap(t *testing.T) {
	underlying := errors.New("permission denied")
	err := Wrap(underlying, ErrCodeFileOperation, "remove sdkconfig")

	if err == nil {
		t.Fatal("Wrap should return non-nil error")
	}
	if err.Underlying != underlying {
		t.Error("Underlying should be preserved")
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Error("Error string should include underlying error")
	}
	if !strings.Contains(err.Error(), "FILE_OPERATION") {
		t.Error("Error string should include error code")
	}
}

func TestWrap_Nil(t *testing.T) {
	if err := Wrap(nil, ErrCodeInternal, "test"); err != nil {
		t.Error("Wrap of nil should return nil")
	}
}

func TestWithContext_SortedInMessage(t *testing.T) {
	err := New(ErrCodeToolchainInvocation, "step failed").
		WithContext("step", "build").
		WithContext("exit_code", 2)

	want := "[TOOLCHAIN_INVOCATION] step failed {exit_code: 2, step: build}"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestFriendly(t *testing.T) {
	err := New(ErrCodeToolchainUnavailable, "probe failed")
	if got := err.Friendly(); got != err.Error() {
		t.Errorf("Friendly() without user message = %q, want %q", got, err.Error())
	}

	err.WithUserMessage("Unable to execute idf.py")
	if got := err.Friendly(); got != "Unable to execute idf.py" {
		t.Errorf("Friendly() = %q", got)
	}
}

func TestWithRemediation(t *testing.T) {
	err := New(ErrCodeToolchainUnavailable, "probe failed")
	err.WithRemediation()
	if err.Remediation != nil {
		t.Error("empty remediation should be ignored")
	}

	tips := []string{"install ESP-IDF", "source export.sh"}
	err.WithRemediation(tips...)
	tips[0] = "mutated"
	if err.Remediation[0] != "install ESP-IDF" {
		t.Error("WithRemediation should copy tips")
	}
}

func TestIsCode(t *testing.T) {
	err := New(ErrCodeToolchainTimeout, "timeout")

	if !IsCode(err, ErrCodeToolchainTimeout) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeCancelled) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeToolchainTimeout) {
		t.Error("IsCode should return false for nil error")
	}
	if IsCode(errors.New("standard error"), ErrCodeInternal) {
		t.Error("IsCode should return false for plain errors")
	}
}

func TestIsCode_WalksChain(t *testing.T) {
	inner := New(ErrCodeToolchainTimeout, "build timed out")
	outer := Wrap(inner, ErrCodeToolchainInvocation, "pipeline failed")
	wrapped := fmt.Errorf("run: %w", outer)

	if !IsCode(wrapped, ErrCodeToolchainInvocation) {
		t.Error("IsCode should find outer code through fmt wrapping")
	}
	if !IsCode(wrapped, ErrCodeToolchainTimeout) {
		t.Error("IsCode should find inner code")
	}
}

func TestGetCode(t *testing.T) {
	if code := GetCode(New(ErrCodeCancelled, "interrupted")); code != ErrCodeCancelled {
		t.Errorf("GetCode = %v, want %v", code, ErrCodeCancelled)
	}
	if GetCode(nil) != "" {
		t.Error("GetCode should return empty string for nil")
	}
	if GetCode(errors.New("standard")) != ErrCodeInternal {
		t.Error("GetCode should return ErrCodeInternal for plain errors")
	}
}

func TestStackTrace(t *testing.T) {
	err := New(ErrCodeInternal, "test error")

	trace := err.StackTrace()
	if !strings.Contains(trace, "Stack trace:") {
		t.Error("StackTrace should contain header")
	}
	if len(err.Stack) == 0 {
		t.Error("Stack should have frames")
	}
}

func TestCaptureStack(t *testing.T) {
	frames := captureStack(0)
	if len(frames) == 0 {
		t.Fatal("captureStack should return at least one frame")
	}

	found := false
	for _, frame := range frames {
		if strings.Contains(frame.Function, "TestCaptureStack") {
			found = true
			break
		}
	}
	if !found {
		t.Error("Stack should contain the calling test frame")
	}
}
