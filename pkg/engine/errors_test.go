package engine

import (
	"errors"
	"strings"
	"testing"
)

func TestInstallErrorFormatting(t *testing.T) {
	err := NewPermanentError("install failed", errors.New("exit status 1")).
		WithCode(CodeInstall).WithRecipe("ripgrep").WithBackend("apt")

	msg := err.Error()
	for _, want := range []string{"[INSTALL_FAILED]", "recipe=ripgrep", "backend=apt", "exit status 1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in %q", want, msg)
		}
	}
}

func TestInstallErrorCyclePathFormatting(t *testing.T) {
	err := NewPermanentError("dependency cycle detected", nil).
		WithCode(CodeCycleDetected).WithPath([]string{"p", "q", "p"})

	if !strings.Contains(err.Error(), "p -> q -> p") {
		t.Errorf("Expected cycle path in message, got %q", err.Error())
	}
}

func TestInstallErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewTransientError("wrapper", cause).WithCode(CodeNetwork)

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause through Unwrap")
	}
}

func TestInstallErrorIsMatchesClassAndCode(t *testing.T) {
	err := NewTransientError("network down", nil).WithCode(CodeNetwork)
	sentinel := &InstallError{Class: ErrorClassTransient, Code: CodeNetwork}

	if !errors.Is(err, sentinel) {
		t.Error("Expected class+code sentinel match")
	}

	other := &InstallError{Class: ErrorClassPermanent, Code: CodeNetwork}
	if errors.Is(err, other) {
		t.Error("Expected class mismatch to not match")
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(errors.New("plain")) != "" {
		t.Error("Expected empty code for plain errors")
	}

	wrapped := NewPermanentError("inner", nil).WithCode(CodeUnknownTarget)
	if CodeOf(wrapped) != CodeUnknownTarget {
		t.Errorf("Expected UNKNOWN_TARGET, got %q", CodeOf(wrapped))
	}
}
