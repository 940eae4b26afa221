// Package engine implements the installation pipeline: dependency stack
// resolution, idempotency checks, repository provisioning, and batched
// execution across backends.
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass classifies an error for recovery logic. Recovery here is always
// idempotent re-invocation; the class tells the caller whether retrying can
// help at all.
type ErrorClass string

const (
	// ErrorClassTransient indicates a failure that may succeed on re-run,
	// such as a network fetch.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a non-recoverable error: unknown targets,
	// dependency cycles, failed installs.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Error codes for the installation taxonomy.
const (
	CodeUnknownTarget    = "UNKNOWN_TARGET"
	CodeCycleDetected    = "CYCLE_DETECTED"
	CodeNoMethod         = "NO_APPLICABLE_METHOD"
	CodeBatchInstall     = "BATCH_INSTALL_FAILED"
	CodeInstall          = "INSTALL_FAILED"
	CodeRepoProvisioning = "REPO_PROVISIONING_FAILED"
	CodeNetwork          = "NETWORK_FAILURE"
)

// InstallError is a classified error with recipe/backend context. Cycle
// errors additionally carry the offending dependency path.
type InstallError struct {
	Class   ErrorClass
	Code    string
	Message string

	// Recipe is the recipe id involved, if applicable.
	Recipe string

	// Backend is the backend involved, if applicable.
	Backend string

	// Path is the cyclic dependency path for CYCLE_DETECTED errors.
	Path []string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Recipe != "" {
		fmt.Fprintf(&b, " (recipe=%s", e.Recipe)
		if e.Backend != "" {
			fmt.Fprintf(&b, ", backend=%s", e.Backend)
		}
		b.WriteString(")")
	} else if e.Backend != "" {
		fmt.Fprintf(&b, " (backend=%s)", e.Backend)
	}
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Path, " -> "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for chain inspection.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// Is matches on class and code so errors.Is works with taxonomy sentinels.
func (e *InstallError) Is(target error) bool {
	t, ok := target.(*InstallError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewPermanentError creates a permanent error.
func NewPermanentError(message string, err error) *InstallError {
	return &InstallError{Class: ErrorClassPermanent, Message: message, Err: err}
}

// NewTransientError creates a transient error.
func NewTransientError(message string, err error) *InstallError {
	return &InstallError{Class: ErrorClassTransient, Message: message, Err: err}
}

// WithCode sets the taxonomy code.
func (e *InstallError) WithCode(code string) *InstallError {
	e.Code = code
	return e
}

// WithRecipe adds recipe context.
func (e *InstallError) WithRecipe(id string) *InstallError {
	e.Recipe = id
	return e
}

// WithBackend adds backend context.
func (e *InstallError) WithBackend(name string) *InstallError {
	e.Backend = name
	return e
}

// WithPath attaches the cyclic dependency path.
func (e *InstallError) WithPath(path []string) *InstallError {
	e.Path = path
	return e
}

// CodeOf extracts the taxonomy code from an error chain, or "".
func CodeOf(err error) string {
	var e *InstallError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// CyclePath extracts the cyclic path from a CYCLE_DETECTED error, or nil.
func CyclePath(err error) []string {
	var e *InstallError
	if errors.As(err, &e) && e.Code == CodeCycleDetected {
		return e.Path
	}
	return nil
}
