// Package errors defines the sentinel errors shared across the banyan core.
// Every failure a component can return wraps exactly one of these, so callers
// can match preconditions deterministically with errors.Is.
package errors

import "errors"

// Authorization failures.
var (
	ErrOnlyExecutor       = errors.New("caller is not the executor")
	ErrOnlyAdmin          = errors.New("caller is not the admin")
	ErrOnlyEmergencyAdmin = errors.New("caller is not the emergency admin")
)

// Registry failures.
var (
	ErrAlreadyInstalled = errors.New("module already installed")
	ErrNotInstalled     = errors.New("module not installed")
	ErrInvalidKeycode   = errors.New("invalid keycode")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrAlreadyActive    = errors.New("policy already active")
	ErrNotActive        = errors.New("policy not active")
)

// Dependency graph failures.
var (
	ErrSelfDependency     = errors.New("component cannot depend on itself")
	ErrDependencyExists   = errors.New("dependency already recorded")
	ErrCircularDependency = errors.New("reverse dependency already recorded")
	ErrDependencyNotFound = errors.New("dependency not recorded")
)

// Lifecycle failures.
var (
	ErrAlreadyInitialized = errors.New("system already initialized")
	ErrNotInitialized     = errors.New("system not initialized")
	ErrPaused             = errors.New("system is paused")
	ErrNotPaused          = errors.New("system is not paused")
	ErrAlreadyShutdown    = errors.New("system already shut down")
	ErrShutdown           = errors.New("system is shut down")
	ErrInvalidVersion     = errors.New("invalid version")
)

// Configuration failures.
var (
	ErrSystemPaused         = errors.New("configuration is paused")
	ErrInvalidConfiguration = errors.New("configuration key not set")
)

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Wrap adds context to an existing error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Join(errors.New(message), err)
}
