// Package testutil provides testing utilities for specd.
//
// This package contains mock errors and test helpers used across test
// files. It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
// These errors are used to simulate various failure scenarios in tests.
var (
	// ErrMockImplementFailed simulates a generic implementation failure.
	ErrMockImplementFailed = errors.New("implementation step failed")

	// ErrMockPermission simulates an opaque permission failure from an
	// external collaborator ("permission denied" message, no sentinel).
	ErrMockPermission = errors.New("permission denied writing output file")

	// ErrMockMissingDep simulates a missing-dependency failure.
	ErrMockMissingDep = errors.New("module not found in workspace")

	// ErrMockSyntax simulates a compilation failure.
	ErrMockSyntax = errors.New("syntax error in generated code")

	// ErrMockTimeout simulates a timeout message from a collaborator.
	ErrMockTimeout = errors.New("operation timed out after 30s")

	// ErrMockNetwork simulates a transient network failure.
	ErrMockNetwork = errors.New("network error contacting service")
)
