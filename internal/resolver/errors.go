package resolver

import (
	"fmt"

	"defdoc/internal/registry"
)

// NotFoundError means a definition could not be located in a version that
// is expected to contain it.
type NotFoundError struct {
	Definition *registry.Definition
	Version    string
	Path       string
	What       string
	Err        error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s: %s not found in %s %s", e.Definition, e.What, e.Version, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// IdentityError means a class or module resolved to a different public name
// or owner than in an earlier version.
type IdentityError struct {
	Definition *registry.Definition
	Version    string
	Field      string
	Old        string
	New        string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("%s: %s changed between versions (was %q, %s has %q)",
		e.Definition, e.Field, e.Old, e.Version, e.New)
}

// Warning is a non-fatal resolution problem.
type Warning struct {
	Reason     string // ReasonMissingPublicName or ReasonMissingNamespace
	Definition *registry.Definition
	Version    string
	Message    string
}

const (
	ReasonMissingPublicName = "missing_public_name"
	ReasonMissingNamespace  = "missing_namespace"
)
