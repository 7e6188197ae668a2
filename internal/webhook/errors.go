package webhook

import "fmt"

// AuthError reports a delivery that failed authentication. The boundary maps
// it to 401. Messages never include secret material.
type AuthError struct {
	Provider string
	Reason   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s delivery failed authentication: %s", e.Provider, e.Reason)
}

// ValidationError reports a malformed delivery or a missing required field.
// The boundary maps it to 400.
type ValidationError struct {
	Provider string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s delivery: %s", e.Provider, e.Reason)
}

// NotFoundError reports a delivery whose embedded resource identifier matches
// no connected integration. The boundary maps it to 404.
type NotFoundError struct {
	Provider string
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no connected %s integration for %s", e.Provider, e.Resource)
}

// DependencyError reports a datastore or analyzer failure while processing a
// delivery. The boundary maps it to 500 and logs it with provider and action
// context; it is never allowed to crash the process.
type DependencyError struct {
	Provider string
	Action   string
	Err      error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s %s processing failed: %v", e.Provider, e.Action, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}
