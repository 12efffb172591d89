package credentials

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialNotFound indicates the identity reference is empty or
	// unknown to the credential store.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrInvalidCredential indicates the stored record exists but is the
	// wrong kind or is missing required fields.
	ErrInvalidCredential = errors.New("invalid credential")
)

// StoreError wraps a backend failure with the store name and the reference
// being resolved. It never carries secret values.
type StoreError struct {
	Store string
	ID    string
	Err   error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("credential store %q: looking up %q: %v", e.Store, e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}
