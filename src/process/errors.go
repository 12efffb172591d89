package process

import "fmt"

// ToolError reports an external command that failed: it exited non-zero
// or could not be started. Diagnostic is the last meaningful line the
// command printed, already redacted.
type ToolError struct {
	Command    string
	ExitCode   int
	Diagnostic string
	Err        error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("%s could not be run: %s", e.Command, e.Diagnostic)
	}
	if e.Diagnostic == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, e.Diagnostic)
}

// Unwrap returns the start failure, if any.
func (e *ToolError) Unwrap() error {
	return e.Err
}

// CloudError reports an Azure CLI error found in command output. Some
// failures only surface as an "ERROR:" line with exit status 0, so this
// error can exist without a ToolError underneath.
type CloudError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CloudError) Error() string {
	return e.Message
}

// Unwrap returns the ToolError when the command also exited non-zero.
func (e *CloudError) Unwrap() error {
	return e.Err
}
