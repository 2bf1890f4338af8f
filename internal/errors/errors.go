// Package errors defines the sentinel errors shared across the service.
package errors

import "errors"

var (
	ErrDownloadNotFound    = errors.New("download not found")
	ErrNoPendingPrompt     = errors.New("no pending confirmation prompt")
	ErrAlreadyTerminal     = errors.New("download already in a terminal state")
	ErrServiceShuttingDown = errors.New("service is shutting down")
)
