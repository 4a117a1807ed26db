package extraction

import "errors"

// Common errors returned by remote extraction implementations
var (
	// ErrInvalidResponse is returned when the model response cannot be
	// parsed into the expected structure, even after repair attempts
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrRemoteUnavailable is returned when the remote model cannot be
	// reached (network error, timeout, auth failure)
	ErrRemoteUnavailable = errors.New("remote model unavailable")

	// ErrInvalidConfig is returned when an extractor configuration is invalid
	ErrInvalidConfig = errors.New("invalid extractor configuration")
)
