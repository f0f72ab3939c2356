package chat

import "errors"

// ErrGenerationFailed wraps model errors surfaced to callers. HTTP handlers
// match on it with errors.Is to pick a status code.
var ErrGenerationFailed = errors.New("generation failed")
