package ai

import "errors"

var (
	// ErrInvalidConfig is returned by NewGenerator for unusable settings.
	ErrInvalidConfig = errors.New("invalid AI configuration")

	// ErrTransport means the chat-completion call did not complete.
	ErrTransport = errors.New("ai request failed")
	// ErrMalformedOutput means no structured data could be recovered from the model text.
	ErrMalformedOutput = errors.New("no valid JSON found in response")
	// ErrShapeViolation means the recovered data lacks a usable "files" list.
	ErrShapeViolation = errors.New("invalid AI response structure")
	// ErrExhausted means every attempt failed.
	ErrExhausted = errors.New("attempts exhausted")
)
