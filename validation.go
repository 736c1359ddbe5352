package main

import (
	"errors"
	"fmt"
	"strings"
)

// Input validation errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInputTooLong = errors.New("input too long")
	ErrInvalidRange = errors.New("value out of range")
)

// Validation constraints
const (
	MaxMessageLength = 32000
	MaxPromptLength  = 4000
	MaxFileSize      = 10 * 1024 * 1024 // 10MB
)

// ValidateMessage validates a chat message before it is forwarded upstream.
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message cannot be empty", ErrInvalidInput)
	}

	if len(message) > MaxMessageLength {
		return fmt.Errorf("%w: message must be at most %d characters", ErrInputTooLong, MaxMessageLength)
	}

	return nil
}

// ValidatePrompt validates an image generation prompt.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: prompt cannot be empty", ErrInvalidInput)
	}

	if len(prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt must be at most %d characters", ErrInputTooLong, MaxPromptLength)
	}

	return nil
}

// ValidateSystemPrompt validates a replacement system prompt.
func ValidateSystemPrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: prompt cannot be empty", ErrInvalidInput)
	}

	if len(prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt must be at most %d characters", ErrInputTooLong, MaxPromptLength)
	}

	return nil
}

// ValidateFileSize validates uploaded file size
func ValidateFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("%w: file size must be greater than 0", ErrInvalidInput)
	}

	if size > MaxFileSize {
		return fmt.Errorf("%w: file size must be less than %d bytes", ErrInputTooLong, MaxFileSize)
	}

	return nil
}

// ValidateImageCount validates the requested number of generated images.
// Zero is accepted and means the provider default.
func ValidateImageCount(n int) error {
	if n < 0 || n > 10 {
		return fmt.Errorf("%w: n must be between 0 and 10", ErrInvalidRange)
	}

	return nil
}
