package main

import (
	"fmt"
	"sync"

	"github.com/meinside/openai-go"
	"gorm.io/gorm"
)

const (
	turnTypeUser      = "user"
	turnTypeAssistant = "assistant"
)

// Turn is one message exchange unit in a conversation.
type Turn struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Server struct {
	sync.RWMutex // guards masterPrompt
	conf         config
	ai           *openai.Client
	store        *chatStore
	db           *gorm.DB
	limiter      *rateLimiter
	masterPrompt string
}

// UploadedFile is a transient upload, consumed once per request.
type UploadedFile struct {
	Name string `json:"name"`
	Data string `json:"data"` // base64 payload
}

type ChatRequest struct {
	Message   string        `json:"message"`
	History   []Turn        `json:"history,omitempty"`
	File      *UploadedFile `json:"file,omitempty"`
	Stop      bool          `json:"stop,omitempty"`
	UserID    string        `json:"userId,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream,omitempty"`
}

type RegenerateRequest struct {
	LastMessage string `json:"lastMessage"`
	History     []Turn `json:"history,omitempty"`
	UserID      string `json:"userId,omitempty"`
	MaxTokens   int    `json:"max_tokens,omitempty"`
	Stream      bool   `json:"stream,omitempty"`
}

type ChatResponse struct {
	Reply   string `json:"reply"`
	History []Turn `json:"history"`
}

type ImageRequest struct {
	Prompt  string `json:"prompt"`
	Size    string `json:"size,omitempty"`
	N       int    `json:"n,omitempty"`
	UserID  string `json:"userId,omitempty"`
	History []Turn `json:"history,omitempty"`
}

type ImageResponse struct {
	Success bool     `json:"success"`
	Images  []string `json:"images"`
}

type SystemPromptRequest struct {
	NewPrompt string `json:"newPrompt"`
}

type ResetRequest struct {
	UserID string `json:"userId"`
}

// UpstreamError carries the provider's diagnostic payload for a failed call.
type UpstreamError struct {
	Message string
	Detail  string
}

func (e *UpstreamError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// generate a user-agent value
func userAgent(userID string) string {
	return fmt.Sprintf("chatgpt-web:%s", userID)
}
