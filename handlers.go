package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/meinside/openai-go"
)

// CORS middleware
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Token")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientAddr(r)) {
			s.writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next(w, r)
	}
}

// clientAddr returns the requesting client's address for rate limiting.
func clientAddr(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx != -1 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// Helper functions for JSON responses
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps an error from the pipeline to an HTTP response. Validation
// errors become 400s, upstream and extraction failures carry their details,
// anything unexpected is logged and hidden behind a generic message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInputTooLong), errors.Is(err, ErrInvalidRange):
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrExtraction):
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   ErrExtraction.Error(),
			"details": err.Error(),
		})
	default:
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   upstream.Message,
				"details": upstream.Detail,
			})
			return
		}
		Log.WithField("error", err).Error("request failed")
		s.writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeJSONError(w, http.StatusNotFound, "not found")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "OK")
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// the stop flag short-circuits before anything is looked up or stored
	if req.Stop {
		s.writeJSON(w, http.StatusOK, map[string]string{"reply": "stopped"})
		return
	}

	if err := ValidateMessage(req.Message); err != nil {
		s.writeError(w, err)
		return
	}

	s.serveChat(w, r, req, "chat")
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req RegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ValidateMessage(req.LastMessage); err != nil {
		s.writeError(w, err)
		return
	}

	// regeneration re-runs the chat path with the last message; the earlier
	// assistant turn stays in the log, so this appends rather than replaces
	s.serveChat(w, r, ChatRequest{
		Message:   req.LastMessage,
		History:   req.History,
		UserID:    req.UserID,
		MaxTokens: req.MaxTokens,
		Stream:    req.Stream,
	}, "regenerate")
}

// serveChat runs the shared chat pipeline: file extraction, context
// assembly, the upstream call (blocking or streaming) and the store update.
func (s *Server) serveChat(w http.ResponseWriter, r *http.Request, req ChatRequest, endpoint string) {
	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}

	requestID := uuid.New().String()
	Log.WithField("request", requestID).WithField("user", userID).
		WithField("endpoint", endpoint).Debug("chat request")

	fileText := ""
	if req.File != nil {
		data, err := base64.StdEncoding.DecodeString(req.File.Data)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid file payload")
			return
		}
		if err := ValidateFileSize(int64(len(data))); err != nil {
			s.writeError(w, err)
			return
		}
		if fileText, err = extractText(r.Context(), req.File.Name, data); err != nil {
			Log.WithField("request", requestID).WithField("error", err).Error("file extraction failed")
			s.writeError(w, err)
			return
		}
	}

	// an explicit history overrides the stored log for context assembly
	// only; the stored log is still what gets appended to afterwards
	history := req.History
	if history == nil {
		history = s.store.history(userID)
	}

	dialog := buildContext(s.systemPrompt(), fileText, history, req.Message)

	options := openai.ChatCompletionOptions{}.
		SetUser(userAgent(userID)).
		SetTemperature(s.conf.Temperature)
	if req.MaxTokens > 0 {
		options.SetMaxTokens(req.MaxTokens)
	}

	if req.Stream {
		s.streamChat(w, userID, endpoint, req.Message, dialog, options)
		return
	}

	reply, usage, err := s.complete(s.conf.Model, dialog, options)
	if err != nil {
		Log.WithField("request", requestID).WithField("error", err).Error("upstream call failed")
		s.writeError(w, err)
		return
	}

	s.store.append(userID,
		Turn{Type: turnTypeUser, Text: req.Message},
		Turn{Type: turnTypeAssistant, Text: reply})
	s.recordUsage(userID, endpoint, s.conf.Model, usage.PromptTokens, usage.CompletionTokens)

	s.writeJSON(w, http.StatusOK, ChatResponse{Reply: reply, History: s.store.history(userID)})
}

// streamChat forwards delta chunks to the caller as server-sent events and
// persists the accumulated text once the stream ends. A mid-stream upstream
// failure keeps whatever was received; the chunks already sent cannot be
// retracted.
func (s *Server) streamChat(w http.ResponseWriter, userID, endpoint, message string, dialog []openai.ChatMessage, options openai.ChatCompletionOptions) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	result, chunks, err := s.completeStream(s.conf.Model, dialog, options, func(chunk string) error {
		if _, werr := fmt.Fprintf(w, "data: %s\n\n", chunk); werr != nil {
			return werr
		}
		flusher.Flush()
		return nil
	})
	if err != nil && result == "" {
		Log.WithField("error", err).Error("stream failed")
		s.writeError(w, err)
		return
	}
	if err != nil {
		Log.WithField("error", err).WithField("chunks", chunks).Warn("stream ended early")
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	if result != "" {
		s.store.append(userID,
			Turn{Type: turnTypeUser, Text: message},
			Turn{Type: turnTypeAssistant, Text: result})
		s.recordUsage(userID, endpoint, s.conf.Model, 0, chunks)
	}
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ValidatePrompt(req.Prompt); err != nil {
		s.writeError(w, err)
		return
	}
	if err := ValidateImageCount(req.N); err != nil {
		s.writeError(w, err)
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}

	history := req.History
	if history == nil {
		history = s.store.history(userID)
	}

	prompt, rewriteUsage := s.rewritePrompt(req.Prompt, history)

	images, err := s.generateImages(prompt, req.Size, req.N)
	if err != nil {
		Log.WithField("error", err).Error("image generation failed")
		s.writeError(w, err)
		return
	}

	// image generation itself reports no token usage; the ledger row carries
	// the rewrite call's tokens
	s.recordUsage(userID, "image", s.conf.ImageModel, rewriteUsage.PromptTokens, rewriteUsage.CompletionTokens)
	s.writeJSON(w, http.StatusOK, ImageResponse{Success: true, Images: images})
}

func (s *Server) handleSystemPrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.conf.AdminToken != "" && r.Header.Get("X-Admin-Token") != s.conf.AdminToken {
		s.writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SystemPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ValidateSystemPrompt(req.NewPrompt); err != nil {
		s.writeError(w, err)
		return
	}

	s.setSystemPrompt(req.NewPrompt)
	Log.Info("system prompt updated")

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.UserID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "userId is required")
		return
	}

	s.store.reset(req.UserID)
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
