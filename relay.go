package main

import (
	"strings"
	"time"

	"github.com/meinside/openai-go"
)

const rewriteInstruction = "You are an expert prompt writer for an image generation model. " +
	"Rewrite the user's prompt into a single detailed visual description. " +
	"Reply with the description only, no quotes or extra text."

// complete issues one blocking chat completion against the upstream provider.
func (s *Server) complete(model string, history []openai.ChatMessage, options openai.ChatCompletionOptions) (string, openai.Usage, error) {
	started := time.Now()
	response, err := s.ai.CreateChatCompletion(model, history, options)
	upstreamDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		return "", openai.Usage{}, &UpstreamError{Message: "chat completion failed", Detail: err.Error()}
	}

	if len(response.Choices) == 0 {
		return "", response.Usage, &UpstreamError{Message: "no response from API"}
	}

	answer, err := response.Choices[0].Message.ContentString()
	if err != nil {
		return "", response.Usage, &UpstreamError{Message: "malformed response from API", Detail: err.Error()}
	}

	return answer, response.Usage, nil
}

// completeStream opens a provider-side stream and forwards each delta chunk
// to sink as it arrives. The accumulated text is returned together with the
// number of chunks received; on a mid-stream failure the partial text
// received so far is still returned.
func (s *Server) completeStream(model string, history []openai.ChatMessage, options openai.ChatCompletionOptions, sink func(chunk string) error) (string, int, error) {
	type completion struct {
		response openai.ChatCompletion
		done     bool
		err      error
	}
	ch := make(chan completion, 1)

	// quit unblocks the stream callback when this function returns early,
	// so the client's stream goroutine can finish and release its response
	// body instead of blocking on a send forever
	quit := make(chan struct{})
	defer close(quit)

	started := time.Now()
	if _, err := s.ai.CreateChatCompletion(model, history,
		options.SetStream(func(r openai.ChatCompletion, d bool, e error) {
			select {
			case ch <- completion{response: r, done: d, err: e}:
			case <-quit:
				return
			}
			if d {
				close(ch)
			}
		})); err != nil {
		upstreamDuration.Observe(time.Since(started).Seconds())
		return "", 0, &UpstreamError{Message: "chat completion failed", Detail: err.Error()}
	}

	result := ""
	tokens := 0
	for comp := range ch {
		if comp.err != nil {
			upstreamDuration.Observe(time.Since(started).Seconds())
			return result, tokens, &UpstreamError{Message: "stream failed", Detail: comp.err.Error()}
		}
		if comp.done || len(comp.response.Choices) == 0 {
			continue
		}
		if comp.response.Choices[0].Delta.Content == nil {
			continue
		}
		chunk, err := comp.response.Choices[0].Delta.ContentString()
		if err != nil {
			continue
		}
		result += chunk
		tokens++
		if err := sink(chunk); err != nil {
			// caller has gone away; stop relaying
			upstreamDuration.Observe(time.Since(started).Seconds())
			return result, tokens, err
		}
	}
	upstreamDuration.Observe(time.Since(started).Seconds())

	return result, tokens, nil
}

// rewritePrompt asks the mini model for a more detailed rendition of an
// image prompt, folding recent conversation text in for continuity. It is
// best-effort: any failure falls back to the original prompt unchanged.
// Token usage of the rewrite call is returned for the ledger.
func (s *Server) rewritePrompt(prompt string, history []Turn) (string, openai.Usage) {
	instruction := rewriteInstruction
	if len(history) > 0 {
		instruction += "\n\nRecent conversation for context:\n" + foldHistory(history, 6)
	}

	dialog := []openai.ChatMessage{
		openai.NewChatSystemMessage(instruction),
		openai.NewChatUserMessage(prompt),
	}

	response, err := s.ai.CreateChatCompletion(s.conf.MiniModel, dialog,
		openai.ChatCompletionOptions{}.SetTemperature(0.3))
	if err != nil {
		Log.WithField("error", err).Warn("prompt rewrite failed, using original prompt")
		return prompt, openai.Usage{}
	}
	if len(response.Choices) == 0 {
		return prompt, response.Usage
	}

	detailed, err := response.Choices[0].Message.ContentString()
	if err != nil || strings.TrimSpace(detailed) == "" {
		return prompt, response.Usage
	}

	return strings.TrimSpace(detailed), response.Usage
}

// foldHistory renders the last n turns as plain text.
func foldHistory(history []Turn, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}

	var sb strings.Builder
	for _, t := range history {
		sb.WriteString(t.Type)
		sb.WriteString(": ")
		sb.WriteString(t.Text)
		sb.WriteByte('\n')
	}

	return sb.String()
}
