package main

import (
	"errors"
	"testing"

	"github.com/meinside/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteStreamSinkErrorStopsRelaying(t *testing.T) {
	provider := newFakeProvider()
	defer provider.close()
	server := newTestServer(t, provider)

	provider.streamChunks = []string{"a", "b", "c", "d", "e"}

	sinkErr := errors.New("client went away")
	calls := 0
	dialog := []openai.ChatMessage{openai.NewChatUserMessage("hi")}

	// must return promptly even though more chunks are pending upstream
	result, chunks, err := server.completeStream("gpt-4o", dialog, openai.ChatCompletionOptions{}, func(chunk string) error {
		calls++
		return sinkErr
	})

	require.ErrorIs(t, err, sinkErr)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, chunks)
	assert.Equal(t, "a", result)
}

func TestCompleteStreamAccumulates(t *testing.T) {
	provider := newFakeProvider()
	defer provider.close()
	server := newTestServer(t, provider)

	provider.streamChunks = []string{"one ", "two ", "three"}

	var relayed []string
	dialog := []openai.ChatMessage{openai.NewChatUserMessage("count")}

	result, chunks, err := server.completeStream("gpt-4o", dialog, openai.ChatCompletionOptions{}, func(chunk string) error {
		relayed = append(relayed, chunk)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "one two three", result)
	assert.Equal(t, 3, chunks)
	assert.Equal(t, []string{"one ", "two ", "three"}, relayed)
}

func TestCompleteStreamUpstreamAbortReturnsPartial(t *testing.T) {
	provider := newFakeProvider()
	defer provider.close()
	server := newTestServer(t, provider)

	provider.streamChunks = []string{"partial", " never", " seen"}
	provider.abortAfter = 1

	dialog := []openai.ChatMessage{openai.NewChatUserMessage("hi")}

	result, chunks, _ := server.completeStream("gpt-4o", dialog, openai.ChatCompletionOptions{}, func(chunk string) error {
		return nil
	})

	// whatever arrived before the failure is kept
	assert.Equal(t, "partial", result)
	assert.Equal(t, 1, chunks)
}
