package main

import (
	"github.com/meinside/openai-go"
)

const fileGroundingPrefix = "The user attached a document. Use its contents as reference information when answering:\n\n"

// buildContext assembles the ordered context sent upstream: the system
// policy first, an optional file-grounding entry, prior turns in original
// order, and the new user message last.
func buildContext(policy, fileText string, history []Turn, message string) []openai.ChatMessage {
	context := []openai.ChatMessage{openai.NewChatSystemMessage(policy)}

	if fileText != "" {
		context = append(context, openai.NewChatSystemMessage(fileGroundingPrefix+fileText))
	}

	for _, t := range history {
		if t.Type == turnTypeAssistant {
			context = append(context, openai.NewChatAssistantMessage(t.Text))
		} else {
			context = append(context, openai.NewChatUserMessage(t.Text))
		}
	}

	return append(context, openai.NewChatUserMessage(message))
}
