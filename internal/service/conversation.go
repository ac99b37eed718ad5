package service

import (
	"fmt"
	"strings"

	"github.com/complexlabs/docchat/internal/domain"
)

// FallbackAnswer is the exact sentence the model must emit when the
// answer is absent from the supplied context.
const FallbackAnswer = "I couldn't find that information in the document."

// RenderConversation renders prior turns as user:/assistant: pairs in
// timestamp order, skipping turns missing either half, and appends the
// new question as a trailing user: line.
func RenderConversation(history []*domain.ChatTurn, question string) string {
	lines := make([]string, 0, len(history)*2+1)
	for _, turn := range history {
		if turn.Query == "" || turn.Answer == "" {
			continue
		}
		lines = append(lines, "user: "+turn.Query)
		lines = append(lines, "assistant: "+turn.Answer)
	}
	lines = append(lines, "user: "+question)
	return strings.Join(lines, "\n")
}

// AssemblePrompt merges retrieved context and the rendered conversation
// into the prompt sent to the generative model.
func AssemblePrompt(context []domain.ContextChunk, history []*domain.ChatTurn, question string) string {
	contextParts := make([]string, 0, len(context))
	for _, chunk := range context {
		contextParts = append(contextParts, chunk.Text)
	}

	return fmt.Sprintf(`You are a helpful assistant answering questions based only on the provided document context.

CONTEXT:
%s

CONVERSATION:
%s

Instructions:
- Only use the information in the CONTEXT.
- No line breaks (\n), bullets, or symbols unless present in CONTEXT.
- If the answer is not found, respond exactly with: %q`,
		strings.Join(contextParts, "\n---\n"),
		RenderConversation(history, question),
		FallbackAnswer,
	)
}
