package pipeline

import (
	"fmt"
	"strings"

	"github.com/taxline/taxline/internal/conversation"
	"github.com/taxline/taxline/internal/llm"
)

// answerSystemPrompt is the persona and citation contract for answer
// generation.
const answerSystemPrompt = `You are a knowledgeable tax advisory assistant. Answer the user's question using ONLY the numbered reference material provided.

Rules:
- Cite sources with bare bracketed numbers like [1] or [2] that match the reference numbering. Use no other citation style.
- Do not append a references or sources section; the numbered markers are sufficient.
- If the reference material does not cover the question, say so plainly and recommend consulting a tax professional.
- Keep answers factual and concise. Do not invent figures, thresholds, or deadlines that are not in the references.`

// contextualizeSystemPrompt instructs the standalone-query rewrite.
const contextualizeSystemPrompt = `Rewrite the user's latest question as a single standalone question that can be understood without the preceding conversation. Preserve the user's intent and any subject carried over from earlier turns. Reply with the rewritten question only, no explanation.`

// buildContextualizeRequest packs the recent history and the latest query
// into a rewrite request.
func buildContextualizeRequest(query string, history []conversation.Message) llm.CompletionRequest {
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&b, "\nLatest question: %s", query)

	return llm.CompletionRequest{
		System:   contextualizeSystemPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
	}
}

// buildAnswerRequest combines the persona, the assembled context, the
// bounded history, and the query into one generation request.
func buildAnswerRequest(query, contextText string, history []conversation.Message) llm.CompletionRequest {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == conversation.RoleAssistant || m.Role == conversation.RoleExpert {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}

	user := fmt.Sprintf("Reference material:\n%s\n\nQuestion: %s", contextText, query)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: user})

	return llm.CompletionRequest{
		System:   answerSystemPrompt,
		Messages: messages,
	}
}
