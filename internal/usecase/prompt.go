package usecase

import (
	"fmt"
	"strings"

	"assistant-engine/internal/domain"
	"assistant-engine/internal/reply"
)

func systemInstruction() string {
	return strings.Join([]string{
		"You are a helpful assistant. When you respond, please use Markdown formatting.",
		"For example, use **bold text**, *italic text*, `inline code`, and code blocks when appropriate.",
		"Break down complex steps into bullet points or numbered lists for clarity.",
		"",
		"IMPORTANT: If the user requests a report or a downloadable report, you MUST include exactly one link",
		"in the exact format: `" + reply.ReportMarker + "` somewhere in your final response text.",
		"",
		"If you use external sources, at the end provide:",
		reply.ReferencesMarker,
		"- [Name](URL): short description",
		"If no external sources, write `" + reply.ReferencesMarker + " None`.",
	}, "\n")
}

// buildTurnMessages orders the model input as: instruction, prior turns,
// attachment and grounding notes, then the new user turn.
func buildTurnMessages(history []domain.Turn, notes []domain.ChatMessage, userText string) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(history)+len(notes)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: systemInstruction()})
	for _, t := range history {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		messages = append(messages, domain.ChatMessage{Role: t.Role, Content: content})
	}
	messages = append(messages, notes...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: userText})
	return messages
}

func groundingNote(excerpts []string) domain.ChatMessage {
	var b strings.Builder
	b.WriteString("Relevant excerpts from the user's indexed documents:")
	for i, e := range excerpts {
		fmt.Fprintf(&b, "\n\n[%d] %s", i+1, strings.TrimSpace(e))
	}
	return domain.ChatMessage{Role: domain.RoleSystem, Content: b.String()}
}

func expansionMessages(brief string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{
			Role: domain.RoleSystem,
			Content: "You are a helpful assistant that specializes in creating detailed, comprehensive reports. " +
				"Given some brief content about a topic, produce a thorough, well-structured, and in-depth written report. " +
				"Include headings, subheadings, bullet points, data-driven insights, best practices, examples, " +
				"and potential future trends. Write as if producing a professional whitepaper or industry analysis document.",
		},
		{
			Role: domain.RoleUser,
			Content: "Here is a brief summary: " + brief + "\n\n" +
				"Now please create a significantly more in-depth, expanded, and detailed report that covers the topic comprehensively.",
		},
	}
}

func qaMessages(question string, excerpts []string) []domain.ChatMessage {
	grounding := "No relevant context was found."
	if len(excerpts) > 0 {
		grounding = strings.Join(excerpts, "\n\n---\n\n")
	}
	return []domain.ChatMessage{
		{
			Role: domain.RoleSystem,
			Content: "Answer the user's question using the context below. " +
				"If the context does not contain the answer, say that you do not know.\n\n" +
				"Context:\n" + grounding,
		},
		{Role: domain.RoleUser, Content: question},
	}
}

// truncateRunes cuts s to at most max runes.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// lastTurns returns at most window turns from the end of turns.
func lastTurns(turns []domain.Turn, window int) []domain.Turn {
	if window <= 0 || len(turns) <= window {
		return turns
	}
	return turns[len(turns)-window:]
}
