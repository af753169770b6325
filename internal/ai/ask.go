package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// TranscriptContext is one stored meeting offered as grounding for a question.
type TranscriptContext struct {
	MeetingID  string
	Title      string
	CreatedAt  string
	Transcript string
}

// Ask answers a question grounded in the given meeting transcripts. The
// model is told to refuse rather than invent when the transcripts do not
// contain the answer.
func (t *Titler) Ask(ctx context.Context, question string, meetings []TranscriptContext) (string, error) {
	if len(meetings) == 0 {
		return "", fmt.Errorf("no transcripts available to answer the question")
	}

	log.Printf("[AI] Ask: %q over %d transcripts", question, len(meetings))

	systemPrompt := `You answer questions about a user's recorded meetings using only the transcripts provided. ` +
		`Do not invent information. If the transcripts do not contain the answer, say so plainly. ` +
		`Answer briefly and directly.`

	userPrompt := fmt.Sprintf("Meeting transcripts:\n\n%s\nQuestion: %s", buildTranscriptContext(meetings), question)

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return "", fmt.Errorf("ask completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ask completion returned no choices")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	log.Printf("[AI] Ask answered (%d chars, %d tokens)", len(answer), resp.Usage.TotalTokens)
	return answer, nil
}

func buildTranscriptContext(meetings []TranscriptContext) string {
	var b strings.Builder
	for i, m := range meetings {
		title := m.Title
		if title == "" {
			title = "(untitled)"
		}
		b.WriteString(fmt.Sprintf("=== Meeting %d: %s (ID %s, %s) ===\n", i+1, title, m.MeetingID, m.CreatedAt))
		transcript := m.Transcript
		if len(transcript) > 4000 {
			transcript = transcript[:4000] + "..."
		}
		b.WriteString(transcript)
		b.WriteString("\n\n")
	}
	return b.String()
}
