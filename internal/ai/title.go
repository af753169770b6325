package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// maxTitleWords caps generated titles so they fit a list row.
const maxTitleWords = 6

// Titler generates short meeting titles from transcripts via the OpenAI
// chat completions API.
type Titler struct {
	client *openai.Client
}

// NewTitler creates a Titler with the given API key.
func NewTitler(apiKey string) *Titler {
	return &Titler{client: openai.NewClient(apiKey)}
}

// GenerateTitle summarizes the transcript into a title of at most six words.
// Long transcripts are truncated before prompting; the model only needs the
// opening to name the meeting.
func (t *Titler) GenerateTitle(ctx context.Context, transcript string) (string, error) {
	excerpt := transcript
	if len(excerpt) > 4000 {
		excerpt = excerpt[:4000]
	}

	log.Printf("[AI] Generating title from transcript (%d chars)", len(transcript))

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You name meeting recordings. Reply with a title of at most " +
					"six words describing what the meeting is about. No quotes, no punctuation at the end.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: excerpt,
			},
		},
		Temperature: 0.3,
		MaxTokens:   30,
	})
	if err != nil {
		return "", fmt.Errorf("title completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("title completion returned no choices")
	}

	title := strings.TrimSpace(resp.Choices[0].Message.Content)
	title = strings.Trim(title, `"'`)

	// Enforce the word cap even when the model ignores it.
	words := strings.Fields(title)
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}
	title = strings.Join(words, " ")

	log.Printf("[AI] Generated title: %s", title)
	return title, nil
}
