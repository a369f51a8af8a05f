package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/viatico/internal/memo"
)

// maxTokens comfortably covers a three-sentence note.
const maxTokens = 300

type ClaudeWriter struct {
	client *anthropic.Client
	model  string
}

// NewClaudeWriter returns a Writer backed by the Anthropic Messages API.
// An empty baseURL uses the public endpoint.
func NewClaudeWriter(apiKey, model, baseURL string) *ClaudeWriter {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &ClaudeWriter{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (w *ClaudeWriter) Write(ctx context.Context, s memo.Summary) (string, error) {
	resp, err := w.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(w.model),
		System:    memo.Prompt,
		Messages:  []anthropic.Message{anthropic.NewUserTextMessage(s.Describe())},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call claude: %w", err)
	}

	var parts []string
	for _, c := range resp.Content {
		if c.Type == anthropic.MessagesContentTypeText {
			parts = append(parts, c.GetText())
		}
	}
	note := strings.TrimSpace(strings.Join(parts, "\n"))
	if note == "" {
		return "", fmt.Errorf("claude returned an empty note")
	}
	return note, nil
}
