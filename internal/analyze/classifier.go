package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/utils"
)

const (
	// DefaultClassifyTimeout bounds one chat-completions call.
	DefaultClassifyTimeout = 30 * time.Second

	DefaultModel = "gpt-4o-mini"

	temperature = 0.3
	maxTokens   = 150
)

// ErrBadReply is returned when the model answer holds no JSON object.
var ErrBadReply = errors.New("AI reply is not a JSON object")

// APIConfig points at an OpenAI-compatible chat-completions endpoint. It
// is supplied per request by the client.
type APIConfig struct {
	APIURL   string `json:"apiUrl"`
	APIKey   string `json:"apiKey"`
	APIModel string `json:"apiModel"`
}

// Suggestion is the model's proposal for one bookmark.
type Suggestion struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	IsNew    bool   `json:"isNew"`
}

// RenameMode tunes how much the suggested name may drift from the title.
type RenameMode string

const (
	RenameNormal       RenameMode = "normal"
	RenameAggressive   RenameMode = "aggressive"
	RenameConservative RenameMode = "conservative"
)

// Classifier asks the model for a name and a folder.
type Classifier struct {
	client *http.Client
}

func NewClassifier(timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = DefaultClassifyTimeout
	}
	return &Classifier{client: &http.Client{Timeout: timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify sends page to the endpoint described by cfg.
func (c *Classifier) Classify(ctx context.Context, cfg APIConfig, page Page, categories []string, mode RenameMode) (Suggestion, error) {
	if cfg.APIURL == "" {
		return Suggestion{}, errors.New("AI API url is empty")
	}
	model := cfg.APIModel
	if model == "" {
		model = DefaultModel
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(categories, mode)},
			{Role: "user", Content: userPrompt(page)},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return Suggestion{}, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return Suggestion{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return Suggestion{}, fmt.Errorf("AI analysis failed: %w", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Suggestion{}, fmt.Errorf("AI API error: %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Suggestion{}, fmt.Errorf("AI analysis failed: %w", err)
	}
	if len(out.Choices) == 0 {
		return Suggestion{}, ErrBadReply
	}
	return parseSuggestion(out.Choices[0].Message.Content)
}

// parseSuggestion decodes the object between the first '{' and the last
// '}' of a reply, tolerating prose or code fences around it.
func parseSuggestion(content string) (Suggestion, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Suggestion{}, ErrBadReply
	}
	var s Suggestion
	if err := json.Unmarshal([]byte(content[start:end+1]), &s); err != nil {
		return Suggestion{}, fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	return s, nil
}

func systemPrompt(categories []string, mode RenameMode) string {
	folders := "none"
	if len(categories) > 0 {
		folders = strings.Join(categories, ", ")
	}

	naming := "Length 15-35 characters, dense with information, stating what the page is for."
	switch mode {
	case RenameAggressive:
		naming = "Rewrite freely. Length 15-35 characters, stating what the page is for, ignoring the original title if it is vague."
	case RenameConservative:
		naming = "Stay close to the page title. Only shorten it or remove site boilerplate."
	}

	return `You organize bookmarks. Analyze the page and produce a meaningful bookmark name and folder.

Existing folders: ` + folders + `

## Naming
` + naming + `
Bad: "BettaFish - GitHub project page" (too generic)
Good: "BettaFish - multi-agent opinion analysis" (states the purpose)

## Folder
Prefer an existing folder; suggest a new one only if none fits.

## Output
Strict JSON: {"name": "bookmark name", "category": "folder name", "isNew": false}`
}

func userPrompt(p Page) string {
	return "URL: " + p.URL +
		"\nTitle: " + p.Title +
		"\nDescription: " + p.Description +
		"\nKeywords: " + p.Keywords +
		"\nH1: " + p.H1 +
		"\nPreview: " + p.Text
}
