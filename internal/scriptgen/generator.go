package scriptgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dramaplay/internal/script"
	"github.com/sashabaranov/go-openai"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = openai.GPT4oMini

// Level is the reading level a script is pitched at.
type Level string

const (
	Beginner     Level = "Beginner"
	Intermediate Level = "Intermediate"
	Advanced     Level = "Advanced"
)

// ParseLevel validates a level name case-insensitively. Empty means
// Intermediate.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "beginner":
		return Beginner, nil
	case "", "intermediate":
		return Intermediate, nil
	case "advanced":
		return Advanced, nil
	}
	return "", fmt.Errorf("invalid level %q: must be beginner, intermediate or advanced", s)
}

var (
	// ErrMissingAPIKey indicates no OpenAI key was configured.
	ErrMissingAPIKey = errors.New("OpenAI API key is required")

	// ErrEmptyResponse indicates the model returned no usable items.
	ErrEmptyResponse = errors.New("model returned no script items")
)

// Config holds the generator configuration.
type Config struct {
	APIKey      string
	BaseURL     string // optional, e.g. for a compatible proxy
	Model       string
	Temperature float32
}

// Request describes one generation.
type Request struct {
	Text     string
	Title    string
	Mode     script.Mode
	Level    Level
	Language string // narration language, model's choice when empty
}

// Generator writes scripts with a chat completion model.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewGenerator creates a generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Generator{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Generate asks the model for a script adapting req.Text.
func (g *Generator) Generate(ctx context.Context, req Request) (*script.Script, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("no source text to adapt")
	}
	if req.Mode == "" {
		req.Mode = script.ChildrenBook
	}
	if req.Level == "" {
		req.Level = Intermediate
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions(req)},
			{Role: openai.ChatMessageRoleUser, Content: "Here is the text to adapt:\n\n" + req.Text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	items, err := parseItems(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	log.Info("script generated", "model", g.model, "items", len(items),
		"tokens", resp.Usage.TotalTokens)

	return &script.Script{Title: req.Title, Mode: req.Mode, Items: items}, nil
}

// parseItems accepts either {"items": [...]} or a bare array. Items that
// fail validation are dropped.
func parseItems(content string) ([]script.Item, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyResponse
	}

	var raw []script.Item
	if strings.HasPrefix(content, "[") {
		if err := json.Unmarshal([]byte(content), &raw); err != nil {
			return nil, fmt.Errorf("invalid script JSON: %w", err)
		}
	} else {
		var obj struct {
			Items []script.Item `json:"items"`
		}
		if err := json.Unmarshal([]byte(content), &obj); err != nil {
			return nil, fmt.Errorf("invalid script JSON: %w", err)
		}
		raw = obj.Items
	}

	items := raw[:0]
	for i, it := range raw {
		if err := it.Validate(); err != nil {
			log.Warn("dropping generated item", "index", i, "error", err)
			continue
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return nil, ErrEmptyResponse
	}
	return items, nil
}

func instructions(req Request) string {
	persona := "a warm, playful storyteller who delights young readers and uses sound effects like magic"
	if req.Mode == script.ExamPassage {
		persona = "a serious, charismatic tutor focused on what matters for the exam"
	}

	var b strings.Builder
	b.WriteString("You write audio drama scripts that help students understand a text.\n")
	fmt.Fprintf(&b, "Audience: %s level students.\n", req.Level)
	fmt.Fprintf(&b, "Narrator: %s.\n\n", persona)
	b.WriteString(`Respond with a JSON object of the form:
{"items": [
  {"type": "speech", "content": "Text to be spoken", "voiceSettings": {"style": 0.5, "stability": 0.7}},
  {"type": "sfx", "content": "Short sound effect description, e.g. page turn"}
]}

Rules:
- Break the text into digestible spoken parts.
- Insert sfx items where they add atmosphere.
- Speech may contain audio tags such as [giggles], [whispers] or [excited].
- Keep explanations concise and engaging.
`)
	if req.Language != "" {
		fmt.Fprintf(&b, "- Write the explanations in %s and read quoted source text in its original language.\n", req.Language)
	}
	return b.String()
}
