package assistant

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o-mini"

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator is a Generator backed by an OpenAI-compatible chat API
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	prompt  *Prompt
}

func NewOpenAIGenerator(cfg OpenAIConfig, prompt *Prompt) *OpenAIGenerator {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	g := &OpenAIGenerator{model: cfg.Model, timeout: cfg.Timeout, prompt: prompt}
	if cfg.APIKey != "" {
		config := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			config.BaseURL = cfg.BaseURL
		}
		g.client = openai.NewClientWithConfig(config)
	}
	return g
}

type structuredReply struct {
	Reply    string `json:"reply"`
	Escalate bool   `json:"escalate"`
	Reason   string `json:"reason"`
}

// Generate makes a single completion call. It does not retry.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) Reply {
	if g.client == nil {
		return Escalate("reply generator is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    g.messages(req),
		Temperature: 0.4,
		MaxTokens:   400,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		log.Printf("Error calling chat completion: %v", err)
		return Escalate("reply generator request failed")
	}
	if len(resp.Choices) == 0 {
		return Escalate("reply generator returned no choices")
	}
	return parseReply(resp.Choices[0].Message.Content)
}

func (g *OpenAIGenerator) messages(req Request) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: g.prompt.System(req.Task)},
	}
	if req.Task != TaskAcknowledge {
		for _, t := range req.History {
			role := openai.ChatMessageRoleUser
			if t.Role == RoleAssistant {
				role = openai.ChatMessageRoleAssistant
			}
			msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Text})
		}
	}
	return append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: g.prompt.User(req),
	})
}

func parseReply(raw string) Reply {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Escalate("reply generator returned empty output")
	}

	var out structuredReply
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Printf("Error parsing generator output: %v", err)
		return Escalate("reply generator returned unparseable output")
	}

	text := strings.TrimSpace(out.Reply)
	reason := strings.TrimSpace(out.Reason)
	if text == "" {
		if reason == "" {
			reason = "reply generator produced no reply"
		}
		return Escalate(reason)
	}
	return Reply{Text: text, ShouldEscalate: out.Escalate, Reason: reason}
}
