package assistant

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/default.yaml
var defaultPromptYAML []byte

// Prompt is the YAML-configured instruction set sent as the system message.
type Prompt struct {
	Identity        string   `yaml:"identity"`
	BusinessRules   []string `yaml:"business_rules"`
	ReplyGuidelines []string `yaml:"reply_guidelines"`
	EscalationRules []string `yaml:"escalation_rules"`
	Acknowledgement string   `yaml:"acknowledgement"`
}

// LoadPrompt reads the prompt at path, or the built-in one when path is empty.
func LoadPrompt(path string) (*Prompt, error) {
	data := defaultPromptYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("assistant: read prompt: %w", err)
		}
		data = b
	}
	return ParsePrompt(data)
}

func ParsePrompt(data []byte) (*Prompt, error) {
	var p Prompt
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("assistant: parse prompt YAML: %w", err)
	}
	if strings.TrimSpace(p.Identity) == "" {
		return nil, fmt.Errorf("assistant: prompt has no identity")
	}
	return &p, nil
}

const outputContract = `You MUST respond ONLY with a valid JSON object matching this exact schema, no extra text:
{
  "reply": "<string: message to send to the customer, empty if you cannot answer>",
  "escalate": <boolean: true when a human agent must look at this conversation>,
  "reason": "<string: why escalation is needed, empty otherwise>"
}`

// System compiles the system message for task.
func (p *Prompt) System(task Task) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Identity))
	writeList(&b, "Business rules", p.BusinessRules)
	if task == TaskAcknowledge {
		b.WriteString("\n\nTask:\n")
		b.WriteString(strings.TrimSpace(p.Acknowledgement))
	} else {
		writeList(&b, "Reply guidelines", p.ReplyGuidelines)
	}
	writeList(&b, "Escalate when", p.EscalationRules)
	b.WriteString("\n\n")
	b.WriteString(outputContract)
	return b.String()
}

// User renders the request context as the final user message.
func (p *Prompt) User(req Request) string {
	var b strings.Builder
	if req.CustomerName != nil && strings.TrimSpace(*req.CustomerName) != "" {
		fmt.Fprintf(&b, "Customer name: %s\n\n", strings.TrimSpace(*req.CustomerName))
	}

	if req.Task == TaskAcknowledge {
		fmt.Fprintf(&b, "What happened: %s\n", req.Scenario)
		return strings.TrimSpace(b.String())
	}

	if len(req.UnansweredPrior) > 0 {
		b.WriteString("Earlier questions that were never answered:\n")
		for _, q := range req.UnansweredPrior {
			fmt.Fprintf(&b, "- %s\n", q)
		}
		b.WriteString("\n")
	}
	if req.CurrentMessage != nil {
		fmt.Fprintf(&b, "Current message from the customer:\n%s\n", *req.CurrentMessage)
	} else {
		b.WriteString("The customer has no new message; answer the earlier questions.\n")
	}
	return strings.TrimSpace(b.String())
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", strings.TrimSpace(item))
	}
}
