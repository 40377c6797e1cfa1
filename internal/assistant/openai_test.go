package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

func completionServer(t *testing.T, status int, content string, captured *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if captured != nil {
			json.NewDecoder(r.Body).Decode(captured)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGenerator(t *testing.T, baseURL string) *OpenAIGenerator {
	t.Helper()
	prompt, err := LoadPrompt("")
	if err != nil {
		t.Fatalf("LoadPrompt: %v", err)
	}
	return NewOpenAIGenerator(OpenAIConfig{APIKey: "test-key", BaseURL: baseURL + "/v1", Timeout: 5 * time.Second}, prompt)
}

func strPtr(s string) *string { return &s }

func TestGenerateReply(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := completionServer(t, http.StatusOK, `{"reply":"Hi Amina, your package leaves today.","escalate":false,"reason":""}`, &req)
	g := newTestGenerator(t, srv.URL)

	got := g.Generate(context.Background(), Request{
		Task: TaskReply,
		History: []Turn{
			{Role: RoleCustomer, Text: "hello"},
			{Role: RoleAssistant, Text: "Hi! How can I help?"},
		},
		CurrentMessage:  strPtr("when will my package arrive?"),
		UnansweredPrior: []string{"is delivery free?"},
		CustomerName:    strPtr("Amina"),
	})

	if got.Text != "Hi Amina, your package leaves today." || got.ShouldEscalate {
		t.Errorf("Generate = %+v", got)
	}

	if len(req.Messages) != 4 {
		t.Fatalf("sent %d messages, want 4", len(req.Messages))
	}
	if req.Messages[0].Role != openai.ChatMessageRoleSystem || !strings.Contains(req.Messages[0].Content, "Reply guidelines") {
		t.Errorf("system message = %+v", req.Messages[0])
	}
	if req.Messages[2].Role != openai.ChatMessageRoleAssistant {
		t.Errorf("assistant turn role = %s", req.Messages[2].Role)
	}
	last := req.Messages[3].Content
	for _, want := range []string{"Amina", "is delivery free?", "when will my package arrive?"} {
		if !strings.Contains(last, want) {
			t.Errorf("user message missing %q:\n%s", want, last)
		}
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Errorf("response format = %+v", req.ResponseFormat)
	}
}

func TestGenerateAcknowledgeSkipsHistory(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := completionServer(t, http.StatusOK, `{"reply":"Thanks for confirming!","escalate":false}`, &req)
	g := newTestGenerator(t, srv.URL)

	got := g.Generate(context.Background(), Request{
		Task:     TaskAcknowledge,
		History:  []Turn{{Role: RoleCustomer, Text: "ignored"}},
		Scenario: "The customer confirmed they received their delivery.",
	})
	if got.Text != "Thanks for confirming!" {
		t.Errorf("Generate = %+v", got)
	}
	if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "confirmed they received") {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestGenerateEscalations(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		content  string
		wantText string
		wantEsc  bool
	}{
		{"text with escalation", http.StatusOK, `{"reply":"Sorry about that, the team will call you.","escalate":true,"reason":"damaged package"}`, "Sorry about that, the team will call you.", true},
		{"empty reply", http.StatusOK, `{"reply":"  ","escalate":false}`, "", true},
		{"empty output", http.StatusOK, "", "", true},
		{"not json", http.StatusOK, "Sure! Your package is on the way.", "", true},
		{"fenced json", http.StatusOK, "```json\n{\"reply\":\"ok\",\"escalate\":false}\n```", "ok", false},
		{"upstream error", http.StatusInternalServerError, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := completionServer(t, tt.status, tt.content, nil)
			got := newTestGenerator(t, srv.URL).Generate(context.Background(), Request{Task: TaskReply, CurrentMessage: strPtr("hi")})
			if got.Text != tt.wantText || got.ShouldEscalate != tt.wantEsc {
				t.Errorf("Generate = %+v, want text %q escalate %v", got, tt.wantText, tt.wantEsc)
			}
			if !got.HasText() && got.Reason == "" {
				t.Error("escalation without text must carry a reason")
			}
		})
	}
}

func TestGenerateWithoutKeyEscalates(t *testing.T) {
	prompt, _ := LoadPrompt("")
	got := NewOpenAIGenerator(OpenAIConfig{}, prompt).Generate(context.Background(), Request{Task: TaskReply})
	if got.HasText() || !got.ShouldEscalate || got.Reason == "" {
		t.Errorf("Generate = %+v", got)
	}
}

func TestParsePromptRequiresIdentity(t *testing.T) {
	if _, err := ParsePrompt([]byte("business_rules: [a]")); err == nil {
		t.Error("expected error for prompt without identity")
	}
	p, err := ParsePrompt([]byte("identity: helper\nacknowledgement: say thanks\n"))
	if err != nil {
		t.Fatal(err)
	}
	if sys := p.System(TaskAcknowledge); !strings.Contains(sys, "say thanks") || !strings.Contains(sys, `"escalate"`) {
		t.Errorf("System = %q", sys)
	}
}
