package llm

import (
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/swasthai/swasth/internal/chat"
	"github.com/swasthai/swasth/internal/log"
)

func TestQualify(t *testing.T) {
	c := New(nil, nil, "ollama", Options{}, log.NewNop())

	tests := []struct {
		model string
		want  string
	}{
		{"phi3:mini", "ollama/phi3:mini"},
		{"llama3:8b", "ollama/llama3:8b"},
		{"ollama/phi3:mini", "ollama/phi3:mini"},
		{"googleai/gemini-2.5-flash", "googleai/gemini-2.5-flash"},
	}
	for _, tt := range tests {
		if got := c.qualify(tt.model); got != tt.want {
			t.Errorf("qualify(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestToGenkitMessages(t *testing.T) {
	msgs := toGenkitMessages([]chat.Message{
		{Role: chat.RoleSystem, Content: "persona"},
		{Role: chat.RoleUser, Content: "question"},
		{Role: chat.RoleAssistant, Content: "answer"},
	})

	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}

	wantRoles := []ai.Role{ai.RoleSystem, ai.RoleUser, ai.RoleModel}
	wantText := []string{"persona", "question", "answer"}
	for i, msg := range msgs {
		if msg.Role != wantRoles[i] {
			t.Errorf("message %d role = %s, want %s", i, msg.Role, wantRoles[i])
		}
		if len(msg.Content) != 1 || msg.Content[0].Text != wantText[i] {
			t.Errorf("message %d content = %+v, want %q", i, msg.Content, wantText[i])
		}
	}
}
