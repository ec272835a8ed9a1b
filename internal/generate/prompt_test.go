package generate

import (
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/arealhq/arealbot/internal/checkpoint"
	"github.com/arealhq/arealbot/internal/knowledge"
	"github.com/arealhq/arealbot/internal/rbac"
)

func TestSystemPromptWithContext(t *testing.T) {
	o := &Oracle{fallbackContact: "8 800 555 90 57"}

	prompt := o.systemPrompt(rbac.RoleClient, []knowledge.Chunk{
		{ID: "c1", Text: "Pumping a tank up to 3 m³ costs 2500."},
		{ID: "c2", Text: "We work on weekends."},
	})

	if !strings.Contains(prompt, "Pumping a tank up to 3 m³ costs 2500.") {
		t.Error("retrieved chunk missing from prompt")
	}
	if !strings.Contains(prompt, `"client"`) {
		t.Error("role missing from prompt")
	}
	if strings.Contains(prompt, "no matching documents") {
		t.Error("empty-context disclosure present despite context")
	}
}

func TestSystemPromptEmptyContextDisclosesFallback(t *testing.T) {
	o := &Oracle{fallbackContact: "8 800 555 90 57"}

	prompt := o.systemPrompt(rbac.RolePublic, nil)

	if !strings.Contains(prompt, "8 800 555 90 57") {
		t.Error("fallback contact missing from prompt")
	}
	if !strings.Contains(prompt, "no matching documents") {
		t.Error("empty context not disclosed to the model")
	}
	if !strings.Contains(prompt, "No Markdown") {
		t.Error("plain-text instruction missing")
	}
}

func TestHistoryMessages(t *testing.T) {
	turns := []checkpoint.Turn{
		{Speaker: checkpoint.SpeakerUser, Text: "do you pump septic tanks?"},
		{Speaker: checkpoint.SpeakerAssistant, Text: "Yes, we do."},
		{Speaker: checkpoint.SpeakerUser, Text: "book me a visit"},
	}

	msgs := historyMessages(turns, "")
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Role != ai.RoleUser || msgs[1].Role != ai.RoleModel || msgs[2].Role != ai.RoleUser {
		t.Errorf("roles = %v, %v, %v", msgs[0].Role, msgs[1].Role, msgs[2].Role)
	}
}

func TestHistoryMessagesRendersToolTurns(t *testing.T) {
	turns := []checkpoint.Turn{
		{Speaker: checkpoint.SpeakerUser, Text: "book me a visit"},
		{Speaker: checkpoint.SpeakerTool, Text: "Lead 7001 created."},
		{Speaker: checkpoint.SpeakerAssistant, Text: "Done, a manager will call you."},
	}

	msgs := historyMessages(turns, "")
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[1].Role != ai.RoleUser {
		t.Errorf("tool turn role = %v, want user", msgs[1].Role)
	}
	if !strings.Contains(msgs[1].Text(), "Result of the requested action") {
		t.Errorf("tool turn not framed as an action result: %q", msgs[1].Text())
	}
	if !strings.Contains(msgs[1].Text(), "Lead 7001 created.") {
		t.Errorf("tool turn text missing: %q", msgs[1].Text())
	}
}

func TestHistoryMessagesAppendsToolOutcome(t *testing.T) {
	turns := []checkpoint.Turn{
		{Speaker: checkpoint.SpeakerUser, Text: "book me a visit"},
	}

	msgs := historyMessages(turns, "Lead 7001 created.")
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	last := msgs[len(msgs)-1]
	if last.Role != ai.RoleUser {
		t.Errorf("outcome message role = %v, want user", last.Role)
	}
	if !strings.Contains(last.Text(), "Lead 7001 created.") {
		t.Errorf("outcome text missing: %q", last.Text())
	}
}

func TestConvertSchema(t *testing.T) {
	type leadArgs struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	src, err := jsonschema.For[leadArgs](nil)
	if err != nil {
		t.Fatalf("jsonschema.For() error = %v", err)
	}

	got, err := convertSchema(src)
	if err != nil {
		t.Fatalf("convertSchema() error = %v", err)
	}
	if got.Type != "object" {
		t.Errorf("converted type = %q, want object", got.Type)
	}
	if _, ok := got.Properties.Get("name"); !ok {
		t.Error("property \"name\" lost in conversion")
	}

	if _, err := convertSchema(nil); err == nil {
		t.Error("nil schema accepted")
	}
}
