package generate

import (
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/arealhq/arealbot/internal/checkpoint"
	"github.com/arealhq/arealbot/internal/knowledge"
	"github.com/arealhq/arealbot/internal/rbac"
)

// systemPrompt builds the instruction block for one generation call. The
// no-fabrication and fallback behavior live here, in prompt construction,
// so the orchestrator never branches on them.
func (o *Oracle) systemPrompt(role rbac.Role, retrieved []knowledge.Chunk) string {
	var b strings.Builder

	b.WriteString(`You are the assistant of an environmental services company. You answer customer questions and help arrange service visits.

Rules:
- Answer only from the facts in the CONTEXT section below. Never invent prices, dates, or service details.
- Reply in plain text. No Markdown, no bullet lists, no asterisks.
- Be brief and polite.
- Before creating a lead or any record, make sure you have the person's name and phone number. Ask for what is missing instead of guessing.
`)
	fmt.Fprintf(&b, "- If the CONTEXT does not cover the question, say so and offer our contact number %s instead of guessing.\n", o.fallbackContact)
	fmt.Fprintf(&b, "\nThe user's access level is %q.\n", role)

	b.WriteString("\nCONTEXT:\n")
	if len(retrieved) == 0 {
		b.WriteString("(no matching documents were found)\n")
	} else {
		for _, c := range retrieved {
			fmt.Fprintf(&b, "- %s\n", c.Text)
		}
	}

	return b.String()
}

// historyMessages converts stored turns to model messages. A tool outcome,
// when present, is appended as the last user-visible event of the turn so
// the final generation reports what actually happened.
func historyMessages(turns []checkpoint.Turn, toolOutcome string) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(turns)+1)
	for _, t := range turns {
		switch t.Speaker {
		case checkpoint.SpeakerAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(t.Text)))
		case checkpoint.SpeakerTool:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(
				"Result of the requested action: "+t.Text)))
		default:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(t.Text)))
		}
	}
	if toolOutcome != "" {
		msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(
			"Result of the requested action: "+toolOutcome+
				"\nTell me what happened in one or two plain sentences.")))
	}
	return msgs
}
