package agent

import (
	"slices"
	"unicode/utf8"

	"github.com/arealhq/arealbot/internal/checkpoint"
)

// defaultHistoryTokens is a conservative history budget for Gemini models.
const defaultHistoryTokens = 8000

// estimateTokens provides a rough token count. Rune count divided by 2 is
// a conservative estimate for both Latin (~4 chars/token) and Cyrillic/CJK
// (~1.5 chars/token) text.
func estimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 2
}

func estimateTurnsTokens(turns []checkpoint.Turn) int {
	total := 0
	for _, t := range turns {
		total += estimateTokens(t.Text)
	}
	return total
}

// truncateHistory drops oldest turns to fit the window, first by turn
// count and then by token budget. The last turn is the current user
// message and is always kept, even over budget.
func (o *Orchestrator) truncateHistory(turns []checkpoint.Turn, budget int) []checkpoint.Turn {
	if len(turns) == 0 {
		return turns
	}
	if o.msgBudget > 0 && len(turns) > o.msgBudget {
		turns = turns[len(turns)-o.msgBudget:]
	}
	if estimateTurnsTokens(turns) <= budget {
		return turns
	}

	current := turns[len(turns)-1]
	remaining := budget - estimateTokens(current.Text)

	kept := make([]checkpoint.Turn, 0, len(turns))
	kept = append(kept, current)
	for i := len(turns) - 2; i >= 0; i-- {
		cost := estimateTokens(turns[i].Text)
		if remaining < cost {
			break
		}
		kept = append(kept, turns[i])
		remaining -= cost
	}
	slices.Reverse(kept)

	o.logger.Debug("history truncated",
		"original_count", len(turns),
		"new_count", len(kept))
	return kept
}
