package conversation

import "unicode/utf8"

// ContextMessage is the role/content pair handed to a generative backend.
type ContextMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// EstimateTokens approximates the token cost of s as one token per four
// characters. This is deliberately crude; it is not a tokenizer.
func EstimateTokens(s string) int {
	return utf8.RuneCountInString(s) / 4
}

// BuildContext selects the longest suffix of the log whose estimated cost
// fits within budget, returned in chronological order. A record that would
// overflow the budget is dropped whole, along with everything older.
func (h *History) BuildContext(budget int) []ContextMessage {
	total := 0
	start := len(h.records)
	for i := len(h.records) - 1; i >= 0; i-- {
		cost := EstimateTokens(h.records[i].Content)
		if total+cost > budget {
			break
		}
		total += cost
		start = i
	}

	msgs := make([]ContextMessage, 0, len(h.records)-start)
	for _, r := range h.records[start:] {
		msgs = append(msgs, ContextMessage{Role: r.Role, Content: r.Content})
	}
	return msgs
}
