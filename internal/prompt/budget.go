// Package prompt builds and clamps the text prompts sent to image models.
package prompt

import "strings"

const (
	// WordBudget is the most words an image prompt may carry.
	WordBudget = 75
	// PriorityBudget caps how many priority words are kept when clamping.
	PriorityBudget = 40
)

// PriorityKeywords mark words that survive clamping first.
var PriorityKeywords = []string{
	"character", "scene", "story", "cartoon", "anime", "illustration",
	"high quality", "detailed", "clean", "bright", "friendly",
	"cinematic", "storybook", "watercolor", "vibrant",
}

// Budget clamps p to WordBudget words. Prompts within budget come back
// unchanged; longer ones keep up to PriorityBudget priority words followed by
// regular words, each group in original order.
func Budget(p string) string {
	return BudgetN(p, WordBudget, PriorityBudget)
}

// BudgetN is Budget with explicit limits.
func BudgetN(p string, budget, priorityCap int) string {
	words := strings.Fields(p)
	if len(words) <= budget {
		return p
	}

	marks := priorityMarks(words)
	priority := make([]string, 0, len(words))
	regular := make([]string, 0, len(words))
	for i, w := range words {
		if marks[i] {
			priority = append(priority, w)
		} else {
			regular = append(regular, w)
		}
	}

	if priorityCap > budget {
		priorityCap = budget
	}
	if len(priority) > priorityCap {
		priority = priority[:priorityCap]
	}
	out := make([]string, 0, budget)
	out = append(out, priority...)
	remaining := budget - len(out)
	if remaining > len(regular) {
		remaining = len(regular)
	}
	out = append(out, regular[:remaining]...)
	return strings.Join(out, " ")
}

// WordCount returns the number of whitespace separated words in p.
func WordCount(p string) int {
	return len(strings.Fields(p))
}

// priorityMarks flags words containing a single-word keyword, and both words
// of any adjacent pair that spells a multi-word keyword.
func priorityMarks(words []string) []bool {
	marks := make([]bool, len(words))
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}

	for _, kw := range PriorityKeywords {
		parts := strings.Fields(kw)
		if len(parts) == 1 {
			for i, w := range lower {
				if strings.Contains(w, kw) {
					marks[i] = true
				}
			}
			continue
		}
		for i := 0; i+len(parts) <= len(lower); i++ {
			match := true
			for j, part := range parts {
				if !strings.Contains(lower[i+j], part) {
					match = false
					break
				}
			}
			if match {
				for j := range parts {
					marks[i+j] = true
				}
			}
		}
	}
	return marks
}
