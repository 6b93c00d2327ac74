package usecase

import (
	"slices"
	"strings"

	"github.com/emalabs/ask-ema/internal/core/domain"
	"github.com/emalabs/ask-ema/internal/core/ports"
)

const sectionSeparator = "\n---\n"

// AssembleContext builds the token-bounded context from matched sections.
//
// Sections are processed in matcher order. Each section's token cost is added
// to the running total first; the section whose cost pushes the total to or
// past the budget is excluded entirely and iteration stops. The overflow
// section's cost stays in the reported TokenCount — downstream consumers rely
// on that total, so it is not corrected here.
//
// References collect the unique trimmed headings of included sections, in
// first-occurrence order, capped at maxReferences.
func AssembleContext(sections []domain.PageSection, tokenizer ports.Tokenizer, tokenBudget, maxReferences int) domain.ContextBundle {
	var text strings.Builder
	references := make([]string, 0, maxReferences)
	tokenCount := 0

	for _, section := range sections {
		tokenCount += tokenizer.CountTokens(section.Content)
		if tokenCount >= tokenBudget {
			break
		}

		text.WriteString(strings.TrimSpace(section.Content))
		text.WriteString(sectionSeparator)

		if len(references) < maxReferences {
			heading := strings.TrimSpace(section.Heading)
			if !slices.Contains(references, heading) {
				references = append(references, heading)
			}
		}
	}

	return domain.ContextBundle{
		Text:       text.String(),
		TokenCount: tokenCount,
		References: references,
	}
}

// RenderReferences formats the deduplicated headings as the trailing
// reference block appended to every successful answer.
func RenderReferences(references []string) string {
	return "References:  \n" + strings.Join(references, "  \n")
}
