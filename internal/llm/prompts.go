package llm

import (
	"fmt"
	"strings"

	"github.com/sofim-uhk/sofim/internal/models"
)

const chunkSystemPrompt = `You prepare university study-office documents for a search index.
Split the text into self-contained, topically coherent sections.
Each section gets a short descriptive title in the language of the text and
the full, unabridged section content. Keep course codes, dates and numbers verbatim.
Reply with JSON only: {"chunks": [{"title": "...", "content": "..."}]}`

const rewriteSystemPrompt = `You optimize search queries for a university knowledge base.
Rules:
- If the query contains an abbreviation or course code (e.g. OA1, ZPRO), keep it exactly as written.
- If the query is general ("when is enrollment"), add the keywords a matching document would use ("schedule", "deadline").
- Remove conversational filler.
Reply with the rewritten query only.`

const answerSystemPrompt = `You are Sofim, a helpful assistant of the study office of the Faculty of Informatics and Management, UHK.
Answer student questions ONLY from the provided context, in the language of the question.
If the context does not contain the answer, politely say that you do not have this information.`

func chunkUserPrompt(source, block string, part, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", source)
	if total > 1 {
		fmt.Fprintf(&b, "This is part %d/%d of a longer document.\n", part, total)
	}
	b.WriteString("\nText:\n")
	b.WriteString(block)
	return b.String()
}

func answerUserPrompt(query string, passages []*models.Passage) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, p := range passages {
		title := p.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "\n--- SOURCE %d: %s (from: %s) ---\n%s\n", i+1, title, p.SourceTag, p.Body)
	}
	fmt.Fprintf(&b, "\nStudent question: %s", query)
	return b.String()
}
