package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is returned when a chunking reply is not usable JSON.
var ErrMalformedResponse = errors.New("malformed service response")

type chunkEnvelope struct {
	Chunks []Section `json:"chunks"`
}

// parseSections accepts {"chunks": [...]} or a bare array, optionally wrapped
// in a markdown code fence. Sections with empty content are dropped.
func parseSections(raw string) ([]Section, error) {
	text := stripFence(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}
	text = repairJSON(text)

	var sections []Section
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &sections); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	} else {
		var env chunkEnvelope
		if err := json.Unmarshal([]byte(text), &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		sections = env.Chunks
	}

	out := sections[:0]
	for _, s := range sections {
		s.Title = strings.TrimSpace(s.Title)
		s.Content = strings.TrimSpace(s.Content)
		if s.Content == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// repairJSON adds a missing opening quote to object keys, a common defect of
// model output: `{title": "x"}` becomes `{"title": "x"}`.
func repairJSON(s string) string {
	src := []rune(s)
	fixed := make([]rune, 0, len(src)+16)

	i := 0
	for i < len(src) {
		ch := src[i]
		if ch != '{' && ch != ',' {
			fixed = append(fixed, ch)
			i++
			continue
		}
		fixed = append(fixed, ch)
		i++
		for i < len(src) && (src[i] == ' ' || src[i] == '\n' || src[i] == '\t' || src[i] == '\r') {
			fixed = append(fixed, src[i])
			i++
		}
		if i >= len(src) || !isKeyRune(src[i]) {
			continue
		}
		start := i
		for i < len(src) && isKeyRune(src[i]) {
			i++
		}
		if i+1 < len(src) && src[i] == '"' && src[i+1] == ':' {
			fixed = append(fixed, '"')
		}
		fixed = append(fixed, src[start:i]...)
	}
	return string(fixed)
}

func isKeyRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}
