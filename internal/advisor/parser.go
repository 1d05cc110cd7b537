package advisor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var thinkTagRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

type commentaryPayload struct {
	Commentary string `json:"commentary"`
}

// ParseCommentary extracts the commentary string from a model response.
// Handles markdown code fences, reasoning tags and bare prose fallbacks.
func ParseCommentary(text string) (string, error) {
	cleaned := strings.TrimSpace(thinkTagRegex.ReplaceAllString(text, ""))

	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return "", fmt.Errorf("empty advisor response")
	}

	var payload commentaryPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil && payload.Commentary != "" {
		return strings.TrimSpace(payload.Commentary), nil
	}

	// Try to extract an embedded JSON object.
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &payload); err == nil && payload.Commentary != "" {
			return strings.TrimSpace(payload.Commentary), nil
		}
	}

	// Some models answer in prose despite the instruction. Accept short
	// plain text rather than dropping the commentary.
	if !strings.Contains(cleaned, "{") && len(cleaned) <= 600 {
		return cleaned, nil
	}

	return "", fmt.Errorf("failed to parse advisor response: %.200s", cleaned)
}
