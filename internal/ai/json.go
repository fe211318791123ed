package ai

import (
	"encoding/json"
	"strings"
)

// StripCodeFences removes markdown code-fence delimiters that chat models
// frequently wrap around JSON output.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if index := strings.LastIndex(trimmed, "```"); index >= 0 {
		trimmed = trimmed[:index]
	}
	return strings.TrimSpace(trimmed)
}

// DecodeLoose unmarshals model output into value, tolerating code fences
// and a few common formatting slips. Callers apply their own fallback when
// it returns an error; decode failures never escape a stage boundary.
func DecodeLoose(text string, value any) error {
	cleaned := StripCodeFences(text)
	if err := json.Unmarshal([]byte(cleaned), value); err == nil {
		return nil
	}
	repaired := repairJSON(cleaned)
	return json.Unmarshal([]byte(repaired), value)
}

// repairJSON fixes the missing-opening-quote-before-key pattern some models
// produce, e.g. `, action":` -> `, "action":`.
func repairJSON(s string) string {
	input := []rune(s)
	fixed := make([]rune, 0, len(input)+16)

	i := 0
	for i < len(input) {
		ch := input[i]
		if ch != '{' && ch != ',' {
			fixed = append(fixed, ch)
			i++
			continue
		}

		fixed = append(fixed, ch)
		i++
		for i < len(input) && (input[i] == ' ' || input[i] == '\n' || input[i] == '\t') {
			fixed = append(fixed, input[i])
			i++
		}

		if i >= len(input) || input[i] == '"' || !isKeyRune(input[i]) {
			continue
		}

		keyStart := i
		for i < len(input) && isKeyRune(input[i]) {
			i++
		}
		if i+1 < len(input) && input[i] == '"' && input[i+1] == ':' {
			fixed = append(fixed, '"')
			fixed = append(fixed, input[keyStart:i]...)
			continue
		}
		fixed = append(fixed, input[keyStart:i]...)
	}

	return string(fixed)
}

func isKeyRune(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
