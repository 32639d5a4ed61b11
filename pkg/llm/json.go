package llm

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// stripFences removes a surrounding markdown code fence from an LLM
// response. Models frequently wrap JSON in ```json blocks even when
// told not to.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= 2 {
		return text
	}
	body := strings.Join(lines[1:len(lines)-1], "\n")
	body = strings.TrimSpace(body)
	body = strings.TrimPrefix(body, "json")
	return strings.TrimSpace(body)
}

// decodeJSON unmarshals an LLM response into out, first as-is, then
// after a mechanical repair pass. Only when both fail does the caller
// spend another LLM round trip on a repair prompt.
func decodeJSON(text string, out any) error {
	cleaned := stripFences(text)
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(repaired), out)
}
