package enrichment

import (
	"encoding/json"
	"regexp"
)

// Suggestion payload shape of the autocomplete endpoint.
type suggestionsPayload struct {
	Suggestions []struct {
		Address string `json:"address"`
	} `json:"suggestions"`
}

var ltdPOBoxPattern = regexp.MustCompile(`(?i)\b(ltd|po box|plc)\b`)

// CountResidential parses a cached lookup payload and counts the
// suggestions that look like deliverable residential addresses, skipping
// PO boxes and obvious business entries. A payload that fails to parse
// counts zero; enrichment stays best-effort.
func CountResidential(payload []byte) int {
	var parsed suggestionsPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return 0
	}
	count := 0
	for _, s := range parsed.Suggestions {
		if ltdPOBoxPattern.MatchString(s.Address) {
			continue
		}
		count++
	}
	return count
}
