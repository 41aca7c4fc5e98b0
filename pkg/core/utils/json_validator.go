package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// RepairJSON attempts to fix common JSON errors from LLM outputs.
// Uses github.com/RealAlexandreAI/json-repair for intelligent repair.
// Supported repairs:
// - Missing quotes around keys
// - Single quotes instead of double quotes
// - Unclosed arrays/objects
// - Trailing commas
// - Comments and markdown code fences around the payload
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON repair failed: %w", err)
	}
	return repaired, nil
}

// ParseHJSON parses lenient human-JSON into canonical JSON.
func ParseHJSON(hjsonData string) (string, error) {
	var result map[string]interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("HJSON parse failed: %w", err)
	}

	canonical, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to re-marshal HJSON result: %w", err)
	}
	return string(canonical), nil
}

// ParseLLMResponse decodes an LLM response into schema, tolerating the
// malformed JSON models routinely emit. Order of attempts:
// 1. strict JSON
// 2. repaired JSON (json-repair)
// 3. lenient HJSON
func ParseLLMResponse(response string, schema interface{}) error {
	cleaned := CleanMarkdown(response)

	if err := json.Unmarshal([]byte(cleaned), schema); err == nil {
		return nil
	}

	if repaired, err := RepairJSON(cleaned); err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return nil
		}
	}

	if canonical, err := ParseHJSON(cleaned); err == nil {
		if err := json.Unmarshal([]byte(canonical), schema); err == nil {
			return nil
		}
	}

	return fmt.Errorf("response is not parseable as JSON: %.80q", cleaned)
}
