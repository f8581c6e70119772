package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON unmarshals the first JSON object embedded in an LLM response
// into T. Models routinely wrap the object in markdown fences or prose, so
// everything outside the outermost '{' .. '}' span is discarded before
// decoding.
func ParseJSON[T any](response string) (T, error) {
	var zero T

	start := strings.IndexByte(response, '{')
	if start == -1 {
		return zero, fmt.Errorf("response carries no JSON object")
	}
	end := strings.LastIndexByte(response, '}')

	payload := response
	if end > start {
		payload = response[start : end+1]
	}

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return zero, fmt.Errorf("decode model response: %w (payload: %s)", err, payload)
	}
	return result, nil
}
