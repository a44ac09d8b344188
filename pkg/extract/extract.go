// Package extract pulls a JSON object out of free-form model output.
package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON means no strategy produced a parseable object.
var ErrNoJSON = errors.New("no JSON object found in text")

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Object returns the first JSON object it can recover from text. It tries,
// in order: a fenced code block, the span from the first '{' to the last '}',
// that span cut back to its last complete member, and finally the whole text.
func Object(text string) (json.RawMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoJSON
	}

	if m := fencedBlock.FindStringSubmatch(text); m != nil && isObject(m[1]) {
		return json.RawMessage(m[1]), nil
	}

	first, last := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if first >= 0 && last > first {
		span := text[first : last+1]
		if isObject(span) {
			return json.RawMessage(span), nil
		}
		if repaired, ok := repairTruncated(span); ok {
			return json.RawMessage(repaired), nil
		}
	}

	trimmed := strings.TrimSpace(text)
	if isObject(trimmed) {
		return json.RawMessage(trimmed), nil
	}
	return nil, ErrNoJSON
}

func isObject(s string) bool {
	var v map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &v) == nil
}

// repairTruncated handles output that was cut off mid-member: it drops
// everything from the last comma before the syntax error and closes the
// object, or else cuts at the last closing brace before the error.
func repairTruncated(span string) (string, bool) {
	var v map[string]json.RawMessage
	err := json.Unmarshal([]byte(span), &v)
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return "", false
	}
	pos := int(syntaxErr.Offset)
	if pos <= 0 || pos > len(span) {
		return "", false
	}

	head := span[:pos]
	if i := strings.LastIndex(head, ","); i > 0 {
		if candidate := span[:i] + "\n}"; isObject(candidate) {
			return candidate, true
		}
	}
	if i := strings.LastIndex(head, "}"); i > 0 {
		if candidate := span[:i+1]; isObject(candidate) {
			return candidate, true
		}
	}
	return "", false
}
