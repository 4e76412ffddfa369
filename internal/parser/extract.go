// Package parser extracts the structured final reply from the
// responder subprocess's captured output. The output is not trusted to
// be clean JSON: it may be a single value, JSON-Lines, doubly-encoded
// payloads nested inside string fields, or smart-quoted text pasted
// through a chat surface. Each strategy is a pure function over the
// raw text, tried in order until one yields a candidate.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ReplyField is the key the responder must emit somewhere in its
// output, holding the final reply markdown.
const ReplyField = "final_reply_markdown"

// ErrNoReply is returned when no extraction strategy finds a reply.
// The returned error wraps it with diagnostic counts for operator
// troubleshooting.
var ErrNoReply = errors.New("no final reply found in output")

// ExtractReply extracts the final reply from raw subprocess output.
// When the reply field occurs more than once (across JSON-Lines or
// nested structures), the last non-empty occurrence wins: later events
// in a stream supersede earlier partial ones.
func ExtractReply(raw string) (string, error) {
	if reply := extract(raw); reply != "" {
		return reply, nil
	}

	// Retry once with smart quotes normalized to plain ASCII quotes.
	if normalized := normalizeQuotes(raw); normalized != raw {
		if reply := extract(normalized); reply != "" {
			return reply, nil
		}
	}

	// Last resort: locate the field marker in the raw text directly.
	if reply := scanForMarker(raw); reply != "" {
		return reply, nil
	}

	return "", diagnose(raw)
}

// extract runs the structured strategies: whole-document parse, then
// JSON-Lines, walking every parsed value. It returns the last
// non-empty candidate found, or "".
func extract(text string) string {
	var last string

	if value, ok := parseValue(text); ok {
		walk(value, &last)
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if value, ok := parseValue(line); ok {
			walk(value, &last)
		}
	}

	return last
}

// parseValue decodes text as a single JSON value. If strict decoding
// fails and the text looks like it was meant to be JSON, a repair pass
// is attempted before giving up.
func parseValue(text string) (any, bool) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err == nil {
		return value, true
	}

	if !strings.Contains(text, "{") {
		return nil, false
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		return nil, false
	}
	return value, true
}

// walk recursively descends a parsed JSON value, recording each
// non-empty reply-field candidate into last. Object values are checked
// for the field directly and then every nested value is visited;
// string values are re-parsed as JSON to unwrap doubly-encoded
// payloads. Object keys are visited in sorted order so traversal is
// deterministic.
func walk(value any, last *string) {
	switch v := value.(type) {
	case map[string]any:
		if s, ok := v[ReplyField].(string); ok && s != "" {
			*last = s
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(v[k], last)
		}
	case []any:
		for _, item := range v {
			walk(item, last)
		}
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var nested any
			if err := json.Unmarshal([]byte(trimmed), &nested); err == nil {
				walk(nested, last)
			}
		}
	}
}

// quoteReplacer maps typographic quote characters to their plain ASCII
// equivalents.
var quoteReplacer = strings.NewReplacer(
	"“", `"`, // left double quotation mark
	"”", `"`, // right double quotation mark
	"„", `"`, // double low-9 quotation mark
	"‘", "'", // left single quotation mark
	"’", "'", // right single quotation mark
)

// normalizeQuotes replaces smart quote characters with plain quotes.
func normalizeQuotes(text string) string {
	return quoteReplacer.Replace(text)
}

// scanForMarker searches the raw text for the last occurrence of the
// quoted reply field and decodes the JSON string that follows it.
// This recovers replies from output too mangled for any parse to
// succeed.
func scanForMarker(raw string) string {
	marker := `"` + ReplyField + `"`

	for idx := strings.LastIndex(raw, marker); idx >= 0; idx = strings.LastIndex(raw[:idx], marker) {
		rest := raw[idx+len(marker):]

		colon := strings.Index(rest, ":")
		if colon < 0 {
			continue
		}
		rest = strings.TrimLeft(rest[colon+1:], " \t")
		if !strings.HasPrefix(rest, `"`) {
			continue
		}

		if value, ok := decodeJSONString(rest); ok && value != "" {
			return value
		}
	}

	return ""
}

// decodeJSONString decodes the JSON string literal at the start of
// text, honoring backslash escapes.
func decodeJSONString(text string) (string, bool) {
	end := -1
	for i := 1; i < len(text); i++ {
		if text[i] == '\\' {
			i++
			continue
		}
		if text[i] == '"' {
			end = i
			break
		}
	}
	if end < 0 {
		return "", false
	}

	var value string
	if err := json.Unmarshal([]byte(text[:end+1]), &value); err != nil {
		return "", false
	}
	return value, true
}

// diagnose builds the failure error with counts an operator can use to
// tell "the program emitted nothing" apart from "the program emitted
// something we could not decode".
func diagnose(raw string) error {
	lines := strings.Split(raw, "\n")
	nonEmpty := 0
	parseable := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		nonEmpty++
		var v any
		if json.Unmarshal([]byte(line), &v) == nil {
			parseable++
		}
	}
	markers := strings.Count(raw, ReplyField)

	return fmt.Errorf("%w: %d non-empty lines, %d valid JSON lines, %d %q occurrences",
		ErrNoReply, nonEmpty, parseable, markers, ReplyField)
}
