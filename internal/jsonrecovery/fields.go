package jsonrecovery

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// scalarFields are the assessment fields recovered one by one when nothing else parses.
var scalarFields = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"type", fieldPattern("type")},
	{"duration", fieldPattern("duration")},
	{"description", fieldPattern("description")},
}

var (
	questionsKey  = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])"?questions"?\s*:\s*\[`)
	questionField = fieldPattern("question")
)

// fieldPattern matches `"name": "value"` (key quotes optional) or a bare number value.
func fieldPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^A-Za-z0-9_])"?` + regexp.QuoteMeta(name) + `"?\s*:\s*(?:"((?:[^"\\]|\\.)*)"|(-?\d+(?:\.\d+)?))`)
}

// extractKnownFields synthesizes a minimal object from the type, duration,
// description and questions fields found anywhere in s.
func extractKnownFields(s string) (string, bool) {
	found := make(map[string]interface{})

	for _, f := range scalarFields {
		m := f.pattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if m[1] != "" || m[2] == "" {
			found[f.name] = unescape(m[1])
		} else if n, err := strconv.ParseFloat(m[2], 64); err == nil {
			found[f.name] = n
		}
	}

	if questions, ok := extractQuestions(s); ok {
		found["questions"] = questions
	}

	if len(found) == 0 {
		return "", false
	}
	out, err := json.Marshal(found)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// extractQuestions recovers the questions array, or failing that the individual
// question strings.
func extractQuestions(s string) (interface{}, bool) {
	if loc := questionsKey.FindStringIndex(s); loc != nil {
		open := loc[1] - 1
		fragment := s[open:]
		if end, ok := matchClose(s, open); ok {
			fragment = s[open:end]
		}
		if out, ok := recoverFragment(fragment); ok {
			var v []interface{}
			if err := json.Unmarshal([]byte(out), &v); err == nil {
				return v, true
			}
		}
	}

	matches := questionField.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil, false
	}
	questions := make([]interface{}, 0, len(matches))
	for _, m := range matches {
		text := unescape(m[1])
		if m[1] == "" && m[2] != "" {
			text = m[2]
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		questions = append(questions, map[string]interface{}{"question": text})
	}
	if len(questions) == 0 {
		return nil, false
	}
	return questions, true
}

func unescape(raw string) string {
	if v, err := strconv.Unquote(`"` + raw + `"`); err == nil {
		return v
	}
	return raw
}
