// Package jsonrecovery recovers a JSON object or array from free-form model output.
//
// Extract runs a cascade of increasingly lenient strategies and stops at the first
// one that yields text accepted by encoding/json:
//
//  1. the response itself, then the response with code fences removed
//  2. a JSON repair pass over the whole response when it starts like JSON and is not
//     a complete document followed by trailing text
//  3. bracket-delimited array fragments, then brace-delimited object fragments, each
//     sanitized; only when none parses are the same fragments repaired
//  4. the span from the first opening to the last closing delimiter
//  5. known assessment fields pulled out by pattern and re-assembled
package jsonrecovery

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Stage names the cascade step that produced a recovered value
type Stage string

const (
	StageDirect         Stage = "direct"
	StageRepair         Stage = "repair"
	StageArrayFragment  Stage = "array_fragment"
	StageObjectFragment Stage = "object_fragment"
	StageOuterSpan      Stage = "outer_span"
	StageFieldFallback  Stage = "field_fallback"
	StageNone           Stage = "none"
)

var (
	arrayFragment  = regexp.MustCompile(`\[[\s\S]*?\]`)
	objectFragment = regexp.MustCompile(`\{[\s\S]*?\}`)
)

// Extract returns a JSON document recovered from text, or false when nothing could be
// recovered. The returned string always passes json.Valid. Extract never panics.
func Extract(text string) (string, bool) {
	out, stage := ExtractWithStage(text)
	return out, stage != StageNone
}

// ExtractWithStage is Extract that also reports which stage succeeded.
func ExtractWithStage(text string) (result string, stage Stage) {
	defer func() {
		if r := recover(); r != nil {
			result, stage = "", StageNone
		}
	}()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", StageNone
	}
	if json.Valid([]byte(trimmed)) {
		return trimmed, StageDirect
	}

	cleaned := StripCodeFences(trimmed)
	if cleaned == "" {
		return "", StageNone
	}
	if json.Valid([]byte(cleaned)) {
		return cleaned, StageDirect
	}

	// The repair library turns a document followed by prose into an array holding
	// both, so a leading complete document is left to the fragment stages.
	if startsLikeJSON(cleaned) && !hasTrailingText(cleaned) {
		if out, ok := repair(cleaned); ok {
			return out, StageRepair
		}
	}

	spans := balancedSpans(cleaned)
	arrays := fragmentCandidates(cleaned, spans, '[', arrayFragment)
	objects := fragmentCandidates(cleaned, spans, '{', objectFragment)

	for _, recoverFn := range []func(string) (string, bool){parseFragment, repairFragment} {
		for _, candidate := range arrays {
			if out, ok := recoverFn(candidate); ok {
				return out, StageArrayFragment
			}
		}
		for _, candidate := range objects {
			if out, ok := recoverFn(candidate); ok {
				return out, StageObjectFragment
			}
		}
	}

	if out, ok := outerSpan(cleaned); ok {
		return out, StageOuterSpan
	}

	if out, ok := extractKnownFields(cleaned); ok {
		return out, StageFieldFallback
	}

	return "", StageNone
}

func startsLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// hasTrailingText reports whether s opens with a balanced region that closes before
// the end of s.
func hasTrailingText(s string) bool {
	end, ok := matchClose(s, 0)
	return ok && end < len(s)
}

// isContainer reports whether s is valid JSON whose top-level value is an object or array.
func isContainer(s string) bool {
	s = strings.TrimSpace(s)
	return startsLikeJSON(s) && json.Valid([]byte(s))
}

func repair(s string) (string, bool) {
	out, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return "", false
	}
	out = strings.TrimSpace(out)
	if !isContainer(out) {
		return "", false
	}
	return out, true
}

func parseFragment(fragment string) (string, bool) {
	sanitized := strings.TrimSpace(Sanitize(fragment))
	if isContainer(sanitized) {
		return sanitized, true
	}
	return "", false
}

// repairFragment runs the repair library on the sanitized and then the raw fragment.
func repairFragment(fragment string) (string, bool) {
	if out, ok := repair(strings.TrimSpace(Sanitize(fragment))); ok {
		return out, true
	}
	return repair(fragment)
}

// recoverFragment tries the sanitized fragment first and falls back to repairing it.
func recoverFragment(fragment string) (string, bool) {
	if out, ok := parseFragment(fragment); ok {
		return out, true
	}
	return repairFragment(fragment)
}

type span struct {
	start, end int
	open       byte
}

func (s span) contains(pos int) bool {
	return pos >= s.start && pos < s.end
}

// balancedSpans finds the outermost delimiter-balanced regions of s, skipping over
// string literals. Nested regions are not reported separately.
func balancedSpans(s string) []span {
	var spans []span
	for i := 0; i < len(s); {
		if s[i] == '{' || s[i] == '[' {
			if end, ok := matchClose(s, i); ok {
				spans = append(spans, span{start: i, end: end, open: s[i]})
				i = end
				continue
			}
		}
		i++
	}
	return spans
}

// matchClose returns the index just past the delimiter that closes s[start].
func matchClose(s string, start int) (int, bool) {
	stack := make([]byte, 0, 8)
	inString, escaped := false, false
	for j := start; j < len(s); j++ {
		c := s[j]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				return 0, false
			}
			open := stack[len(stack)-1]
			if (open == '{') != (c == '}') {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return j + 1, true
			}
		}
	}
	return 0, false
}

// fragmentCandidates lists balanced regions opened by open, then non-greedy pattern
// matches that do not start inside any balanced region. Skipping matches inside a
// balanced region keeps an inner array from winning over the object holding it.
func fragmentCandidates(s string, spans []span, open byte, pattern *regexp.Regexp) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(c string) {
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	for _, sp := range spans {
		if sp.open == open {
			add(s[sp.start:sp.end])
		}
	}

outer:
	for _, loc := range pattern.FindAllStringIndex(s, -1) {
		for _, sp := range spans {
			if sp.contains(loc[0]) {
				continue outer
			}
		}
		add(s[loc[0]:loc[1]])
	}
	return out
}

// outerSpan tries the widest object span, then the widest array span.
func outerSpan(s string) (string, bool) {
	for _, delims := range [][2]string{{"{", "}"}, {"[", "]"}} {
		first := strings.Index(s, delims[0])
		last := strings.LastIndex(s, delims[1])
		if first < 0 || last <= first {
			continue
		}
		if out, ok := recoverFragment(s[first : last+1]); ok {
			return out, true
		}
	}
	return "", false
}
