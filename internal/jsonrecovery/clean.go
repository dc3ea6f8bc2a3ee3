package jsonrecovery

import (
	"regexp"
	"strings"
)

var (
	codeFence = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_-]*[ \t]*$|```(?:json|JSON)?")

	reasoningBlock = regexp.MustCompile(`(?is)<think>.*?</think>|<thinking>.*?</thinking>|<reasoning>.*?</reasoning>`)
	// A lone closing tag means the opening one was cut off with the start of the response.
	reasoningClose = regexp.MustCompile(`(?is)^.*?</(?:think|thinking|reasoning)>`)
	reasoningTag   = regexp.MustCompile(`(?i)</?(?:think|thinking|reasoning)>`)
)

// StripCodeFences removes markdown code fence markers, keeping their content.
func StripCodeFences(text string) string {
	return strings.TrimSpace(codeFence.ReplaceAllString(text, ""))
}

// StripReasoning removes <think>, <thinking> and <reasoning> sections emitted by
// reasoning models.
func StripReasoning(text string) string {
	out := reasoningBlock.ReplaceAllString(text, "")
	out = reasoningClose.ReplaceAllString(out, "")
	return strings.TrimSpace(reasoningTag.ReplaceAllString(out, ""))
}

// CleanModelText strips reasoning sections and code fences from a model response.
func CleanModelText(text string) string {
	return StripCodeFences(StripReasoning(text))
}
