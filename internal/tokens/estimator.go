// Package tokens estimates LLM token counts and truncates text to a token budget.
//
// Estimates deliberately err on the high side: the result is the largest of a
// language-aware word segmentation, a whitespace split, and one token per four
// characters.
package tokens

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	sentencesdata "github.com/neurosnap/sentences/data"
)

// Marker is appended to truncated text
const Marker = "…"

// wordSegment matches one word-like segment: a single CJK character, a run of
// letters/digits (with inner apostrophes), or a run of punctuation.
var wordSegment = regexp.MustCompile(`[\p{Han}\p{Hiragana}\p{Katakana}\p{Hangul}]|[\p{L}\p{M}\p{N}_]+(?:['’][\p{L}\p{M}\p{N}_]+)*|[^\s\p{L}\p{M}\p{N}_]+`)

var spaceDelimited = regexp.MustCompile(`\S+\s*`)

// Estimator counts tokens. The zero value works without sentence segmentation.
type Estimator struct {
	punkt *sentences.DefaultSentenceTokenizer
}

// NewEstimator builds an estimator with the embedded English Punkt model. If the model
// cannot be loaded the estimator falls back to segmenting the whole text at once.
func NewEstimator() *Estimator {
	e := &Estimator{}
	trainingData, err := sentencesdata.Asset("english.json")
	if err != nil {
		return e
	}
	storage, err := sentences.LoadTraining(trainingData)
	if err != nil {
		return e
	}
	e.punkt = sentences.NewSentenceTokenizer(storage)
	return e
}

var defaultEstimator = sync.OnceValue(NewEstimator)

// Estimate returns the token estimate of text using the shared estimator.
func Estimate(text string) int {
	return defaultEstimator().Estimate(text)
}

// Truncate shortens text to maxTokens using the shared estimator.
func Truncate(text string, maxTokens int) string {
	return defaultEstimator().Truncate(text, maxTokens)
}

// Estimate returns 0 for empty text and at least 1 for any other text.
func (e *Estimator) Estimate(text string) int {
	if text == "" {
		return 0
	}

	chars := (utf8.RuneCountInString(text) + 3) / 4
	return max(e.segmentCount(text), len(strings.Fields(text)), chars, 1)
}

func (e *Estimator) segmentCount(text string) (count int) {
	if e == nil || e.punkt == nil {
		return len(wordSegment.FindAllStringIndex(text, -1))
	}

	defer func() {
		if r := recover(); r != nil {
			count = len(wordSegment.FindAllStringIndex(text, -1))
		}
	}()

	for _, sent := range e.punkt.Tokenize(text) {
		count += len(wordSegment.FindAllStringIndex(sent.Text, -1))
	}
	return count
}

// Truncate returns text unchanged when it fits in maxTokens. Otherwise it keeps the
// longest run of leading whitespace-delimited segments that still fits once the
// marker is appended. The result always satisfies Estimate(result) <= maxTokens
// for maxTokens >= 1, and truncating the result again returns it unchanged.
func (e *Estimator) Truncate(text string, maxTokens int) string {
	if maxTokens < 1 {
		return ""
	}
	if e.Estimate(text) <= maxTokens {
		return text
	}

	pieces := spaceDelimited.FindAllString(text, -1)
	build := func(k int) string {
		prefix := strings.TrimRightFunc(strings.Join(pieces[:k], ""), isSpace)
		if prefix == "" {
			return Marker
		}
		return prefix + " " + Marker
	}

	// Appending segments never lowers an estimate, so the fitting prefixes form a
	// contiguous range starting at zero.
	lo, hi := 0, len(pieces)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if e.Estimate(build(mid)) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	if lo == 0 && len(pieces) > 0 {
		if partial := e.truncateRunes(strings.TrimSpace(pieces[0]), maxTokens); partial != "" {
			return partial
		}
	}
	return build(lo)
}

// truncateRunes cuts a single oversized segment by characters.
func (e *Estimator) truncateRunes(segment string, maxTokens int) string {
	runes := []rune(segment)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if e.Estimate(string(runes[:mid])+Marker) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		return ""
	}
	return string(runes[:lo]) + Marker
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v' || r == 0x85 || r == 0xA0
}
