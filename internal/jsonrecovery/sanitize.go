package jsonrecovery

import (
	"regexp"
	"strings"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

	repeatedCommas = regexp.MustCompile(`,(\s*,)+`)
	trailingCommas = regexp.MustCompile(`,\s*([}\]])`)
	bareKeys       = regexp.MustCompile(`([{,]\s*)([A-Za-z_$][A-Za-z0-9_$-]*)(\s*:)`)
	adjacentObject = regexp.MustCompile(`\}(\s*)\{`)
	adjacentArray  = regexp.MustCompile(`\](\s*)\[`)

	newlinesInString = regexp.MustCompile(`[ \t]*[\r\n]+[ \t\r\n]*`)
)

// Sanitize applies textual fixes for the common ways models break JSON. It never
// parses its input, and Sanitize(Sanitize(s)) == Sanitize(s).
//
// Control characters are removed, stray backslashes are escaped, raw newlines inside
// strings collapse to a single space, and outside strings repeated and trailing
// commas are dropped, bare keys are quoted, and missing commas between adjacent
// objects or arrays are inserted.
func Sanitize(fragment string) string {
	s := controlChars.ReplaceAllString(fragment, "")
	s = escapeStrayBackslashes(s)
	return normalizeStructure(s)
}

// escapeStrayBackslashes doubles the last backslash of an odd-length run when it does
// not start a valid JSON escape. Even-length runs are already escaped backslashes.
func escapeStrayBackslashes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			i++
			continue
		}
		j := i
		for j < len(s) && s[j] == '\\' {
			j++
		}
		b.WriteString(s[i:j])
		if (j-i)%2 == 1 && !validEscapeAt(s, j) {
			b.WriteByte('\\')
		}
		i = j
	}
	return b.String()
}

func validEscapeAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	switch s[i] {
	case '"', '/', 'b', 'f', 'n', 'r', 't':
		return true
	case 'u':
		if i+5 > len(s) {
			return false
		}
		for _, c := range []byte(s[i+1 : i+5]) {
			if !isHex(c) {
				return false
			}
		}
		return true
	}
	return false
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// normalizeStructure splits s into string literals and the text between them and
// fixes each part separately, so commas or colons inside strings are never touched.
func normalizeStructure(s string) string {
	var out, between strings.Builder
	out.Grow(len(s) + 16)

	flush := func() {
		if between.Len() > 0 {
			out.WriteString(fixStructural(between.String()))
			between.Reset()
		}
	}

	for i := 0; i < len(s); {
		if s[i] != '"' {
			between.WriteByte(s[i])
			i++
			continue
		}
		flush()
		end := stringEnd(s, i)
		out.WriteString(fixStringLiteral(s[i:end]))
		i = end
	}
	flush()

	return out.String()
}

// stringEnd returns the index just past the closing quote of the literal starting at
// start, or len(s) when the literal is unterminated.
func stringEnd(s string, start int) int {
	for j := start + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j + 1
		}
	}
	return len(s)
}

func fixStringLiteral(lit string) string {
	lit = newlinesInString.ReplaceAllString(lit, " ")
	return strings.ReplaceAll(lit, "\t", " ")
}

func fixStructural(seg string) string {
	seg = repeatedCommas.ReplaceAllString(seg, ",")
	seg = trailingCommas.ReplaceAllString(seg, "$1")
	seg = adjacentObject.ReplaceAllString(seg, "},$1{")
	seg = adjacentArray.ReplaceAllString(seg, "],$1[")
	return bareKeys.ReplaceAllString(seg, `$1"$2"$3`)
}
