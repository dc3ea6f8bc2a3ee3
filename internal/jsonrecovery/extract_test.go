package jsonrecovery

import (
	"encoding/json"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &v), "not valid JSON: %s", s)
	return v
}

var sampleDocs = []string{
	`{"type":"quiz","duration":"30 minutes","description":"Networking basics"}`,
	`[{"question":"What is TCP?","options":["a","b","c","d"]},{"question":"What is UDP?"}]`,
	`{"questions":[{"question":"Define paging.","options":[]}],"meta":{"nested":[1,[2,3]]}}`,
	`{"text":"braces } and ] inside \"strings\" are fine"}`,
	`[]`,
	`{}`,
}

func TestExtract_ValidJSONRoundTrips(t *testing.T) {
	for _, doc := range sampleDocs {
		out, ok := Extract(doc)
		require.True(t, ok, doc)
		assert.Equal(t, decode(t, doc), decode(t, out))
	}
}

func TestExtract_IsIdempotent(t *testing.T) {
	for _, doc := range sampleDocs {
		once, ok := Extract(doc)
		require.True(t, ok)
		twice, ok := Extract(once)
		require.True(t, ok)
		assert.Equal(t, decode(t, once), decode(t, twice))
	}
}

func TestExtract_FindsJSONInsideProse(t *testing.T) {
	prefixes := []string{
		"Sure! Here is the assessment you asked for:\n",
		"Of course. Let's begin, shall we? ",
		"Berikut adalah hasilnya:\n\n",
		"Note: the answer [draft] is:\n",
		"",
	}
	suffixes := []string{
		"\nLet me know if you need anything else.",
		" Hope this helps!",
		"",
	}

	for _, doc := range sampleDocs {
		for _, p := range prefixes {
			for _, s := range suffixes {
				text := p + doc + s
				out, ok := Extract(text)
				require.True(t, ok, text)
				assert.Equal(t, decode(t, doc), decode(t, out), text)
			}
		}
	}
}

func TestExtract_FencedDocumentFollowedByProse(t *testing.T) {
	docs := append([]string{`{"description":"Use {braces} here","n":1}`}, sampleDocs...)
	for _, doc := range docs {
		for _, text := range []string{
			"```json\n" + doc + "\n```\nHope this helps!",
			"```\n" + doc + "\n```\n\nLet me know if you need changes.",
			doc + "\nLet me know if you need changes.",
		} {
			out, ok := Extract(text)
			require.True(t, ok, text)
			assert.Equal(t, decode(t, doc), decode(t, out), text)
		}
	}
}

func TestExtract_ParsedFragmentBeatsRepairedOne(t *testing.T) {
	out, stage := ExtractWithStage("Note: the answer [draft] is:\n" + `{"questions":["What is DNS?"]}`)
	require.Equal(t, StageObjectFragment, stage)
	assert.Equal(t, map[string]interface{}{"questions": []interface{}{"What is DNS?"}}, decode(t, out))
}

func TestExtract_Stages(t *testing.T) {
	tests := []struct {
		name  string
		input string
		stage Stage
		check func(t *testing.T, v interface{})
	}{
		{
			name:  "plain json",
			input: `{"a":1}`,
			stage: StageDirect,
		},
		{
			name:  "fenced json",
			input: "```json\n[{\"question\":\"Q1\",\"correctAnswer\":\"A\"}]\n```",
			stage: StageDirect,
			check: func(t *testing.T, v interface{}) {
				assert.Len(t, v, 1)
			},
		},
		{
			name:  "truncated json is repaired",
			input: `{"type":"exam","questions":[{"question":"Explain deadlock"`,
			stage: StageRepair,
			check: func(t *testing.T, v interface{}) {
				m := v.(map[string]interface{})
				assert.Equal(t, "exam", m["type"])
			},
		},
		{
			name:  "array fragment with trailing commas",
			input: "The questions are: [\"one\", \"two\",] and that's all",
			stage: StageArrayFragment,
			check: func(t *testing.T, v interface{}) {
				assert.Equal(t, []interface{}{"one", "two"}, v)
			},
		},
		{
			name:  "object fragment with bare keys",
			input: "Result -> {answer: \"Paging\", explanation: \"fixed size\",} <- done",
			stage: StageObjectFragment,
			check: func(t *testing.T, v interface{}) {
				assert.Equal(t, "Paging", v.(map[string]interface{})["answer"])
			},
		},
		{
			name:  "field fallback",
			input: `garbage "type": "quiz" more garbage "duration": "45 minutes" and "question": "What is DNS?" then "question": "What is ARP?`,
			stage: StageFieldFallback,
			check: func(t *testing.T, v interface{}) {
				m := v.(map[string]interface{})
				assert.Equal(t, "quiz", m["type"])
				assert.Equal(t, "45 minutes", m["duration"])
				assert.Len(t, m["questions"], 1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, stage := ExtractWithStage(tt.input)
			require.Equal(t, tt.stage, stage, "output %q", out)
			v := decode(t, out)
			if tt.check != nil {
				tt.check(t, v)
			}
		})
	}
}

func TestExtract_NothingRecoverable(t *testing.T) {
	inputs := []string{"", "   ", "no json here at all", "the answer is 42."}
	for _, in := range inputs {
		out, ok := Extract(in)
		assert.False(t, ok, in)
		assert.Empty(t, out)
	}
}

func TestExtract_NeverPanicsAndOutputIsValid(t *testing.T) {
	alphabet := []string{"{", "}", "[", "]", "\"", ":", ",", "\\", "a", "1", " ", "\n", "type", "questions", "```", "\x00", "é"}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		var b strings.Builder
		n := rng.Intn(40)
		for j := 0; j < n; j++ {
			b.WriteString(alphabet[rng.Intn(len(alphabet))])
		}
		input := b.String()

		var out string
		var ok bool
		require.NotPanics(t, func() { out, ok = Extract(input) }, "input %q", input)
		if ok {
			assert.True(t, json.Valid([]byte(out)), "input %q produced %q", input, out)
		}
	}
}

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"think block", "<think>plan the answer</think>\n{\"a\":1}", `{"a":1}`},
		{"thinking block", "<thinking>\nhmm\n</thinking>Answer", "Answer"},
		{"reasoning block", "<REASONING>x</REASONING> ok", "ok"},
		{"cut opening tag", "still thinking...</think>final", "final"},
		{"unclosed tag dropped", "<think>final", "final"},
		{"no tags", "plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripReasoning(tt.in))
		})
	}
}

func TestCleanModelText(t *testing.T) {
	in := "<think>draft</think>\n```json\n{\"answer\":\"x\"}\n```"
	assert.Equal(t, `{"answer":"x"}`, CleanModelText(in))
}
