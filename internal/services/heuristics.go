package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
)

// Line-oriented parsers for responses that contain no recoverable JSON.

var (
	numberedLine   = regexp.MustCompile(`^\s*(?:\*\*)?(?:(?:Q|Question|Soal|Pertanyaan)\s*)?(\d{1,3})\s*[.):]\s*(?:\*\*)?\s*(.+)$`)
	optionLine     = regexp.MustCompile(`^\s*(?:[-*]\s*)?\(?([A-Da-d])[.)]\s+(.+)$`)
	answerLine     = regexp.MustCompile(`(?i)^\s*(?:\*\*)?(?:correct\s+answer|answer|jawaban(?:\s+benar)?)\s*(?:\*\*)?\s*[:\-]\s*(?:\*\*)?\s*(.+)$`)
	explanationRow = regexp.MustCompile(`(?i)^\s*(?:\*\*)?(?:explanation|penjelasan)\s*(?:\*\*)?\s*[:\-]\s*(.+)$`)

	// "Clarity (30%): Ideas are well organised" or "- Clarity - 30 marks - ..."
	criterionLine = regexp.MustCompile(`^\s*(?:[-*•]|\d{1,2}[.)])?\s*(?:\*\*)?([^:(\n]*?[\p{L}][^:(\n]*?)(?:\*\*)?\s*[(\-–:]\s*(\d{1,3})\s*(?:%|marks?|points?|poin|nilai)?\s*\)?\s*(?:[:\-–]\s*(.*))?$`)

	metadataLine  = regexp.MustCompile(`(?im)^\s*(?:[-*]\s*)?(?:\*\*)?(type|duration|description|jenis|durasi|deskripsi)(?:\*\*)?\s*:\s*(?:\*\*)?\s*(.+)$`)
	answerLabel   = regexp.MustCompile(`(?i)^\s*(?:\*\*)?(?:model\s+answer|answer|jawaban(?:\s+model)?)\s*(?:\*\*)?\s*:\s*`)
	markdownBlock = regexp.MustCompile("(?m)^\\s*#{1,6}\\s+")
)

// parseQuestionLines reads numbered questions with optional lettered options and
// answer lines.
func parseQuestionLines(text string) (questionPromptList, bool) {
	var out questionPromptList
	var current *models.QuestionPrompt

	for _, line := range strings.Split(text, "\n") {
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			out = append(out, models.QuestionPrompt{Question: strings.TrimSpace(strings.Trim(m[2], "*"))})
			current = &out[len(out)-1]
			continue
		}
		if current == nil {
			continue
		}
		if m := answerLine.FindStringSubmatch(line); m != nil {
			current.CorrectAnswer = resolveOptionLetter(strings.TrimSpace(strings.Trim(m[1], "*")), current.Options)
			continue
		}
		if m := explanationRow.FindStringSubmatch(line); m != nil {
			current.Explanation = strings.TrimSpace(m[1])
			continue
		}
		if m := optionLine.FindStringSubmatch(line); m != nil {
			current.Options = append(current.Options, strings.TrimSpace(m[2]))
		}
	}

	filtered := out[:0]
	for _, q := range out {
		if q.Question != "" {
			filtered = append(filtered, q)
		}
	}
	return filtered, len(filtered) > 0
}

// resolveOptionLetter maps an answer such as "B" or "B) TCP" to the option text
func resolveOptionLetter(answer string, options []string) string {
	if answer == "" || len(options) == 0 {
		return answer
	}
	letter := strings.ToUpper(answer[:1])
	rest := strings.TrimSpace(answer[1:])
	if len(answer) > 1 && !strings.HasPrefix(rest, ")") && !strings.HasPrefix(rest, ".") && rest != "" {
		return answer
	}
	idx := int(letter[0]) - 'A'
	if idx >= 0 && idx < len(options) {
		return options[idx]
	}
	return answer
}

// parseCriteriaLines reads "name (weight): description" style lines
func parseCriteriaLines(text string) ([]models.Criterion, bool) {
	var criteria []models.Criterion
	for _, line := range strings.Split(text, "\n") {
		m := criterionLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(strings.Trim(m[1], "* "))
		weight, err := strconv.Atoi(m[2])
		if name == "" || err != nil || weight > 100 || isTotalLabel(name) {
			continue
		}
		criteria = append(criteria, models.Criterion{
			Name:        name,
			Weight:      weight,
			Description: strings.TrimSpace(m[3]),
		})
	}
	return criteria, len(criteria) > 0
}

func isTotalLabel(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "total") || strings.HasPrefix(lower, "jumlah")
}

func parseMarkingCriteriaText(text string) (models.MarkingCriteria, bool) {
	criteria, ok := parseCriteriaLines(text)
	if !ok {
		return models.MarkingCriteria{}, false
	}
	return normalizeMarkingCriteria(models.MarkingCriteria{Criteria: criteria}), true
}

func parseRubricSectionText(section rubricSectionDef) func(string) (models.RubricSection, bool) {
	return func(text string) (models.RubricSection, bool) {
		criteria, ok := parseCriteriaLines(text)
		if !ok {
			return models.RubricSection{}, false
		}
		return models.RubricSection{
			Name:     section.Name,
			Criteria: normalizeWeights(criteria),
		}, true
	}
}

// parseMetadataLines reads "Type:", "Duration:" and "Description:" lines
func parseMetadataLines(text string) (models.AssessmentMetadata, bool) {
	var meta models.AssessmentMetadata
	for _, m := range metadataLine.FindAllStringSubmatch(text, -1) {
		value := strings.TrimSpace(strings.Trim(m[2], "*"))
		switch strings.ToLower(m[1]) {
		case "type", "jenis":
			meta.Type = value
		case "duration", "durasi":
			meta.Duration = value
		case "description", "deskripsi":
			meta.Description = value
		}
	}
	return meta, meta.Description != ""
}

// plainAnswer treats the whole response as the model answer
func plainAnswer(text string) (modelAnswer, bool) {
	answer := strings.TrimSpace(answerLabel.ReplaceAllString(text, ""))
	answer = strings.TrimSpace(markdownBlock.ReplaceAllString(answer, ""))
	if answer == "" || strings.HasPrefix(answer, "{") || strings.HasPrefix(answer, "[") {
		return modelAnswer{}, false
	}
	return modelAnswer{ModelAnswer: answer}, true
}

func plainProjectDescription(text string) (projectDescription, bool) {
	description := strings.TrimSpace(markdownBlock.ReplaceAllString(text, ""))
	if description == "" || strings.HasPrefix(description, "{") || strings.HasPrefix(description, "[") {
		return projectDescription{}, false
	}
	return projectDescription{Description: description}, true
}
