package services

import (
	"testing"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weights(criteria []models.Criterion) []int {
	out := make([]int, 0, len(criteria))
	for _, c := range criteria {
		out = append(out, c.Weight)
	}
	return out
}

func TestNormalizeWeights(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want []int
	}{
		{"already 100", []int{40, 30, 30}, []int{40, 30, 30}},
		{"scaled up", []int{50, 30, 10}, []int{55, 33, 12}},
		{"scaled down", []int{100, 100}, []int{50, 50}},
		{"all zero", []int{0, 0, 0}, []int{33, 33, 34}},
		{"negative treated as zero", []int{-10, 50}, []int{0, 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			criteria := make([]models.Criterion, 0, len(tt.in))
			for _, w := range tt.in {
				criteria = append(criteria, models.Criterion{Name: "c", Weight: w})
			}
			assert.Equal(t, tt.want, weights(normalizeWeights(criteria)))
		})
	}
}

func TestNormalizeWeights_DropsUnnamed(t *testing.T) {
	got := normalizeWeights([]models.Criterion{{Name: "  ", Weight: 50}, {Name: " Accuracy ", Weight: 25}})
	require.Len(t, got, 1)
	assert.Equal(t, models.Criterion{Name: "Accuracy", Weight: 100}, got[0])

	assert.Empty(t, normalizeWeights(nil))
}

func TestNormalizeMarkingCriteria_DefaultsTotal(t *testing.T) {
	got := normalizeMarkingCriteria(models.MarkingCriteria{Criteria: []models.Criterion{{Name: "A", Weight: 1}}})
	assert.Equal(t, 100, got.TotalMarks)
	assert.Equal(t, []int{100}, weights(got.Criteria))

	got = normalizeMarkingCriteria(models.MarkingCriteria{Criteria: []models.Criterion{{Name: "A", Weight: 100}}, TotalMarks: 25})
	assert.Equal(t, 25, got.TotalMarks)
}

func TestDefaultMetadata(t *testing.T) {
	quiz := DefaultMetadata(models.AssessmentTypeQuiz, contextutils.LocaleEnglish)
	assert.Equal(t, "quiz", quiz.Type)
	assert.Equal(t, "30 minutes", quiz.Duration)
	assert.Equal(t, "This quiz assesses understanding of the course material.", quiz.Description)

	exam := DefaultMetadata(models.AssessmentTypeExam, contextutils.LocaleIndonesian)
	assert.Equal(t, "120 menit", exam.Duration)
	assert.Equal(t, "Ujian ini menilai pemahaman terhadap materi perkuliahan.", exam.Description)

	unknown := DefaultMetadata(models.AssessmentType("viva"), contextutils.LocaleEnglish)
	assert.Equal(t, "viva", unknown.Type)
	assert.Equal(t, "120 minutes", unknown.Duration)
}

func TestDefaultCriteriaSumTo100(t *testing.T) {
	for _, locale := range []contextutils.Locale{contextutils.LocaleEnglish, contextutils.LocaleIndonesian} {
		sum := func(criteria []models.Criterion) int {
			total := 0
			for _, w := range weights(criteria) {
				total += w
			}
			return total
		}
		assert.Equal(t, 100, sum(DefaultMarkingCriteria(locale).Criteria))
		assert.Equal(t, 100, sum(QuizMarkingCriteria(locale).Criteria))
		assert.Equal(t, 100, sum(TimeoutMarkingCriteria(locale).Criteria))

		rubric := DefaultProjectRubric(locale)
		require.Len(t, rubric.Sections, 3)
		for _, section := range rubric.Sections {
			assert.Equal(t, 100, sum(section.Criteria), "%s %s", locale, section.Name)
			assert.NotEmpty(t, section.Title)
		}
	}

	assert.Equal(t, "Pemahaman", DefaultMarkingCriteria(contextutils.LocaleIndonesian).Criteria[0].Name)
	assert.Equal(t, "Marking criteria unavailable due to timeout.", TimeoutMarkingCriteria(contextutils.LocaleEnglish).Criteria[0].Description)
}

func TestNormalizeQuestionPrompts(t *testing.T) {
	in := questionPromptList{{Question: " First "}, {Question: ""}, {Question: "Second"}, {Question: "Third"}}

	got := normalizeQuestionPrompts(in, 2, contextutils.LocaleEnglish)
	assert.Equal(t, []string{"First", "Second"}, []string{got[0].Question, got[1].Question})

	got = normalizeQuestionPrompts(in[:1], 3, contextutils.LocaleEnglish)
	require.Len(t, got, 3)
	assert.Equal(t, "Unable to generate question 2. Please write this question manually.", got[1].Question)
	assert.Equal(t, "Unable to generate question 3. Please write this question manually.", got[2].Question)
}
