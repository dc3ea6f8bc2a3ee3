package services

import (
	"strings"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"
)

// defaultTotalMarks is the mark total used when a generated scheme gives none
const defaultTotalMarks = 100

type localizedText map[contextutils.Locale]string

func (t localizedText) in(locale contextutils.Locale) string {
	if s, ok := t[locale]; ok {
		return s
	}
	return t[contextutils.LocaleEnglish]
}

type localizedCriterion struct {
	name        localizedText
	weight      int
	description localizedText
}

func (c localizedCriterion) in(locale contextutils.Locale) models.Criterion {
	return models.Criterion{Name: c.name.in(locale), Weight: c.weight, Description: c.description.in(locale)}
}

var defaultMarkingCriteria = []localizedCriterion{
	{
		name:        localizedText{contextutils.LocaleEnglish: "Understanding", contextutils.LocaleIndonesian: "Pemahaman"},
		weight:      30,
		description: localizedText{contextutils.LocaleEnglish: "Shows accurate understanding of the relevant concepts.", contextutils.LocaleIndonesian: "Menunjukkan pemahaman yang tepat terhadap konsep yang relevan."},
	},
	{
		name:        localizedText{contextutils.LocaleEnglish: "Application", contextutils.LocaleIndonesian: "Penerapan"},
		weight:      30,
		description: localizedText{contextutils.LocaleEnglish: "Applies the concepts correctly to the question.", contextutils.LocaleIndonesian: "Menerapkan konsep dengan benar pada soal."},
	},
	{
		name:        localizedText{contextutils.LocaleEnglish: "Analysis", contextutils.LocaleIndonesian: "Analisis"},
		weight:      20,
		description: localizedText{contextutils.LocaleEnglish: "Supports the answer with reasoning and relevant examples.", contextutils.LocaleIndonesian: "Mendukung jawaban dengan penalaran dan contoh yang relevan."},
	},
	{
		name:        localizedText{contextutils.LocaleEnglish: "Communication", contextutils.LocaleIndonesian: "Komunikasi"},
		weight:      20,
		description: localizedText{contextutils.LocaleEnglish: "Presents the answer clearly and in a logical order.", contextutils.LocaleIndonesian: "Menyajikan jawaban dengan jelas dan runtut."},
	},
}

var quizCriterion = localizedCriterion{
	name:        localizedText{contextutils.LocaleEnglish: "Correct option", contextutils.LocaleIndonesian: "Pilihan benar"},
	weight:      100,
	description: localizedText{contextutils.LocaleEnglish: "Full marks for selecting the correct option, no marks otherwise.", contextutils.LocaleIndonesian: "Nilai penuh jika memilih jawaban yang benar, tanpa nilai jika salah."},
}

// rubricSectionDef is one of the fixed project rubric sections
type rubricSectionDef struct {
	Name     string
	Title    localizedText
	Criteria []localizedCriterion
}

var projectRubricSections = []rubricSectionDef{
	{
		Name:  "report",
		Title: localizedText{contextutils.LocaleEnglish: "Written report", contextutils.LocaleIndonesian: "Laporan tertulis"},
		Criteria: []localizedCriterion{
			{name: localizedText{contextutils.LocaleEnglish: "Content", contextutils.LocaleIndonesian: "Isi"}, weight: 40, description: localizedText{contextutils.LocaleEnglish: "Covers the problem, method and results accurately.", contextutils.LocaleIndonesian: "Membahas masalah, metode, dan hasil secara akurat."}},
			{name: localizedText{contextutils.LocaleEnglish: "Analysis", contextutils.LocaleIndonesian: "Analisis"}, weight: 30, description: localizedText{contextutils.LocaleEnglish: "Interprets results and discusses limitations.", contextutils.LocaleIndonesian: "Menafsirkan hasil dan membahas keterbatasan."}},
			{name: localizedText{contextutils.LocaleEnglish: "Structure", contextutils.LocaleIndonesian: "Struktur"}, weight: 30, description: localizedText{contextutils.LocaleEnglish: "Well organised, referenced and clearly written.", contextutils.LocaleIndonesian: "Tersusun baik, memiliki rujukan, dan ditulis dengan jelas."}},
		},
	},
	{
		Name:  "presentation",
		Title: localizedText{contextutils.LocaleEnglish: "Presentation", contextutils.LocaleIndonesian: "Presentasi"},
		Criteria: []localizedCriterion{
			{name: localizedText{contextutils.LocaleEnglish: "Clarity", contextutils.LocaleIndonesian: "Kejelasan"}, weight: 40, description: localizedText{contextutils.LocaleEnglish: "Explains the project clearly to the audience.", contextutils.LocaleIndonesian: "Menjelaskan proyek dengan jelas kepada audiens."}},
			{name: localizedText{contextutils.LocaleEnglish: "Visual aids", contextutils.LocaleIndonesian: "Alat bantu visual"}, weight: 30, description: localizedText{contextutils.LocaleEnglish: "Slides and demonstrations support the message.", contextutils.LocaleIndonesian: "Slide dan demonstrasi mendukung pesan yang disampaikan."}},
			{name: localizedText{contextutils.LocaleEnglish: "Questions", contextutils.LocaleIndonesian: "Tanya jawab"}, weight: 30, description: localizedText{contextutils.LocaleEnglish: "Answers questions accurately and confidently.", contextutils.LocaleIndonesian: "Menjawab pertanyaan dengan tepat dan percaya diri."}},
		},
	},
	{
		Name:  "individual_contribution",
		Title: localizedText{contextutils.LocaleEnglish: "Individual contribution", contextutils.LocaleIndonesian: "Kontribusi individu"},
		Criteria: []localizedCriterion{
			{name: localizedText{contextutils.LocaleEnglish: "Participation", contextutils.LocaleIndonesian: "Partisipasi"}, weight: 40, description: localizedText{contextutils.LocaleEnglish: "Contributes consistently throughout the project.", contextutils.LocaleIndonesian: "Berkontribusi secara konsisten selama proyek."}},
			{name: localizedText{contextutils.LocaleEnglish: "Collaboration", contextutils.LocaleIndonesian: "Kolaborasi"}, weight: 30, description: localizedText{contextutils.LocaleEnglish: "Works effectively with team members.", contextutils.LocaleIndonesian: "Bekerja sama secara efektif dengan anggota tim."}},
			{name: localizedText{contextutils.LocaleEnglish: "Reflection", contextutils.LocaleIndonesian: "Refleksi"}, weight: 30, description: localizedText{contextutils.LocaleEnglish: "Reflects on own role and learning.", contextutils.LocaleIndonesian: "Merefleksikan peran dan pembelajaran diri."}},
		},
	},
}

var typeDurations = map[models.AssessmentType]localizedText{
	models.AssessmentTypeQuiz:       {contextutils.LocaleEnglish: "30 minutes", contextutils.LocaleIndonesian: "30 menit"},
	models.AssessmentTypeTest:       {contextutils.LocaleEnglish: "60 minutes", contextutils.LocaleIndonesian: "60 menit"},
	models.AssessmentTypeExam:       {contextutils.LocaleEnglish: "120 minutes", contextutils.LocaleIndonesian: "120 menit"},
	models.AssessmentTypeAssignment: {contextutils.LocaleEnglish: "1 week", contextutils.LocaleIndonesian: "1 minggu"},
	models.AssessmentTypeDiscussion: {contextutils.LocaleEnglish: "45 minutes", contextutils.LocaleIndonesian: "45 menit"},
	models.AssessmentTypeProject:    {contextutils.LocaleEnglish: "4 weeks", contextutils.LocaleIndonesian: "4 minggu"},
}

var typeNames = map[models.AssessmentType]localizedText{
	models.AssessmentTypeQuiz:       {contextutils.LocaleEnglish: "quiz", contextutils.LocaleIndonesian: "Kuis"},
	models.AssessmentTypeTest:       {contextutils.LocaleEnglish: "test", contextutils.LocaleIndonesian: "Tes"},
	models.AssessmentTypeExam:       {contextutils.LocaleEnglish: "exam", contextutils.LocaleIndonesian: "Ujian"},
	models.AssessmentTypeAssignment: {contextutils.LocaleEnglish: "assignment", contextutils.LocaleIndonesian: "Tugas"},
	models.AssessmentTypeDiscussion: {contextutils.LocaleEnglish: "discussion", contextutils.LocaleIndonesian: "Diskusi"},
	models.AssessmentTypeProject:    {contextutils.LocaleEnglish: "project", contextutils.LocaleIndonesian: "Proyek"},
}

func assessmentTypeName(t models.AssessmentType, locale contextutils.Locale) string {
	if names, ok := typeNames[t]; ok {
		return names.in(locale)
	}
	return string(t)
}

// DefaultMetadata is the metadata used when generation fails
func DefaultMetadata(t models.AssessmentType, locale contextutils.Locale) models.AssessmentMetadata {
	duration := typeDurations[models.AssessmentTypeExam].in(locale)
	if d, ok := typeDurations[t]; ok {
		duration = d.in(locale)
	}
	return models.AssessmentMetadata{
		Type:        string(t),
		Duration:    duration,
		Description: contextutils.FallbackText(contextutils.FallbackDescription, locale, assessmentTypeName(t, locale)),
	}
}

// DefaultMarkingCriteria is the generic four-criterion scheme
func DefaultMarkingCriteria(locale contextutils.Locale) models.MarkingCriteria {
	criteria := make([]models.Criterion, 0, len(defaultMarkingCriteria))
	for _, c := range defaultMarkingCriteria {
		criteria = append(criteria, c.in(locale))
	}
	return models.MarkingCriteria{Criteria: criteria, TotalMarks: defaultTotalMarks}
}

// QuizMarkingCriteria is the fixed scheme of a multiple-choice question
func QuizMarkingCriteria(locale contextutils.Locale) models.MarkingCriteria {
	return models.MarkingCriteria{Criteria: []models.Criterion{quizCriterion.in(locale)}, TotalMarks: defaultTotalMarks}
}

// TimeoutMarkingCriteria replaces criteria whose generation timed out
func TimeoutMarkingCriteria(locale contextutils.Locale) models.MarkingCriteria {
	return models.MarkingCriteria{
		Criteria: []models.Criterion{{
			Name:        defaultMarkingCriteria[0].name.in(locale),
			Weight:      100,
			Description: contextutils.FallbackText(contextutils.FallbackCriteriaTimeout, locale),
		}},
		TotalMarks: defaultTotalMarks,
	}
}

// DefaultRubricSection is the canned rubric for one project section
func DefaultRubricSection(section rubricSectionDef, locale contextutils.Locale) models.RubricSection {
	criteria := make([]models.Criterion, 0, len(section.Criteria))
	for _, c := range section.Criteria {
		criteria = append(criteria, c.in(locale))
	}
	return models.RubricSection{Name: section.Name, Title: section.Title.in(locale), Criteria: criteria}
}

// DefaultProjectRubric is the canned rubric with every section
func DefaultProjectRubric(locale contextutils.Locale) models.ProjectRubric {
	rubric := models.ProjectRubric{}
	for _, section := range projectRubricSections {
		rubric.Sections = append(rubric.Sections, DefaultRubricSection(section, locale))
	}
	return rubric
}

func unavailableQuestion(index int, locale contextutils.Locale) models.QuestionPrompt {
	return models.QuestionPrompt{Question: contextutils.FallbackText(contextutils.FallbackQuestionUnavailable, locale, index+1)}
}

// normalizeMarkingCriteria drops unnamed criteria, rescales weights to 100 and sets
// the mark total.
func normalizeMarkingCriteria(mc models.MarkingCriteria) models.MarkingCriteria {
	mc.Criteria = normalizeWeights(mc.Criteria)
	if mc.TotalMarks <= 0 {
		mc.TotalMarks = defaultTotalMarks
	}
	return mc
}

// normalizeWeights makes weights sum to 100, keeping their proportions. The rounding
// remainder goes to the last criterion; all-zero weights are split evenly.
func normalizeWeights(criteria []models.Criterion) []models.Criterion {
	out := make([]models.Criterion, 0, len(criteria))
	sum := 0
	for _, c := range criteria {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		if c.Weight < 0 {
			c.Weight = 0
		}
		sum += c.Weight
		out = append(out, c)
	}
	if len(out) == 0 || sum == 100 {
		return out
	}

	assigned := 0
	for i := range out {
		if sum == 0 {
			out[i].Weight = 100 / len(out)
		} else {
			out[i].Weight = out[i].Weight * 100 / sum
		}
		assigned += out[i].Weight
	}
	out[len(out)-1].Weight += 100 - assigned
	return out
}
