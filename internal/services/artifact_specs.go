package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"
)

// JSON schemas of the generated artifacts. They are sent to providers with structured
// output support and used to validate every recovered document.
const (
	metadataSchema = `{
  "type": "object",
  "required": ["type", "duration", "description"],
  "properties": {
    "type": {"type": "string"},
    "duration": {"type": ["string", "number"]},
    "description": {"type": "string", "minLength": 1}
  }
}`

	questionPromptsSchema = `{
  "definitions": {
    "question": {
      "type": "object",
      "required": ["question"],
      "properties": {
        "question": {"type": "string", "minLength": 1},
        "options": {"type": "array", "items": {"type": "string"}},
        "correctAnswer": {"type": "string"},
        "explanation": {"type": "string"}
      }
    }
  },
  "anyOf": [
    {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/question"}},
    {
      "type": "object",
      "required": ["questions"],
      "properties": {
        "questions": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/question"}}
      }
    }
  ]
}`

	modelAnswerSchema = `{
  "type": "object",
  "required": ["modelAnswer"],
  "properties": {
    "modelAnswer": {"type": "string", "minLength": 1},
    "explanation": {"type": "string"}
  }
}`

	markingCriteriaSchema = `{
  "type": "object",
  "required": ["criteria"],
  "properties": {
    "criteria": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "weight"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "weight": {"type": ["number", "string"], "minimum": 0, "maximum": 100, "pattern": "^\\s*\\d+(\\.\\d+)?\\s*%?\\s*$"},
          "description": {"type": "string"}
        }
      }
    },
    "totalMarks": {"type": "number", "minimum": 0}
  }
}`

	projectDescriptionSchema = `{
  "type": "object",
  "required": ["description"],
  "properties": {
    "description": {"type": "string", "minLength": 1},
    "deliverables": {"type": "array", "items": {"type": "string"}}
  }
}`

	rubricSectionSchema = `{
  "type": "object",
  "required": ["criteria"],
  "properties": {
    "name": {"type": "string"},
    "title": {"type": "string"},
    "criteria": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "weight"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "weight": {"type": ["number", "string"], "minimum": 0, "maximum": 100, "pattern": "^\\s*\\d+(\\.\\d+)?\\s*%?\\s*$"},
          "description": {"type": "string"}
        }
      }
    }
  }
}`
)

// Output budget of each artifact kind as a share of the response budget
var budgetScale = map[models.ArtifactKind]float64{
	models.ArtifactMetadata:           0.25,
	models.ArtifactQuestionPrompts:    1.0,
	models.ArtifactModelAnswer:        0.5,
	models.ArtifactMarkingCriteria:    0.4,
	models.ArtifactProjectDescription: 0.5,
	models.ArtifactRubricSection:      0.4,
}

// questionPromptList decodes either a bare array of questions or {"questions": [...]}
type questionPromptList []models.QuestionPrompt

func (l *questionPromptList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []models.QuestionPrompt
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var wrapped struct {
		Questions []models.QuestionPrompt `json:"questions"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Questions
	return nil
}

type modelAnswer struct {
	ModelAnswer string `json:"modelAnswer"`
	Explanation string `json:"explanation,omitempty"`
}

type projectDescription struct {
	Description  string   `json:"description"`
	Deliverables []string `json:"deliverables,omitempty"`
}

// assessmentJob carries the per-request inputs shared by every artifact of one assessment
type assessmentJob struct {
	cfg          config.AssessmentConfig
	templates    *AITemplateManager
	target       ModelTarget
	locale       contextutils.Locale
	assessment   models.AssessmentType
	difficulty   string
	system       string
	context      string
	numQuestions int
}

func (j *assessmentJob) budget(kind models.ArtifactKind) int {
	scale, ok := budgetScale[kind]
	if !ok {
		scale = 1
	}
	return max(int(float64(j.cfg.ResponseTokens())*scale), config.MinResponseTokens)
}

func (j *assessmentJob) render(name string, data AITemplateData) string {
	data.AssessmentType = assessmentTypeName(j.assessment, contextutils.LocaleEnglish)
	data.Difficulty = j.difficulty
	data.LanguageName = languageName(j.locale)
	return j.templates.MustRender(name, data)
}

func (j *assessmentJob) prompt(user string) PromptParts {
	return PromptParts{System: j.system, Context: j.context, User: user}
}

func (j *assessmentJob) metadataSpec() ArtifactSpec[models.AssessmentMetadata] {
	return ArtifactSpec[models.AssessmentMetadata]{
		Kind:            models.ArtifactMetadata,
		Target:          j.target,
		Prompt:          j.prompt(j.render(MetadataPromptTemplate, AITemplateData{})),
		Schema:          metadataSchema,
		Temperature:     j.cfg.Temperature,
		MaxOutputTokens: j.budget(models.ArtifactMetadata),
		Check: func(m models.AssessmentMetadata) error {
			if strings.TrimSpace(m.Description) == "" {
				return errors.New("description is empty")
			}
			return nil
		},
		Heuristic: parseMetadataLines,
		Default: func() models.AssessmentMetadata {
			return DefaultMetadata(j.assessment, j.locale)
		},
	}
}

func (j *assessmentJob) questionPromptsSpec() ArtifactSpec[questionPromptList] {
	return ArtifactSpec[questionPromptList]{
		Kind:   models.ArtifactQuestionPrompts,
		Target: j.target,
		Prompt: j.prompt(j.render(QuestionPromptsTemplate, AITemplateData{
			Count:          j.numQuestions,
			MultipleChoice: j.assessment.IsMultipleChoice(),
		})),
		Schema:          questionPromptsSchema,
		Temperature:     j.cfg.Temperature,
		MaxOutputTokens: j.budget(models.ArtifactQuestionPrompts),
		Check: func(l questionPromptList) error {
			for _, q := range l {
				if strings.TrimSpace(q.Question) != "" {
					return nil
				}
			}
			return errors.New("no question has text")
		},
		Heuristic: parseQuestionLines,
		// An empty list is padded with unavailable markers by normalizeQuestionPrompts.
		Default: func() questionPromptList { return nil },
	}
}

func (j *assessmentJob) modelAnswerSpec(index int, q models.QuestionPrompt) ArtifactSpec[modelAnswer] {
	return ArtifactSpec[modelAnswer]{
		Kind:   models.ArtifactModelAnswer,
		Target: j.target,
		Prompt: j.prompt(j.render(ModelAnswerPromptTemplate, AITemplateData{
			QuestionNumber: index + 1,
			Question:       q.Question,
			Options:        q.Options,
			CorrectAnswer:  q.CorrectAnswer,
		})),
		Schema:          modelAnswerSchema,
		Temperature:     j.cfg.Temperature,
		MaxOutputTokens: j.budget(models.ArtifactModelAnswer),
		Check: func(a modelAnswer) error {
			if strings.TrimSpace(a.ModelAnswer) == "" {
				return errors.New("model answer is empty")
			}
			return nil
		},
		Heuristic: plainAnswer,
		Default: func() modelAnswer {
			return modelAnswer{ModelAnswer: contextutils.FallbackText(contextutils.FallbackAnswerUnavailable, j.locale)}
		},
	}
}

func (j *assessmentJob) markingCriteriaSpec(index int, q models.QuestionPrompt, answer string) ArtifactSpec[models.MarkingCriteria] {
	return ArtifactSpec[models.MarkingCriteria]{
		Kind:   models.ArtifactMarkingCriteria,
		Target: j.target,
		Prompt: j.prompt(j.render(MarkingCriteriaPromptTemplate, AITemplateData{
			QuestionNumber: index + 1,
			Question:       q.Question,
			ModelAnswer:    answer,
		})),
		Schema:          markingCriteriaSchema,
		Temperature:     j.cfg.Temperature * 0.5,
		MaxOutputTokens: j.budget(models.ArtifactMarkingCriteria),
		Check:           checkCriteria[models.MarkingCriteria](func(mc models.MarkingCriteria) []models.Criterion { return mc.Criteria }),
		Heuristic:       parseMarkingCriteriaText,
		Default: func() models.MarkingCriteria {
			return DefaultMarkingCriteria(j.locale)
		},
	}
}

func (j *assessmentJob) projectDescriptionSpec() ArtifactSpec[projectDescription] {
	return ArtifactSpec[projectDescription]{
		Kind:            models.ArtifactProjectDescription,
		Target:          j.target,
		Prompt:          j.prompt(j.render(ProjectDescriptionPromptTemplate, AITemplateData{})),
		Schema:          projectDescriptionSchema,
		Temperature:     j.cfg.Temperature,
		MaxOutputTokens: j.budget(models.ArtifactProjectDescription),
		Check: func(p projectDescription) error {
			if strings.TrimSpace(p.Description) == "" {
				return errors.New("description is empty")
			}
			return nil
		},
		Heuristic: plainProjectDescription,
		Default: func() projectDescription {
			return projectDescription{Description: contextutils.FallbackText(contextutils.FallbackProjectDescription, j.locale)}
		},
	}
}

func (j *assessmentJob) rubricSectionSpec(section rubricSectionDef, description string) ArtifactSpec[models.RubricSection] {
	return ArtifactSpec[models.RubricSection]{
		Kind:   models.ArtifactRubricSection,
		Target: j.target,
		Prompt: j.prompt(j.render(RubricSectionPromptTemplate, AITemplateData{
			ProjectDescription: description,
			SectionName:        section.Name,
			SectionTitle:       section.Title.in(j.locale),
		})),
		Schema:          rubricSectionSchema,
		Temperature:     j.cfg.Temperature * 0.5,
		MaxOutputTokens: j.budget(models.ArtifactRubricSection),
		Check:           checkCriteria[models.RubricSection](func(s models.RubricSection) []models.Criterion { return s.Criteria }),
		Heuristic:       parseRubricSectionText(section),
		Default: func() models.RubricSection {
			return DefaultRubricSection(section, j.locale)
		},
	}
}

// checkCriteria requires at least one named criterion
func checkCriteria[T any](criteria func(T) []models.Criterion) func(T) error {
	return func(v T) error {
		for i, c := range criteria(v) {
			if strings.TrimSpace(c.Name) == "" {
				return fmt.Errorf("criterion %d has no name", i+1)
			}
		}
		if len(criteria(v)) == 0 {
			return errors.New("no criteria")
		}
		return nil
	}
}

// normalizeQuestionPrompts returns exactly n prompts, padding with unavailable markers
func normalizeQuestionPrompts(prompts questionPromptList, n int, locale contextutils.Locale) []models.QuestionPrompt {
	out := make([]models.QuestionPrompt, 0, n)
	for _, q := range prompts {
		if len(out) == n {
			break
		}
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			continue
		}
		out = append(out, q)
	}
	for len(out) < n {
		out = append(out, unavailableQuestion(len(out), locale))
	}
	return out
}

func languageName(locale contextutils.Locale) string {
	if locale == contextutils.LocaleIndonesian {
		return "Indonesian (Bahasa Indonesia)"
	}
	return "English"
}
