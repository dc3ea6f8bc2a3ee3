package services

import (
	"embed"
	"strings"
	"text/template"

	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"
)

//go:embed templates/*.tmpl
var aiTemplatesFS embed.FS

// Template names as constants
const (
	SystemPromptTemplate             = "system_prompt.tmpl"
	ContextBlockTemplate             = "context_block.tmpl"
	ReducedContextTemplate           = "reduced_context.tmpl"
	MetadataPromptTemplate           = "metadata_prompt.tmpl"
	QuestionPromptsTemplate          = "question_prompts.tmpl"
	ModelAnswerPromptTemplate        = "model_answer_prompt.tmpl"
	MarkingCriteriaPromptTemplate    = "marking_criteria_prompt.tmpl"
	ProjectDescriptionPromptTemplate = "project_description_prompt.tmpl"
	RubricSectionPromptTemplate      = "rubric_section_prompt.tmpl"
	LanguageRewriteTemplate          = "language_rewrite.tmpl"
	LanguageBatchRewriteTemplate     = "language_batch_rewrite.tmpl"
	JSONStructureGuidanceTemplate    = "json_structure_guidance.tmpl"
)

// AITemplateData holds data for rendering AI prompt templates
type AITemplateData struct {
	// Assessment
	AssessmentType string
	Difficulty     string
	LanguageName   string
	Count          int
	MultipleChoice bool

	// Course
	CourseCode        string
	CourseName        string
	CourseDescription string
	Context           string

	// Per question
	QuestionNumber int
	Question       string
	Options        []string
	CorrectAnswer  string
	ModelAnswer    string

	// Project
	ProjectDescription string
	SectionName        string
	SectionTitle       string

	// Schema and rewriting
	SchemaForPrompt string
	Text            string
}

// AITemplateManager manages AI prompt templates
type AITemplateManager struct {
	templates *template.Template
}

// NewAITemplateManager parses the embedded prompt templates
func NewAITemplateManager() (result0 *AITemplateManager, err error) {
	templates, err := template.New("").ParseFS(aiTemplatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to parse prompt templates: %w", err)
	}

	return &AITemplateManager{
		templates: templates,
	}, nil
}

// RenderTemplate renders a template with the given data
func (tm *AITemplateManager) RenderTemplate(templateName string, data AITemplateData) (result0 string, err error) {
	var buf strings.Builder
	err = tm.templates.ExecuteTemplate(&buf, templateName, data)
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to render %s: %w", templateName, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// MustRender renders a template that is known to be valid for data. A rendering
// failure is a programming error in an embedded template.
func (tm *AITemplateManager) MustRender(templateName string, data AITemplateData) string {
	out, err := tm.RenderTemplate(templateName, data)
	if err != nil {
		panic(err)
	}
	return out
}
