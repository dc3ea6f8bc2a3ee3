// Package models defines data structures used throughout the assessment generator.
package models

import (
	"strings"
	"time"
)

// AssessmentType is the kind of assessment to generate
type AssessmentType string

const (
	// AssessmentTypeQuiz is a short multiple-choice quiz
	AssessmentTypeQuiz AssessmentType = "quiz"
	// AssessmentTypeTest is a written test
	AssessmentTypeTest AssessmentType = "test"
	// AssessmentTypeExam is a written exam with essay-style questions
	AssessmentTypeExam AssessmentType = "exam"
	// AssessmentTypeAssignment is a take-home assignment
	AssessmentTypeAssignment AssessmentType = "assignment"
	// AssessmentTypeDiscussion is a set of discussion prompts
	AssessmentTypeDiscussion AssessmentType = "discussion"
	// AssessmentTypeProject is a single project brief with a sectioned rubric
	AssessmentTypeProject AssessmentType = "project"
)

// ParseAssessmentType normalizes a user supplied type name. Unknown names are kept
// as given (lower-cased) and generated like an exam.
func ParseAssessmentType(s string) AssessmentType {
	return AssessmentType(strings.ToLower(strings.TrimSpace(s)))
}

// IsProject reports whether the type uses the project pipeline
func (t AssessmentType) IsProject() bool {
	return t == AssessmentTypeProject
}

// IsMultipleChoice reports whether questions carry answer options
func (t AssessmentType) IsMultipleChoice() bool {
	return t == AssessmentTypeQuiz
}

// SourceRef identifies an uploaded course source. When any source in a request sets
// Selected, only the selected ones are used.
type SourceRef struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name,omitempty"`
	Selected *bool  `json:"selected,omitempty"`
}

// Chunk is one ordered excerpt of a source document
type Chunk struct {
	SourceID   string `json:"sourceId"`
	SourceName string `json:"sourceName,omitempty"`
	Order      int    `json:"order"`
	Chunk      string `json:"chunk"`
}

// CourseInfo is the optional course metadata used to ground generation
type CourseInfo struct {
	Code         string `json:"courseCode,omitempty"`
	Name         string `json:"courseName,omitempty"`
	Description  string `json:"courseDescription,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Faculty      string `json:"faculty,omitempty"`
	Semester     string `json:"semester,omitempty"`
	AcademicYear string `json:"academicYear,omitempty"`
}

// IsEmpty reports whether no identifying course information is present
func (c *CourseInfo) IsEmpty() bool {
	return c == nil || (strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Code) == "" && strings.TrimSpace(c.Description) == "")
}

// AssessmentRequest is the input of the assessment pipeline
type AssessmentRequest struct {
	Provider       string         `json:"provider,omitempty"`
	Model          string         `json:"model" validate:"required"`
	Sources        []SourceRef    `json:"selectedSources,omitempty" validate:"omitempty,dive"`
	AssessmentType AssessmentType `json:"assessmentType" validate:"required"`
	Difficulty     string         `json:"difficulty,omitempty"`
	NumQuestions   int            `json:"numQuestions" validate:"gte=0,lte=50"`
	Course         *CourseInfo    `json:"courseInfo,omitempty"`
	Language       string         `json:"language,omitempty" validate:"omitempty,oneof=en id"`
}

// SelectedSources applies the selected-flag filter
func (r *AssessmentRequest) SelectedSources() []SourceRef {
	anyFlagged := false
	for _, s := range r.Sources {
		if s.Selected != nil {
			anyFlagged = true
			break
		}
	}
	if !anyFlagged {
		return r.Sources
	}
	selected := make([]SourceRef, 0, len(r.Sources))
	for _, s := range r.Sources {
		if s.Selected != nil && *s.Selected {
			selected = append(selected, s)
		}
	}
	return selected
}

// Criterion is one weighted marking criterion
type Criterion struct {
	Name        string `json:"name"`
	Weight      int    `json:"weight"`
	Description string `json:"description"`
}

// MarkingCriteria is the marking scheme of one question
type MarkingCriteria struct {
	Criteria   []Criterion `json:"criteria"`
	TotalMarks int         `json:"totalMarks"`
}

// RubricSection is one named part of a project rubric
type RubricSection struct {
	Name     string      `json:"name"`
	Title    string      `json:"title"`
	Criteria []Criterion `json:"criteria"`
}

// ProjectRubric is the merged rubric of a project assessment
type ProjectRubric struct {
	Sections []RubricSection `json:"sections"`
}

// AssessmentMetadata describes the assessment as a whole
type AssessmentMetadata struct {
	Type        string `json:"type"`
	Duration    string `json:"duration"`
	Description string `json:"description"`
}

// QuestionPrompt is a generated question before answers are added
type QuestionPrompt struct {
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// AssessmentQuestion is one fully assembled question slot
type AssessmentQuestion struct {
	Question        string           `json:"question"`
	Options         []string         `json:"options,omitempty"`
	CorrectAnswer   string           `json:"correctAnswer"`
	ModelAnswer     string           `json:"modelAnswer,omitempty"`
	Explanation     string           `json:"explanation,omitempty"`
	MarkingCriteria *MarkingCriteria `json:"markingCriteria,omitempty"`
	Rubric          *ProjectRubric   `json:"rubric,omitempty"`
}

// AssessmentArtifact is the generated assessment
type AssessmentArtifact struct {
	ID            string               `json:"id"`
	Type          AssessmentType       `json:"type"`
	Difficulty    string               `json:"difficulty,omitempty"`
	Language      string               `json:"language"`
	Metadata      AssessmentMetadata   `json:"metadata"`
	Questions     []AssessmentQuestion `json:"questions"`
	ProjectRubric *ProjectRubric       `json:"projectRubric,omitempty"`
	Attempts      []GenerationAttempt  `json:"attempts,omitempty"`
	GeneratedAt   time.Time            `json:"generatedAt"`
}

// ErrorResult is returned in place of an artifact when generation fails outright
type ErrorResult struct {
	Message string `json:"error"`
	Code    string `json:"code"`
	Trace   string `json:"details,omitempty"`
}

// AssessmentResponse carries exactly one of Assessment or Error
type AssessmentResponse struct {
	Assessment *AssessmentArtifact `json:"assessment,omitempty"`
	Error      *ErrorResult        `json:"error,omitempty"`
}
