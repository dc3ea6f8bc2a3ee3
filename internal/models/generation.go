package models

import "time"

// Message roles understood by OpenAI-compatible chat completion endpoints
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message sent to a completion provider
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is an immutable description of one provider call
type CompletionRequest struct {
	Provider        string
	Model           string
	APIKey          string
	Messages        []Message
	Temperature     float64
	MaxOutputTokens int
	// Schema is a JSON Schema document. When set the provider is asked for structured output.
	Schema     string
	SchemaName string
}

// Usage reports provider token accounting when available
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RawCompletion is the unprocessed provider output. Object is set only when the
// provider returned an already decoded structured value.
type RawCompletion struct {
	Text   string
	Object interface{}
	Usage  *Usage
}

// ArtifactKind names a generated artifact with its own schema
type ArtifactKind string

const (
	// ArtifactMetadata is the assessment metadata object
	ArtifactMetadata ArtifactKind = "metadata"
	// ArtifactQuestionPrompts is the list of question prompts
	ArtifactQuestionPrompts ArtifactKind = "question_prompts"
	// ArtifactModelAnswer is the model answer for one question
	ArtifactModelAnswer ArtifactKind = "model_answer"
	// ArtifactMarkingCriteria is the marking scheme for one question
	ArtifactMarkingCriteria ArtifactKind = "marking_criteria"
	// ArtifactProjectDescription is the project brief
	ArtifactProjectDescription ArtifactKind = "project_description"
	// ArtifactRubricSection is one section of a project rubric
	ArtifactRubricSection ArtifactKind = "rubric_section"
)

// GenerationStrategy names the stage of the generation state machine that produced a value
type GenerationStrategy string

const (
	// StrategyStructured is a schema-constrained provider response
	StrategyStructured GenerationStrategy = "structured"
	// StrategyTextRecovery is a free-text response passed through JSON recovery
	StrategyTextRecovery GenerationStrategy = "text_recovery"
	// StrategyHeuristic is a value parsed line by line from free text
	StrategyHeuristic GenerationStrategy = "heuristic"
	// StrategyDefault is the synthesized fallback value
	StrategyDefault GenerationStrategy = "default"
	// StrategyTimeout is the call-site fallback after a per-artifact timeout
	StrategyTimeout GenerationStrategy = "timeout"
)

// GenerationAttempt records how one artifact was produced. It is logged and counted,
// never persisted.
type GenerationAttempt struct {
	Kind           ArtifactKind       `json:"kind"`
	Strategy       GenerationStrategy `json:"strategy"`
	Stages         []string           `json:"stages,omitempty"`
	ReducedContext bool               `json:"reducedContext,omitempty"`
	Errors         []string           `json:"errors,omitempty"`
	Duration       time.Duration      `json:"durationNs"`
}
