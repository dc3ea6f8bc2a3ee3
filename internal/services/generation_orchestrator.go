package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/jsonrecovery"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/serviceinterfaces"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/tokens"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
)

// GenerationState is a state of the per-artifact generation state machine
type GenerationState string

const (
	// StateStructured requests schema-constrained output
	StateStructured GenerationState = "structured"
	// StateText requests free text and recovers JSON from it
	StateText GenerationState = "text"
	// StateReducedContext swaps the source context for a placeholder and starts over
	StateReducedContext GenerationState = "reduced_context"
	// StateDefault returns the artifact's fallback value
	StateDefault GenerationState = "default"

	stateDone GenerationState = "done"
)

// ModelTarget selects the provider and model for a request
type ModelTarget struct {
	Provider string
	Model    string
}

// PromptParts is the semantic prompt of an artifact. Context holds the source excerpts
// and is the only part replaced on a reduced-context retry.
type PromptParts struct {
	System  string
	Context string
	User    string
}

// ArtifactSpec describes how one artifact of type T is requested, checked and defaulted
type ArtifactSpec[T any] struct {
	Kind            models.ArtifactKind
	Target          ModelTarget
	Prompt          PromptParts
	Schema          string
	Temperature     float64
	MaxOutputTokens int

	// Check applies rules the schema cannot express. Optional.
	Check func(T) error
	// Heuristic parses an unstructured response. Optional.
	Heuristic func(text string) (T, bool)
	// Default builds the fallback value and must not fail.
	Default func() T
}

// Orchestrator runs the generation state machine against a completion service
type Orchestrator struct {
	completion serviceinterfaces.CompletionService
	cfg        config.AssessmentConfig
	templates  *AITemplateManager
	logger     *observability.Logger
	metrics    *observability.GenerationMetrics

	schemas sync.Map // schema text -> *gojsonschema.Schema
}

// NewOrchestrator creates an orchestrator. metrics may be nil.
func NewOrchestrator(completion serviceinterfaces.CompletionService, cfg config.AssessmentConfig, templates *AITemplateManager, logger *observability.Logger, metrics *observability.GenerationMetrics) *Orchestrator {
	return &Orchestrator{
		completion: completion,
		cfg:        cfg,
		templates:  templates,
		logger:     logger,
		metrics:    metrics,
	}
}

// generationRun is the mutable state of one Generate call
type generationRun[T any] struct {
	spec           ArtifactSpec[T]
	prompt         PromptParts
	maxTokens      int
	reduced        bool
	providerFailed bool
	attempt        *models.GenerationAttempt
}

func (r *generationRun[T]) fail(state GenerationState, err error) {
	if contextutils.IsProviderFailure(err) {
		r.providerFailed = true
	}
	r.attempt.Errors = append(r.attempt.Errors, string(state)+": "+err.Error())
}

// Generate produces the artifact described by spec. It never fails: when every stage
// fails the artifact's Default value is returned. The attempt records the path taken.
func Generate[T any](ctx context.Context, o *Orchestrator, spec ArtifactSpec[T]) (result T, attempt models.GenerationAttempt) {
	ctx, span := observability.TraceGenerationFunction(ctx, "generate_artifact",
		observability.AttributeArtifactKind(string(spec.Kind)),
		observability.AttributeModel(spec.Target.Model),
	)
	defer span.End()

	start := time.Now()
	attempt.Kind = spec.Kind
	run := &generationRun[T]{
		spec:      spec,
		prompt:    spec.Prompt,
		maxTokens: spec.MaxOutputTokens,
		attempt:   &attempt,
	}

	state := StateStructured
	for state != stateDone {
		if ctx.Err() != nil && state != StateDefault {
			run.fail(state, ctx.Err())
			state = StateDefault
		}
		attempt.Stages = append(attempt.Stages, string(state))

		switch state {
		case StateStructured:
			v, err := structuredAttempt(ctx, o, run)
			if err == nil {
				result, attempt.Strategy, state = v, models.StrategyStructured, stateDone
				continue
			}
			run.fail(state, err)
			state = StateText

		case StateText:
			v, strategy, err := textAttempt(ctx, o, run)
			if err == nil {
				result, attempt.Strategy, state = v, strategy, stateDone
				continue
			}
			run.fail(state, err)
			// A reduced-context retry happens once, only after a request-level
			// failure with a large context.
			state = StateDefault
			if run.canReduce(o.cfg.ReducedContextMinTokens) {
				state = StateReducedContext
			}

		case StateReducedContext:
			run.prompt.Context = o.templates.MustRender(ReducedContextTemplate, AITemplateData{})
			run.maxTokens = max(int(float64(run.maxTokens)*o.cfg.ReducedOutputRatio), 1)
			run.reduced = true
			run.providerFailed = false
			attempt.ReducedContext = true
			state = StateStructured

		case StateDefault:
			result, attempt.Strategy, state = spec.Default(), models.StrategyDefault, stateDone
		}
	}

	attempt.Duration = time.Since(start)
	span.SetAttributes(
		observability.AttributeStrategy(string(attempt.Strategy)),
		attribute.Bool("generation.reduced_context", attempt.ReducedContext),
	)
	o.metrics.RecordAttempt(ctx, string(spec.Kind), string(attempt.Strategy), attempt.ReducedContext)

	fields := map[string]interface{}{
		"kind":            string(spec.Kind),
		"strategy":        string(attempt.Strategy),
		"stages":          strings.Join(attempt.Stages, ","),
		"reduced_context": attempt.ReducedContext,
		"duration":        attempt.Duration.String(),
	}
	if attempt.Strategy == models.StrategyDefault {
		fields["errors"] = attempt.Errors
		o.logger.Warn(ctx, "Artifact generation fell back to default", fields)
	} else if o.cfg.Debug {
		o.logger.Debug(ctx, "Artifact generated", fields)
	}
	return result, attempt
}

func (r *generationRun[T]) canReduce(minTokens int) bool {
	return r.providerFailed && !r.reduced && tokens.Estimate(r.prompt.Context) > minTokens
}

func (o *Orchestrator) request(prompt PromptParts, maxTokens int, target ModelTarget, temperature float64, schema string) models.CompletionRequest {
	var messages []models.Message
	if prompt.System != "" {
		messages = append(messages, models.Message{Role: models.RoleSystem, Content: prompt.System})
	}
	user := prompt.User
	if prompt.Context != "" {
		user = o.templates.MustRender(ContextBlockTemplate, AITemplateData{Context: prompt.Context}) + "\n\n" + user
	}
	messages = append(messages, models.Message{Role: models.RoleUser, Content: user})

	return models.CompletionRequest{
		Provider:        target.Provider,
		Model:           target.Model,
		Messages:        messages,
		Temperature:     temperature,
		MaxOutputTokens: maxTokens,
		Schema:          schema,
	}
}

// structuredAttempt asks for schema-constrained output and accepts it only when it
// parses strictly and passes validation.
func structuredAttempt[T any](ctx context.Context, o *Orchestrator, run *generationRun[T]) (T, error) {
	var zero T
	req := o.request(run.prompt, run.maxTokens, run.spec.Target, run.spec.Temperature, run.spec.Schema)
	req.SchemaName = string(run.spec.Kind)

	raw, err := o.completion.Complete(ctx, req)
	if err != nil {
		return zero, err
	}

	var doc []byte
	if raw.Object != nil {
		doc, err = json.Marshal(raw.Object)
		if err != nil {
			return zero, contextutils.WrapErrorf(contextutils.ErrShapeMismatch, "structured object is not serializable: %w", err)
		}
	} else {
		text := jsonrecovery.CleanModelText(raw.Text)
		if !json.Valid([]byte(text)) {
			return zero, contextutils.WrapError(contextutils.ErrParseFailure, "structured response is not valid JSON")
		}
		doc = []byte(text)
	}

	return decodeArtifact(o, run.spec, doc)
}

// textAttempt asks for free text, then tries JSON recovery and finally the heuristic parser
func textAttempt[T any](ctx context.Context, o *Orchestrator, run *generationRun[T]) (T, models.GenerationStrategy, error) {
	var zero T
	req := o.request(run.prompt, run.maxTokens, run.spec.Target, run.spec.Temperature, "")
	if run.spec.Schema != "" {
		last := len(req.Messages) - 1
		req.Messages[last].Content += "\n\n" + o.templates.MustRender(JSONStructureGuidanceTemplate, AITemplateData{SchemaForPrompt: run.spec.Schema})
	}

	raw, err := o.completion.Complete(ctx, req)
	if err != nil {
		return zero, "", err
	}

	text := jsonrecovery.CleanModelText(raw.Text)
	recovered, stage := jsonrecovery.ExtractWithStage(text)
	if stage != jsonrecovery.StageNone {
		o.metrics.RecordRecoveryStage(ctx, string(stage))
		v, err := decodeArtifact(o, run.spec, []byte(recovered))
		if err == nil {
			return v, models.StrategyTextRecovery, nil
		}
		run.fail(StateText, err)
	} else {
		run.fail(StateText, contextutils.WrapError(contextutils.ErrParseFailure, "no JSON could be recovered from the response"))
	}

	if run.spec.Heuristic != nil {
		if v, ok := run.spec.Heuristic(text); ok && checkArtifact(run.spec, v) == nil {
			return v, models.StrategyHeuristic, nil
		}
	}
	return zero, "", contextutils.WrapError(contextutils.ErrParseFailure, "response could not be parsed")
}

// decodeArtifact validates doc against the artifact schema, decodes it and applies Check.
// Every failure is a shape mismatch.
func decodeArtifact[T any](o *Orchestrator, spec ArtifactSpec[T], doc []byte) (T, error) {
	var v T
	if spec.Schema != "" {
		schema, err := o.compiledSchema(spec.Schema)
		if err != nil {
			return v, err
		}
		res, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
		if err != nil {
			return v, contextutils.WrapErrorf(contextutils.ErrShapeMismatch, "schema validation error: %w", err)
		}
		if !res.Valid() {
			msgs := make([]string, 0, len(res.Errors()))
			for _, e := range res.Errors() {
				msgs = append(msgs, e.String())
			}
			return v, contextutils.WrapErrorf(contextutils.ErrShapeMismatch, "%s does not match schema: %s", spec.Kind, strings.Join(msgs, "; "))
		}
	}

	if err := json.Unmarshal(doc, &v); err != nil {
		return v, contextutils.WrapErrorf(contextutils.ErrShapeMismatch, "failed to decode %s: %w", spec.Kind, err)
	}
	if err := checkArtifact(spec, v); err != nil {
		return v, err
	}
	return v, nil
}

func checkArtifact[T any](spec ArtifactSpec[T], v T) error {
	if spec.Check == nil {
		return nil
	}
	if err := spec.Check(v); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrShapeMismatch, "%s failed checks: %w", spec.Kind, err)
	}
	return nil
}

func (o *Orchestrator) compiledSchema(schema string) (*gojsonschema.Schema, error) {
	if cached, ok := o.schemas.Load(schema); ok {
		return cached.(*gojsonschema.Schema), nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "invalid artifact schema: %w", err)
	}
	o.schemas.Store(schema, compiled)
	return compiled, nil
}
