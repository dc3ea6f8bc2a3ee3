package services

import (
	"context"
	"errors"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/batch"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/serviceinterfaces"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/google/uuid"
)

// DefaultQuestionCount is used when a request does not say how many questions it wants
const DefaultQuestionCount = 5

// AssessmentServiceInterface defines the interface for assessment generation
type AssessmentServiceInterface interface {
	GenerateAssessment(ctx context.Context, req *models.AssessmentRequest) *models.AssessmentResponse
}

// AssessmentService assembles complete assessments from individually generated artifacts
type AssessmentService struct {
	cfg          config.AssessmentConfig
	chunks       serviceinterfaces.SourceChunkFetcher
	templates    *AITemplateManager
	orchestrator *Orchestrator
	language     *LanguageService
	logger       *observability.Logger
	metrics      *observability.GenerationMetrics
}

var _ AssessmentServiceInterface = (*AssessmentService)(nil)

// NewAssessmentService creates the assessment pipeline. chunks may be nil when requests
// carry course information only; metrics may be nil.
func NewAssessmentService(cfg *config.Config, completion serviceinterfaces.CompletionService, chunks serviceinterfaces.SourceChunkFetcher, logger *observability.Logger, metrics *observability.GenerationMetrics) (*AssessmentService, error) {
	if completion == nil {
		return nil, contextutils.WrapError(contextutils.ErrAIConfigInvalid, "completion service is required")
	}
	templates, err := NewAITemplateManager()
	if err != nil {
		return nil, err
	}
	return &AssessmentService{
		cfg:          cfg.Assessment,
		chunks:       chunks,
		templates:    templates,
		orchestrator: NewOrchestrator(completion, cfg.Assessment, templates, logger, metrics),
		language:     NewLanguageService(completion, cfg.Assessment, templates, logger, metrics),
		logger:       logger,
		metrics:      metrics,
	}, nil
}

// attemptLog collects generation attempts from concurrent workers
type attemptLog struct {
	mu       sync.Mutex
	attempts []models.GenerationAttempt
}

func (l *attemptLog) add(a models.GenerationAttempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, a)
}

func (l *attemptLog) snapshot() []models.GenerationAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.attempts)
}

// GenerateAssessment runs the whole pipeline. Artifact-level failures are absorbed into
// fallback content; only invalid input, source lookup failures and unexpected panics
// produce an error result.
func (s *AssessmentService) GenerateAssessment(ctx context.Context, req *models.AssessmentRequest) (resp *models.AssessmentResponse) {
	locale := contextutils.LocaleEnglish
	if req != nil {
		locale = contextutils.ParseLocale(req.Language)
	}
	ctx, span := observability.TraceAssessmentFunction(ctx, "generate_assessment",
		observability.AttributeLanguage(string(locale)),
	)

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = contextutils.ErrorWithContextf("assessment generation panicked: %v", r)
			resp = s.errorResponse(ctx, err, string(debug.Stack()))
		}
		observability.FinishSpan(span, &err)
	}()

	artifact, err := s.generate(ctx, req, locale)
	if err != nil {
		return s.errorResponse(ctx, err, "")
	}
	return &models.AssessmentResponse{Assessment: artifact}
}

func (s *AssessmentService) errorResponse(ctx context.Context, err error, trace string) *models.AssessmentResponse {
	fields := map[string]interface{}{"code": string(contextutils.GetErrorCode(err))}
	if trace != "" {
		fields["stack"] = trace
	}
	s.logger.Error(ctx, "Assessment generation failed", err, fields)
	return &models.AssessmentResponse{Error: &models.ErrorResult{
		Message: err.Error(),
		Code:    string(contextutils.GetErrorCode(err)),
		Trace:   trace,
	}}
}

func (s *AssessmentService) generate(ctx context.Context, req *models.AssessmentRequest, locale contextutils.Locale) (*models.AssessmentArtifact, error) {
	if req == nil {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "assessment request is required")
	}
	if err := contextutils.ValidateStruct(req); err != nil {
		return nil, err
	}

	kind := models.ParseAssessmentType(string(req.AssessmentType))
	sources := req.SelectedSources()
	if len(sources) == 0 && req.Course.IsEmpty() {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "select at least one source or provide course information")
	}

	sourceContext, err := s.sourceContext(ctx, sources)
	if err != nil {
		return nil, err
	}

	job := &assessmentJob{
		cfg:          s.cfg,
		templates:    s.templates,
		target:       ModelTarget{Provider: req.Provider, Model: req.Model},
		locale:       locale,
		assessment:   kind,
		difficulty:   strings.TrimSpace(req.Difficulty),
		context:      sourceContext,
		numQuestions: req.NumQuestions,
	}
	if job.numQuestions <= 0 {
		job.numQuestions = DefaultQuestionCount
	}
	course := req.Course
	if course == nil {
		course = &models.CourseInfo{}
	}
	job.system = job.render(SystemPromptTemplate, AITemplateData{
		CourseCode:        course.Code,
		CourseName:        course.Name,
		CourseDescription: course.Description,
	})

	s.logger.Info(ctx, "Generating assessment", map[string]interface{}{
		"type":           string(kind),
		"model":          req.Model,
		"language":       string(locale),
		"num_questions":  job.numQuestions,
		"sources":        len(sources),
		"context_tokens": s.cfg.ContextTokens(),
	})

	log := &attemptLog{}
	artifact := &models.AssessmentArtifact{
		ID:         uuid.NewString(),
		Type:       kind,
		Difficulty: job.difficulty,
		Language:   string(locale),
	}
	artifact.Metadata = s.generateMetadata(ctx, job, log)

	if kind.IsProject() {
		project := s.generateProject(ctx, job, log)
		artifact.Questions = []models.AssessmentQuestion{project}
		artifact.ProjectRubric = project.Rubric
	} else {
		artifact.Questions, err = s.generateQuestions(ctx, job, log)
		if err != nil {
			return nil, err
		}
	}

	artifact.Attempts = log.snapshot()
	artifact.GeneratedAt = time.Now().UTC()
	return artifact, nil
}

func (s *AssessmentService) sourceContext(ctx context.Context, sources []models.SourceRef) (string, error) {
	if len(sources) == 0 || s.chunks == nil {
		return "", nil
	}
	chunks, err := s.chunks.FetchChunks(ctx, sources)
	if errors.Is(err, contextutils.ErrRecordNotFound) {
		s.logger.Info(ctx, "No stored chunks for the selected sources", map[string]interface{}{"sources": len(sources)})
		return "", nil
	}
	if err != nil {
		return "", contextutils.WrapErrorf(err, "failed to fetch chunks for %d sources: %w", len(sources), err)
	}
	return buildSourceContext(chunks, s.cfg.ContextTokens()), nil
}

func (s *AssessmentService) generateMetadata(ctx context.Context, job *assessmentJob, log *attemptLog) models.AssessmentMetadata {
	meta, attempt := Generate(ctx, s.orchestrator, job.metadataSpec())
	log.add(attempt)

	defaults := DefaultMetadata(job.assessment, job.locale)
	if strings.TrimSpace(meta.Type) == "" {
		meta.Type = defaults.Type
	}
	if strings.TrimSpace(meta.Duration) == "" {
		meta.Duration = defaults.Duration
	}
	if attempt.Strategy != models.StrategyDefault {
		meta.Description = s.language.EnforceText(ctx, job.target, meta.Description, job.locale, false)
	}
	return meta
}

func (s *AssessmentService) generateQuestions(ctx context.Context, job *assessmentJob, log *attemptLog) ([]models.AssessmentQuestion, error) {
	generated, attempt := Generate(ctx, s.orchestrator, job.questionPromptsSpec())
	log.add(attempt)

	prompts := normalizeQuestionPrompts(generated, job.numQuestions, job.locale)
	if len(generated) != job.numQuestions {
		s.logger.Warn(ctx, "Question count differs from the request", map[string]interface{}{
			"requested": job.numQuestions,
			"generated": len(generated),
		})
	}

	texts := make([]string, len(prompts))
	for i, q := range prompts {
		texts[i] = q.Question
	}
	texts = s.language.EnforceBatch(ctx, job.target, texts, job.locale)
	for i := range prompts {
		prompts[i].Question = texts[i]
	}

	return batch.Run(ctx, prompts, s.cfg.Concurrency, func(ctx context.Context, q models.QuestionPrompt, index int) (models.AssessmentQuestion, error) {
		return s.processQuestion(ctx, job, log, index, q), nil
	})
}

// processQuestion fills one question slot. It always returns a question, falling back
// to localized placeholder content when generation fails or times out.
func (s *AssessmentService) processQuestion(ctx context.Context, job *assessmentJob, log *attemptLog, index int, q models.QuestionPrompt) models.AssessmentQuestion {
	ctx, span := observability.TraceAssessmentFunction(ctx, "process_question",
		observability.AttributeQuestionIndex(index),
	)
	defer span.End()

	out := models.AssessmentQuestion{
		Question:    q.Question,
		Options:     q.Options,
		Explanation: q.Explanation,
	}
	if q.Question == unavailableQuestion(index, job.locale).Question {
		out.ModelAnswer = contextutils.FallbackText(contextutils.FallbackAnswerUnavailable, job.locale)
		out.CorrectAnswer = out.ModelAnswer
		out.MarkingCriteria = s.fallbackCriteria(job)
		return out
	}

	answer, err := batch.WithTimeout(ctx, s.cfg.RequestTimeout(),
		func(ctx context.Context) (modelAnswer, error) {
			v, attempt := Generate(ctx, s.orchestrator, job.modelAnswerSpec(index, q))
			log.add(attempt)
			if attempt.Strategy != models.StrategyDefault {
				v.ModelAnswer = s.language.EnforceText(ctx, job.target, v.ModelAnswer, job.locale, false)
			}
			return v, nil
		},
		func(ctx context.Context) (modelAnswer, error) {
			s.recordTimeout(ctx, log, models.ArtifactModelAnswer, index)
			return modelAnswer{ModelAnswer: contextutils.FallbackText(contextutils.FallbackModelAnswerTimeout, job.locale)}, nil
		},
	)
	if err != nil {
		answer = modelAnswer{ModelAnswer: contextutils.FallbackText(contextutils.FallbackAnswerUnavailable, job.locale)}
	}
	out.ModelAnswer = answer.ModelAnswer
	if out.Explanation == "" {
		out.Explanation = answer.Explanation
	}
	out.CorrectAnswer = q.CorrectAnswer
	if strings.TrimSpace(out.CorrectAnswer) == "" {
		out.CorrectAnswer = out.ModelAnswer
	}

	// Multiple-choice answers are marked right or wrong, so quizzes use the fixed scheme
	// and make no criteria request.
	if job.assessment.IsMultipleChoice() {
		criteria := QuizMarkingCriteria(job.locale)
		out.MarkingCriteria = &criteria
		return out
	}

	criteria, err := batch.WithTimeout(ctx, s.cfg.RequestTimeout(),
		func(ctx context.Context) (models.MarkingCriteria, error) {
			v, attempt := Generate(ctx, s.orchestrator, job.markingCriteriaSpec(index, q, answer.ModelAnswer))
			log.add(attempt)
			v = normalizeMarkingCriteria(v)
			if attempt.Strategy != models.StrategyDefault {
				s.enforceCriteria(ctx, job, v.Criteria)
			}
			return v, nil
		},
		func(ctx context.Context) (models.MarkingCriteria, error) {
			s.recordTimeout(ctx, log, models.ArtifactMarkingCriteria, index)
			return TimeoutMarkingCriteria(job.locale), nil
		},
	)
	if err != nil {
		out.MarkingCriteria = s.fallbackCriteria(job)
		return out
	}
	out.MarkingCriteria = &criteria
	return out
}

func (s *AssessmentService) fallbackCriteria(job *assessmentJob) *models.MarkingCriteria {
	criteria := DefaultMarkingCriteria(job.locale)
	if job.assessment.IsMultipleChoice() {
		criteria = QuizMarkingCriteria(job.locale)
	}
	return &criteria
}

// enforceCriteria rewrites criterion descriptions in place when they are in the wrong language
func (s *AssessmentService) enforceCriteria(ctx context.Context, job *assessmentJob, criteria []models.Criterion) {
	descriptions := make([]string, len(criteria))
	for i, c := range criteria {
		descriptions[i] = c.Description
	}
	descriptions = s.language.EnforceBatch(ctx, job.target, descriptions, job.locale)
	for i := range criteria {
		criteria[i].Description = descriptions[i]
	}
}

// generateProject builds the single compound question of a project: the brief, then each
// rubric section in turn.
func (s *AssessmentService) generateProject(ctx context.Context, job *assessmentJob, log *attemptLog) models.AssessmentQuestion {
	brief, attempt := Generate(ctx, s.orchestrator, job.projectDescriptionSpec())
	log.add(attempt)
	if attempt.Strategy != models.StrategyDefault {
		brief.Description = s.language.EnforceText(ctx, job.target, brief.Description, job.locale, false)
		brief.Deliverables = s.language.EnforceBatch(ctx, job.target, brief.Deliverables, job.locale)
	}

	if ctx.Err() != nil {
		rubric := DefaultProjectRubric(job.locale)
		return models.AssessmentQuestion{Question: projectQuestion(brief, job.locale), Rubric: &rubric}
	}

	rubric := &models.ProjectRubric{}
	for _, section := range projectRubricSections {
		generated, err := batch.WithTimeout(ctx, s.cfg.RequestTimeout(),
			func(ctx context.Context) (models.RubricSection, error) {
				v, attempt := Generate(ctx, s.orchestrator, job.rubricSectionSpec(section, brief.Description))
				log.add(attempt)
				v.Criteria = normalizeWeights(v.Criteria)
				if attempt.Strategy != models.StrategyDefault {
					s.enforceCriteria(ctx, job, v.Criteria)
				}
				return v, nil
			},
			func(ctx context.Context) (models.RubricSection, error) {
				s.recordTimeout(ctx, log, models.ArtifactRubricSection, -1)
				return DefaultRubricSection(section, job.locale), nil
			},
		)
		if err != nil || len(generated.Criteria) == 0 {
			generated = DefaultRubricSection(section, job.locale)
		}
		generated.Name = section.Name
		if strings.TrimSpace(generated.Title) == "" {
			generated.Title = section.Title.in(job.locale)
		}
		rubric.Sections = append(rubric.Sections, generated)
	}
	return models.AssessmentQuestion{Question: projectQuestion(brief, job.locale), Rubric: rubric}
}

// projectQuestion is the brief followed by its deliverables list
func projectQuestion(brief projectDescription, locale contextutils.Locale) string {
	question := brief.Description
	if len(brief.Deliverables) > 0 {
		label := localizedText{contextutils.LocaleEnglish: "Deliverables:", contextutils.LocaleIndonesian: "Luaran:"}.in(locale)
		question += "\n\n" + label
		for _, d := range brief.Deliverables {
			question += "\n- " + d
		}
	}
	return question
}

func (s *AssessmentService) recordTimeout(ctx context.Context, log *attemptLog, kind models.ArtifactKind, index int) {
	s.metrics.RecordTimeout(ctx, string(kind))
	log.add(models.GenerationAttempt{
		Kind:     kind,
		Strategy: models.StrategyTimeout,
		Duration: s.cfg.RequestTimeout(),
	})
	fields := map[string]interface{}{
		"kind":       string(kind),
		"timeout_ms": s.cfg.RequestTimeoutMS,
	}
	if index >= 0 {
		fields["question_index"] = index
	}
	s.logger.Warn(ctx, "Artifact generation timed out, using fallback", fields)
}
