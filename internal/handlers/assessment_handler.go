// Package handlers exposes the assessment generator over HTTP.
package handlers

import (
	"net/http"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/middleware"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/services"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// AssessmentHandler handles assessment generation requests
type AssessmentHandler struct {
	assessments services.AssessmentServiceInterface
	logger      *observability.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler
func NewAssessmentHandler(assessments services.AssessmentServiceInterface, logger *observability.Logger) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments, logger: logger}
}

// GenerateAssessment handles POST /v1/assessments. A generated assessment is returned
// with 200 even when some artifacts fell back to default content; an error result is
// returned with the status of its code.
func (h *AssessmentHandler) GenerateAssessment(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "generate_assessment")
	var err error
	defer observability.FinishSpan(span, &err)

	var req models.AssessmentRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		err = contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid request body: %v", bindErr)
		middleware.HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		observability.AttributeAssessmentType(string(req.AssessmentType)),
		observability.AttributeModel(req.Model),
		attribute.Int("assessment.num_questions", req.NumQuestions),
		attribute.Int("assessment.sources", len(req.Sources)),
	)

	resp := h.assessments.GenerateAssessment(ctx, &req)
	if resp.Error != nil {
		status := middleware.HTTPStatus(contextutils.ErrorCode(resp.Error.Code))
		err = contextutils.NewAppError(contextutils.ErrorCode(resp.Error.Code), contextutils.SeverityError, resp.Error.Message, "")
		h.logger.Warn(ctx, "Assessment generation returned an error result", map[string]interface{}{
			"code":        resp.Error.Code,
			"http.status": status,
		})
		c.JSON(status, resp)
		return
	}

	span.SetAttributes(
		attribute.String("assessment.id", resp.Assessment.ID),
		attribute.Int("assessment.questions", len(resp.Assessment.Questions)),
	)
	c.JSON(http.StatusOK, resp)
}
