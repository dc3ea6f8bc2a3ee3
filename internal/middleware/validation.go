package middleware

import (
	"bytes"
	"io"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// maxValidatedBodyBytes bounds how much of a request body is read for validation
const maxValidatedBodyBytes = 1 << 20

// RequestValidationMiddleware validates JSON request bodies against the schema the
// OpenAPI document declares for the matched route. The body is restored for the
// handler. Routes without a documented request schema pass through.
func RequestValidationMiddleware(loader *SchemaLoader, logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		schemaName := loader.RequestSchema(c.FullPath(), c.Request.Method)
		if schemaName == "" || c.Request.Body == nil {
			c.Next()
			return
		}

		ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "request_validation",
			attribute.String("http.route", c.FullPath()),
			attribute.String("validation.schema", schemaName),
		)
		var err error
		defer observability.FinishSpan(span, &err)

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxValidatedBodyBytes+1))
		if err != nil {
			err = contextutils.WrapError(contextutils.ErrInvalidInput, "failed to read request body")
			HandleAppError(c, err)
			c.Abort()
			return
		}
		if len(body) > maxValidatedBodyBytes {
			err = contextutils.WrapErrorf(contextutils.ErrInvalidInput, "request body exceeds %d bytes", maxValidatedBodyBytes)
			HandleAppError(c, err)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if err = loader.ValidateJSON(body, schemaName); err != nil {
			logger.Warn(ctx, "Request validation failed", map[string]interface{}{
				"http.method": c.Request.Method,
				"http.path":   c.Request.URL.Path,
				"schema_name": schemaName,
				"error":       err.Error(),
			})
			HandleAppError(c, err)
			c.Abort()
			return
		}

		c.Next()
	}
}
