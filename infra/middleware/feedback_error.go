package middleware

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"feedback_server/core/domain"
	"feedback_server/pkg/apperr"
	"feedback_server/pkg/logger"
	"feedback_server/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler is a centralized error handler for Fiber
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID, _ := c.Locals("request_id").(string)

		response := ErrorResponse{
			Success:   false,
			RequestID: requestID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		var status int
		var fe *fiber.Error

		if errors.As(err, &fe) {
			status = fe.Code
			response.Error = ErrorDetail{
				Code:    mapHTTPStatusToCode(fe.Code),
				Message: fe.Message,
			}
		} else {
			e := ToAppError(err)
			status = e.Status
			response.Error = ErrorDetail{
				Code:    e.Code,
				Message: e.Message,
				Details: e.Details,
			}

			log := logger.WithContext(c.UserContext()).
				WithField("error_code", e.Code).
				WithError(err)
			if status >= 500 {
				log.Error("Internal error: %s", e.Message)
			} else {
				log.Warn("Client error: %s", e.Message)
			}
		}

		return c.Status(status).JSON(response)
	}
}

// ToAppError maps domain errors onto HTTP-facing application errors.
func ToAppError(err error) *apperr.AppError {
	if e, ok := err.(*apperr.AppError); ok {
		return e
	}

	var ve *domain.ValidationError
	var se *domain.StoreTransactionError
	switch {
	case errors.As(err, &ve):
		reason := "invalid value"
		if ve.Err != nil {
			reason = ve.Err.Error()
		}
		return apperr.InvalidInput(ve.Field, reason).WithError(err)
	case errors.Is(err, domain.ErrNotFound):
		return apperr.NotFound("problem").WithError(err)
	case errors.Is(err, domain.ErrTimeout):
		return apperr.Timeout("classification").WithError(err)
	case errors.As(err, &se):
		return apperr.DatabaseError(se.Step, err)
	case domain.IsClassifierError(err):
		return apperr.ExternalError("llm", err)
	}
	return apperr.AsAppError(err)
}

// RequestID middleware adds a unique request ID to each request and to its
// user context so services can log it.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Locals("request_id", requestID)
		c.SetUserContext(logger.ContextWithRequestID(c.UserContext(), requestID))
		c.Set("X-Request-ID", requestID)
		return c.Next()
	}
}

// RequestLogger logs each request and records its latency under the route.
// registry may be nil.
func RequestLogger(registry *metrics.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			status = ToAppError(err).Status
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		if registry != nil {
			registry.Record(c.Method()+" "+c.Route().Path, duration)
		}

		log := logger.WithContext(c.UserContext()).
			WithDuration(duration).
			WithFields(map[string]any{
				"method": c.Method(),
				"path":   c.Path(),
				"status": status,
				"ip":     c.IP(),
			})

		switch {
		case status >= 500:
			log.Error("Request failed: %s %s -> %d", c.Method(), c.Path(), status)
		case status >= 400:
			log.Warn("Request error: %s %s -> %d", c.Method(), c.Path(), status)
		default:
			log.Debug("Request completed: %s %s -> %d", c.Method(), c.Path(), status)
		}

		return err
	}
}

// Recover middleware recovers from panics
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Locals("request_id").(string)
				fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())

				logger.WithContext(c.UserContext()).WithFields(map[string]any{
					"panic":  fmt.Sprintf("%v", r),
					"path":   c.Path(),
					"method": c.Method(),
				}).Error("Panic recovered")

				_ = c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
					Success:   false,
					RequestID: requestID,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
					Error: ErrorDetail{
						Code:    apperr.CodeInternalError,
						Message: "An unexpected error occurred",
					},
				})
			}
		}()
		return c.Next()
	}
}

func mapHTTPStatusToCode(status int) string {
	switch status {
	case 400:
		return apperr.CodeBadRequest
	case 404:
		return apperr.CodeNotFound
	case 409:
		return apperr.CodeConflict
	case 413:
		return "PAYLOAD_TOO_LARGE"
	case 429:
		return apperr.CodeRateLimited
	case 500:
		return apperr.CodeInternalError
	case 502, 503, 504:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
