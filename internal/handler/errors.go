package handler

import (
	"errors"
	"net/http"

	"backoffice/internal/composer"
	"backoffice/internal/gateway"
	"backoffice/internal/middleware"
	"backoffice/internal/query"
	"backoffice/internal/service"
	"backoffice/internal/session"
	"backoffice/internal/undo"
	"backoffice/internal/workflow"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

// classify maps a service error to a status, a user facing message and
// optional machine readable details.
func classify(err error) (int, string, any) {
	var (
		validation *workflow.ValidationError
		importErr  *composer.ImportError
		apiErr     *gateway.APIError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, "Validation failed", validation.Violations
	case errors.As(err, &importErr):
		return http.StatusUnprocessableEntity, importErr.Error(), importErr
	case errors.Is(err, workflow.ErrTransitionNotAllowed),
		errors.Is(err, workflow.ErrRequestLocked),
		errors.Is(err, workflow.ErrRequestInReposition),
		errors.Is(err, composer.ErrSubmitting):
		return http.StatusConflict, err.Error(), nil
	case errors.Is(err, composer.ErrUnknownField),
		errors.Is(err, composer.ErrUnknownEmployee),
		errors.Is(err, composer.ErrUnsupportedFormat),
		errors.Is(err, composer.ErrEmptyImport):
		return http.StatusBadRequest, err.Error(), nil
	case errors.Is(err, query.ErrUnknownRow),
		errors.Is(err, undo.ErrActionNotFound),
		errors.Is(err, session.ErrUnknownTable),
		errors.Is(err, service.ErrRoleNotFound):
		return http.StatusNotFound, err.Error(), nil
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode, gateway.UserMessage(err), nil
		}
		return http.StatusBadGateway, gateway.UserMessage(err), nil
	case errors.Is(err, gateway.ErrUnavailable):
		return http.StatusBadGateway, gateway.FallbackMessage, nil
	}
	return http.StatusInternalServerError, "Internal server error", nil
}

// fail writes the error envelope for err. 5xx responses are logged with
// the request scoped logger.
func fail(c *gin.Context, err error) {
	status, msg, details := classify(err)
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().Err(err).Int("status", status).Msg("request failed")
	}
	if details != nil {
		c.JSON(status, response.ErrorWithDetails(status, msg, details))
		return
	}
	c.JSON(status, response.Error(status, msg))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}
