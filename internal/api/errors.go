package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/eleven-am/todoapp/internal/orm"
	"github.com/eleven-am/todoapp/internal/todo"
)

type errorResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// errorStatus maps the error taxonomy onto HTTP statuses
func errorStatus(err error) (int, errorResponse) {
	var (
		validation *todo.ValidationError
		conflict   *todo.ConflictError
		notFound   *todo.NotFoundError
		authErr    *todo.AuthenticationError
		httpErr    *echo.HTTPError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorResponse{Message: validation.Message, Field: validation.Field}
	case errors.As(err, &conflict):
		return http.StatusConflict, errorResponse{Message: conflict.Message, Field: conflict.Field}
	case errors.As(err, &notFound):
		return http.StatusNotFound, errorResponse{Message: notFound.Error()}
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, errorResponse{Message: authErr.Error()}
	case errors.As(err, &httpErr):
		return httpErr.Code, errorResponse{Message: fmt.Sprint(httpErr.Message)}
	}
	return http.StatusInternalServerError, errorResponse{Message: http.StatusText(http.StatusInternalServerError)}
}

// conflictAsValidation reports duplicate usernames as 400, as the account
// endpoints always have.
func conflictAsValidation(err error) error {
	var conflict *todo.ConflictError
	if errors.As(err, &conflict) {
		return &todo.ValidationError{Field: conflict.Field, Message: conflict.Message}
	}
	return err
}

// errorHandler writes the JSON error body. Unexpected errors are logged and
// their details withheld from the client.
func errorHandler(logger log.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := errorStatus(err)
		if status >= http.StatusInternalServerError {
			fields := log.Fields{
				"method": c.Request().Method,
				"path":   c.Path(),
			}
			if orm.IsConstraintError(err) {
				fields["constraint"] = orm.GetConstraintName(err)
			}
			logger.WithError(err).WithFields(fields).Error("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.WithError(writeErr).Warn("failed to write error response")
		}
	}
}
