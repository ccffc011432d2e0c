package api

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/todoapp/internal/todo"
)

// pathID parses the :id segment. Anything but a positive integer names no
// entity and is reported as not found.
func pathID(c echo.Context, resource string) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &todo.NotFoundError{Resource: resource}
	}
	return id, nil
}

// optionalQueryID parses an optional integer query parameter
func optionalQueryID(c echo.Context, name string) (*int64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, &todo.ValidationError{Field: name, Message: "a valid integer is required"}
	}
	return &id, nil
}

func requiredString(field string, value *string) (string, error) {
	if value == nil || *value == "" {
		return "", &todo.ValidationError{Field: field, Message: "this field is required"}
	}
	return *value, nil
}
