package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func errorBody(code int, message string) gin.H {
	return gin.H{"ok": 0, "code": code, "message": message}
}

// OK sends a 200 response with data as-is.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, message))
}

// ValidationFailed sends a 400 response listing the offending fields.
// Non-validator errors (malformed JSON, wrong types) get a single entry.
func ValidationFailed(c *gin.Context, err error) {
	body := errorBody(http.StatusBadRequest, "Invalid request data")
	body["errors"] = FieldErrors(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(http.StatusUnauthorized, message))
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Not Found"
	}
	c.AbortWithStatusJSON(http.StatusNotFound, errorBody(http.StatusNotFound, message))
}

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusMethodNotAllowed, errorBody(http.StatusMethodNotAllowed, "Method Not Allowed"))
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(http.StatusInternalServerError, err.Error()))
}

// InternalErrorMsg sends a 500 error response with a descriptive prefix.
func InternalErrorMsg(c *gin.Context, message string, err error) {
	if err != nil {
		message = message + ": " + err.Error()
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(http.StatusInternalServerError, message))
}

// FieldErrors flattens a binding error into per-field messages.
func FieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: jsonName(fe.Field()), Message: describe(fe)})
	}
	return out
}

// jsonName lowers the leading capital run of a Go field name,
// so IPFSCid becomes ipfsCid and Title becomes title.
func jsonName(field string) string {
	n := 0
	for n < len(field) && unicode.IsUpper(rune(field[n])) {
		n++
	}
	if n > 1 && n < len(field) {
		n--
	}
	return strings.ToLower(field[:n]) + field[n:]
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
