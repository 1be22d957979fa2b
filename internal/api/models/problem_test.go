package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/internal/api/models"
)

func TestProblem_NewProblem(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	)

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "Validation error", p.Title)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Empty(t, p.Detail)
	assert.Empty(t, p.Instance)
	assert.Nil(t, p.Errors)
}

func TestProblem_Builders(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	).
		WithDetail("userId is required").
		WithInstance("/v1/messages").
		WithErrors([]models.FieldError{
			{Field: "userId", Message: "is required", Code: models.CodeRequired},
		})

	assert.Equal(t, "userId is required", p.Detail)
	assert.Equal(t, "/v1/messages", p.Instance)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, models.CodeRequired, p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "contactAddress", Message: "must be a valid phone number"},
	})
	p.Instance = "/v1/devices"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "Validation error", result.Title)
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Equal(t, "invalid input", result.Detail)
	assert.Equal(t, "/v1/devices", result.Instance)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "contactAddress", result.Errors[0].Field)
}

func TestProblem_Constructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		typ     string
		status  int
	}{
		{"not found", models.NewNotFound("req_1", "x"), models.ProblemTypeNotFound, http.StatusNotFound},
		{"method not allowed", models.NewMethodNotAllowed("req_1", "x"), models.ProblemTypeMethodNotAllowed, http.StatusMethodNotAllowed},
		{"too many requests", models.NewTooManyRequests("req_1", "x"), models.ProblemTypeTooManyRequests, http.StatusTooManyRequests},
		{"internal", models.NewInternalError("req_1", "x"), models.ProblemTypeInternal, http.StatusInternalServerError},
		{"unavailable", models.NewServiceUnavailable("req_1", "x"), models.ProblemTypeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, "x", tt.problem.Detail)
			assert.Equal(t, "req_1", tt.problem.TraceID)
		})
	}
}

func TestValidationError_Detail(t *testing.T) {
	err := &models.ValidationError{Errors: []models.FieldError{
		{Field: "userId", Message: "is required"},
		{Field: "text", Message: "is required"},
	}}

	assert.Equal(t, "validation failed", err.Error())
	assert.Equal(t, "userId is required; text is required", err.Detail())

	single := &models.ValidationError{Errors: []models.FieldError{{Field: "userId", Message: "is required"}}}
	assert.Equal(t, "validation failed: userId is required", single.Error())

	empty := &models.ValidationError{}
	assert.Equal(t, "invalid request", empty.Detail())
}
