package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

func TestHandleBody_Valid(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Sara","email":"sara@example.com"}`))
	w := httptest.NewRecorder()

	body, err := HandleBody[samplePayload](w, r, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "Sara", body.Name)
}

func TestHandleBody_Malformed(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	w := httptest.NewRecorder()

	_, err := HandleBody[samplePayload](w, r, logger.NewNop())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleBody_InvalidFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"not-an-email"}`))
	w := httptest.NewRecorder()

	_, err := HandleBody[samplePayload](w, r, logger.NewNop())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	fields := FieldErrors(err)
	require.Len(t, fields, 2)
	assert.Equal(t, FieldError{Field: "name", Rule: "required"}, fields[0])
	assert.Equal(t, FieldError{Field: "email", Rule: "email"}, fields[1])
}

func TestFieldErrors_NonValidatorError(t *testing.T) {
	assert.Nil(t, FieldErrors(assert.AnError))
}
