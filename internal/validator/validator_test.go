package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Handle string `json:"handle" validate:"required,min=3,max=32,alphanum"`
	Email  string `json:"email" validate:"required,email"`
	Bio    string `json:"bio" validate:"max=8"`
	Secret string `json:"-" validate:"required"`
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	t.Parallel()

	err := New().Validate(&signupForm{Secret: "x"})
	require.Error(t, err)

	vErr, ok := err.(*ValidationError)
	require.True(t, ok, "expected a structured validation error, got %T", err)

	assert.Equal(t, "is required", vErr.Errors["handle"])
	assert.Equal(t, "is required", vErr.Errors["email"])
	assert.NotContains(t, vErr.Errors, "Handle", "struct field names must not leak")
}

func TestValidateMessagesPerRule(t *testing.T) {
	t.Parallel()

	err := New().Validate(&signupForm{
		Handle: "a!",
		Email:  "not-an-email",
		Bio:    "way too long for the limit",
		Secret: "x",
	})
	require.Error(t, err)

	vErr, ok := err.(*ValidationError)
	require.True(t, ok)

	assert.Equal(t, "must be at least 3 characters", vErr.Errors["handle"])
	assert.Equal(t, "must be a valid email address", vErr.Errors["email"])
	assert.Equal(t, "must be at most 8 characters", vErr.Errors["bio"])
}

func TestValidatePassesCleanInput(t *testing.T) {
	t.Parallel()

	assert.NoError(t, New().Validate(&signupForm{
		Handle: "dana99",
		Email:  "dana@example.com",
		Bio:    "hi",
		Secret: "x",
	}))
}
