package serrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type sampleDTO struct {
	Name     string `validate:"required"`
	Duration int    `validate:"gte=0"`
}

func TestValidateStruct_TranslatesMessages(t *testing.T) {
	errs := ValidateStruct(&sampleDTO{Duration: -1})
	require.Len(t, errs, 2)
	require.Equal(t, "Name is a required field", errs["Name"])
	require.Contains(t, errs["Duration"], "Duration must be 0 or greater")
	require.Equal(t, errs["Duration"], errs.First())
}

func TestValidateStruct_ValidReturnsNil(t *testing.T) {
	require.Nil(t, ValidateStruct(&sampleDTO{Name: "ok"}))
}

func TestBaseError_IsMatchesCode(t *testing.T) {
	base := NewError("X_NOT_FOUND", "not found", "")
	wrapped := base.WithDetails("id=1")
	require.True(t, errors.Is(wrapped, base))
	require.Equal(t, "not found: id=1", wrapped.Error())
	require.False(t, errors.Is(wrapped, NewError("Y", "other", "")))
}
