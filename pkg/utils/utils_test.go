package utils

import (
	"testing"
	"time"

	apperrors "citegraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `validate:"required,max=5"`
	Value int    `validate:"gte=-1,lte=1"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sample{Name: "ok", Value: 1}))

	err := ValidateStruct(sample{Name: "", Value: 3})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "value must be less than or equal to 1")
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "", FormatTimestamp(time.Time{}))

	ts := time.Date(2024, 3, 1, 12, 30, 0, 5_000_000, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-03-01T11:30:00.005Z", FormatTimestamp(ts))

	parsed, err := ParseRFC3339("2024-03-01T11:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2024, parsed.Year())
}
