package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/docshield/redactor/internal/errors"
)

func TestLookupModel(t *testing.T) {
	limits, err := LookupModel("gpt-4.1-nano")
	require.NoError(t, err)
	assert.Equal(t, 150_000, limits.MaxTokensPerMinute)
	assert.Equal(t, 1_000, limits.MaxRequestsPerMinute)
	assert.Equal(t, "cl100k_base", limits.Encoding)

	_, err = LookupModel("gpt-2")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedModel)
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		ceiling   int
		want      int
	}{
		{"unset defaults to a fifth of the ceiling", 0, 150_000, 30_000},
		{"negative treated as unset", -10, 1_000, 200},
		{"above ceiling is clamped down", 500_000, 150_000, 150_000},
		{"within ceiling passes through", 60_000, 150_000, 60_000},
		{"exactly the ceiling passes through", 150_000, 150_000, 150_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampLimit(tt.requested, tt.ceiling))
		})
	}
}
