package phone

import (
	"errors"
	"testing"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0501234567", "+966501234567"},
		{"501234567", "+966501234567"},
		{"966501234567", "+966501234567"},
		{"+966501234567", "+966501234567"},
		{"00966501234567", "+966501234567"},
		{" 050-123 4567 ", "+966501234567"},
		{"(050) 123-4567", "+966501234567"},
		{"+971501234567", "+971501234567"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "05abc", "+", "12"} {
		_, err := Normalize(in)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput), "input %q", in)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	once, err := Normalize("0501234567")
	require.NoError(t, err)
	twice, err := Normalize(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestVariants(t *testing.T) {
	assert.Equal(t,
		[]string{"+966501234567", "966501234567", "0501234567", "501234567"},
		Variants("0501234567"))

	assert.Equal(t,
		[]string{"+966501234567", "966501234567", "0501234567", "501234567", "050 123 4567"},
		Variants("050 123 4567"))

	assert.Equal(t, []string{"abc"}, Variants("abc"))
}

func TestLoginEmail(t *testing.T) {
	assert.Equal(t, "966501234567@phone.auth", LoginEmail("+966501234567"))
}
