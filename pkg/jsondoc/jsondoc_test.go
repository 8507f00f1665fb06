package jsondoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "dynforms/pkg/domain-errors"
)

func TestValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"empty object", "{}", true},
		{"nested document", `{"steps":[{"key":"personal_info","fields":[]}]}`, true},
		{"scalar", "42", true},
		{"empty string", "", false},
		{"whitespace", "   ", false},
		{"truncated", `{"a":`, false},
		{"trailing garbage", `{} {}`, false},
		{"single quotes", `{'a':1}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.input))
		})
	}
}

func TestRequireOptional(t *testing.T) {
	require.NoError(t, RequireOptional("ocr_json", nil))

	bad := "{nope"
	err := RequireOptional("ocr_json", &bad)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	assert.Contains(t, err.Error(), "ocr_json")
}
