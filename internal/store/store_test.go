package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullableString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   *string
		wantNil bool
		wantVal string
	}{
		{
			name:    "nil",
			input:   nil,
			wantNil: true,
		},
		{
			name:    "empty",
			input:   strRef(""),
			wantNil: true,
		},
		{
			name:    "whitespace only",
			input:   strRef("   "),
			wantNil: true,
		},
		{
			name:    "value with whitespace",
			input:   strRef("  hello  "),
			wantNil: false,
			wantVal: "hello",
		},
		{
			name:    "normal value",
			input:   strRef("test"),
			wantNil: false,
			wantVal: "test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := nullableString(tt.input)
			if tt.wantNil {
				assert.Nil(t, result)
			} else {
				assert.Equal(t, tt.wantVal, result)
			}
		})
	}
}

func TestNullableInt64(t *testing.T) {
	t.Parallel()

	assert.Nil(t, nullableInt64(nil))
	assert.Equal(t, int64(42), nullableInt64(int64p(42)))
}

func TestErrorTypes(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, ErrNotFound, ErrConflict)
	assert.Contains(t, ErrNotFound.Error(), "not found")
	assert.Contains(t, ErrConflict.Error(), "conflict")
}
