package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{
			name:     "trims whitespace",
			input:    []string{"  foo  ", "bar  ", "  baz"},
			expected: []string{"foo", "bar", "baz"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"foo", "bar", "foo", "baz", "bar"},
			expected: []string{"foo", "bar", "baz"},
		},
		{
			name:     "drops blanks",
			input:    []string{"", "   ", "foo"},
			expected: []string{"foo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeBy_PhoneKey(t *testing.T) {
	got := DedupeBy([]string{"+880 1711-000000", "+8801711000000", " 01811 222333 "}, PhoneKey)
	assert.Equal(t, []string{"+880 1711-000000", "01811 222333"}, got)
}

func TestPhoneKey(t *testing.T) {
	assert.Equal(t, "+8801711000000", PhoneKey(" +880 (1711) 000-000 "))
	assert.Equal(t, "017", PhoneKey("0+17"), "plus only kept in leading position")
	assert.Empty(t, PhoneKey("  "))
}
