package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripListTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "нумерованный список в строки",
			input:    "<ol><li>Шаг один</li><li>Шаг два</li></ol>",
			expected: "Шаг один\nШаг два",
		},
		{
			name:     "жирный текст внутри шага",
			input:    "<ol><li><strong>Ответ:</strong> 4</li></ol>",
			expected: "Ответ: 4",
		},
		{
			name:     "текст без тегов не меняется",
			input:    "просто текст",
			expected: "просто текст",
		},
		{
			name:     "пустая строка",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripListTags(tt.input))
		})
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "спецсимволы экранируются",
			input:    "x^2 - 4 = 0. Ответ!",
			expected: `x^2 \- 4 \= 0\. Ответ\!`,
		},
		{
			name:     "подчёркивание и звёздочка",
			input:    "a_b*c",
			expected: `a\_b\*c`,
		},
		{
			name:     "обычный текст без изменений",
			input:    "обычный текст",
			expected: "обычный текст",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EscapeMarkdown(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "короткий", Truncate("короткий", 100))
	assert.Equal(t, "длин...", Truncate("длинный текст", 4))
	// Лимит считается в рунах, кириллица не режется посередине байта.
	long := strings.Repeat("ы", 600)
	truncated := Truncate(long, 500)
	assert.Equal(t, 503, len([]rune(truncated)))
	assert.True(t, strings.HasSuffix(truncated, "..."))
}
