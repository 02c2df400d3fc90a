// Package markup содержит вспомогательные функции для работы с разметкой
// решений: очистка HTML-тегов нумерованного списка, экранирование
// MarkdownV2 и усечение длинных текстов.
package markup

import "strings"

var listTagReplacer = strings.NewReplacer(
	"<ol>", "",
	"</ol>", "",
	"<li>", "",
	"</li>", "\n",
	"<strong>", "",
	"</strong>", "",
)

// StripListTags убирает теги нумерованного списка из решения,
// оставляя по одному шагу на строку.
func StripListTags(solution string) string {
	return strings.TrimSpace(listTagReplacer.Replace(solution))
}

// Символы, которые Telegram требует экранировать в MarkdownV2.
const markdownSpecial = `_*[]()~` + "`" + `>#+-=|{}.!`

// EscapeMarkdown экранирует символы, способные сломать разметку
// MarkdownV2 в сообщении Telegram.
func EscapeMarkdown(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markdownSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Truncate обрезает текст до limit рун и добавляет многоточие.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
