package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hs-classifier/api/internal/form"
)

const (
	cbAgain     = "classify_again"
	cbReference = "reference"

	maxMessageLen = 3900
)

func makeResultKeyboard() tgbotapi.InlineKeyboardMarkup {
	again := tgbotapi.NewInlineKeyboardButtonData("🔁 Classify again", cbAgain)
	ref := tgbotapi.NewInlineKeyboardButtonData("📚 HS reference", cbReference)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(again, ref))
}

func levelMark(level string) string {
	switch level {
	case form.LevelHigh:
		return "🟢"
	case form.LevelMedium:
		return "🟡"
	default:
		return "🔴"
	}
}

const (
	maxErrorLen       = 1000
	maxDescriptionLen = 600
)

// RenderState formats a form state as a Markdown message. Long output is cut
// between cards so no Markdown entity is split.
func RenderState(st form.State) string {
	var head strings.Builder
	if st.Error != "" {
		head.WriteString("⚠️ *Error:* ")
		head.WriteString(esc(clip(st.Error, maxErrorLen)))
		head.WriteString("\n\n")
	}

	cards := st.Display()
	if len(cards) == 0 {
		return strings.TrimSpace(head.String())
	}
	head.WriteString("📦 *Classification Results*\n\n")
	footer := "_Disclaimer:_ " + esc(form.Disclaimer)

	var b strings.Builder
	b.WriteString(head.String())
	used := utf8.RuneCountInString(head.String()) + utf8.RuneCountInString(footer)
	for i, c := range cards {
		block := fmt.Sprintf("*Rank #%d*  `%s`  %s %d%%\n%s\n\n",
			c.Rank, c.Code, levelMark(c.Level), c.Confidence, esc(clip(c.Description, maxDescriptionLen)))
		more := fmt.Sprintf("…and %d more\n\n", len(cards)-i)
		n := utf8.RuneCountInString(block)
		need := used + n
		if i < len(cards)-1 {
			// keep room for the "more" line the next card may need
			need += utf8.RuneCountInString(more)
		}
		if need > maxMessageLen {
			b.WriteString(more)
			break
		}
		b.WriteString(block)
		used += n
	}
	b.WriteString(footer)
	return strings.TrimSpace(b.String())
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

func usageText() string {
	return "Send a commercial product description and I will suggest HS codes with confidence scores.\n" +
		"Commands: /help, /health, /reference [code]"
}

// esc applies light escaping for legacy Markdown.
func esc(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "[", "\\[")
	return s
}
