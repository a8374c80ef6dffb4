package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"hs-classifier/api/internal/form"
	"hs-classifier/api/internal/hscode"
)

type Styles struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Code   lipgloss.Style
	Body   lipgloss.Style
	Muted  lipgloss.Style
	High   lipgloss.Style
	Medium lipgloss.Style
	Low    lipgloss.Style
	Error  lipgloss.Style
}

var styles = Styles{
	Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1D4ED8")),
	Header: lipgloss.NewStyle().Bold(true).Padding(0, 1),
	Code:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2563EB")).Padding(0, 1),
	Body:   lipgloss.NewStyle().Padding(0, 1),
	Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	High:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#16A34A")),
	Medium: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#CA8A04")),
	Low:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#DC2626")),
	Error:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#B91C1C")),
}

const descWidth = 60

func levelStyle(level string) lipgloss.Style {
	switch level {
	case form.LevelHigh:
		return styles.High
	case form.LevelMedium:
		return styles.Medium
	default:
		return styles.Low
	}
}

func renderCards(cards []form.Card) string {
	if len(cards) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(styles.Title.Render("Classification Results"))
	sb.WriteString("\n")

	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Header.Width(8).Render("Rank"),
		styles.Header.Width(8).Render("Code"),
		styles.Header.Width(12).Render("Confidence"),
		styles.Header.Render("Description"),
	))
	sb.WriteString("\n")

	for _, c := range cards {
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			styles.Body.Width(8).Render(fmt.Sprintf("#%d", c.Rank)),
			styles.Code.Width(8).Render(c.Code),
			levelStyle(c.Level).Padding(0, 1).Width(12).Render(fmt.Sprintf("%d%%", c.Confidence)),
			styles.Body.Width(descWidth).Render(c.Description),
		))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderReference(entries []hscode.Entry) string {
	var sb strings.Builder
	sb.WriteString(styles.Title.Render("HS Code Reference"))
	sb.WriteString("\n")
	for _, e := range entries {
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			styles.Code.Width(8).Render(e.Code),
			styles.Body.Width(descWidth).Render(e.Description),
		))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
