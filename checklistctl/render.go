package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bringyour/checklist/checklist"
)

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
	openStyle       = lipgloss.NewStyle()
	completedStyle  = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	precheckedStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("11"))
	uidStyle        = lipgloss.NewStyle().Faint(true)
	noticeStyle     = lipgloss.NewStyle().Italic(true).Faint(true)
)

func checkbox(item checklist.Item) string {
	switch item.ToggleState() {
	case checklist.ToggleStatePrechecked:
		if item.IsChecked {
			return "[~]"
		}
		return "[ ]"
	case checklist.ToggleStateCompleted:
		return "[x]"
	default:
		return "[ ]"
	}
}

func itemStyle(item checklist.Item) lipgloss.Style {
	switch item.ToggleState() {
	case checklist.ToggleStatePrechecked:
		return precheckedStyle
	case checklist.ToggleStateCompleted:
		return completedStyle
	default:
		return openStyle
	}
}

func renderView(key checklist.NamespaceKey, view *checklist.View, preferences checklist.ViewPreferences) string {
	var b strings.Builder

	title := fmt.Sprintf("%s (%d/%d)", key, view.CompletedCount, len(view.Rows))
	if preferences.SearchText != "" {
		title = fmt.Sprintf("%s search %q", title, preferences.SearchText)
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	for _, row := range view.Rows {
		if row.ShowHeader {
			b.WriteString(headerStyle.Render(row.Item.Category))
			b.WriteString("\n")
		}
		line := fmt.Sprintf("%s %s", checkbox(row.Item), row.Item.Name)
		b.WriteString("  ")
		b.WriteString(itemStyle(row.Item).Render(line))
		b.WriteString(" ")
		b.WriteString(uidStyle.Render(row.Item.Uid))
		b.WriteString("\n")
	}

	switch {
	case view.SearchIsEmpty:
		b.WriteString(noticeStyle.Render("no items match"))
		b.WriteString("\n")
	case len(view.Rows) == 0:
		b.WriteString(noticeStyle.Render("no items"))
		b.WriteString("\n")
	case view.AllCompleted && !preferences.EffectiveHideCompleted():
		b.WriteString(noticeStyle.Render("all done"))
		b.WriteString("\n")
	}
	return b.String()
}
