package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskboard/internal/status"
)

// Terminal equivalents of the board's badge classes.
var badgeStyles = map[string]lipgloss.Style{
	"badge-green":  lipgloss.NewStyle().Foreground(lipgloss.Color("#2e7d32")).Bold(true),
	"badge-blue":   lipgloss.NewStyle().Foreground(lipgloss.Color("#1565c0")).Bold(true),
	"badge-gray":   lipgloss.NewStyle().Foreground(lipgloss.Color("#6c757d")).Bold(true),
	"badge-red":    lipgloss.NewStyle().Foreground(lipgloss.Color("#c62828")).Bold(true),
	"badge-yellow": lipgloss.NewStyle().Foreground(lipgloss.Color("#f39c12")).Bold(true),
}

func badge(class, label string) string {
	if label == "" {
		return ""
	}
	style, ok := badgeStyles[class]
	if !ok {
		return label
	}
	return style.Render(label)
}

func statusBadge(raw string) string {
	return badge(status.Color(raw), status.Label(raw))
}

func priorityBadge(p string) string {
	return badge(status.PriorityColor(p), status.PriorityLabel(p))
}

func countsSummary(counts map[string]int) string {
	parts := make([]string, 0, 3)
	for _, opt := range status.Filters() {
		if opt.Value == status.FilterAll {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %d", opt.Label, counts[opt.Value]))
	}
	return strings.Join(parts, " · ")
}
